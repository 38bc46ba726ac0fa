package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pesa-invest/pesa_invest/internal/payment"
)

// RegisterPaymentRoutes wires settlement-engine endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payment.Handler) {
	r.Post("/payments", h.Create)
	r.Get("/payments/:paymentId", h.Status)
	r.Post("/payments/:paymentId/cancel", h.Cancel)
}

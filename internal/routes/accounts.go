package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pesa-invest/pesa_invest/internal/account"
)

// RegisterAccountRoutes wires ledger endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Post("/accounts/:phone/deposit", h.Deposit)
	r.Post("/accounts/:phone/withdraw", h.Withdraw)
	r.Get("/accounts/:phone", h.View)
}

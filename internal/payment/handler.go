package payment

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pesa-invest/pesa_invest/internal/account"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	AccountPhone string `json:"account_phone"`
	PayTo        string `json:"pay_to"`
	Amount       int64  `json:"amount"`
}

// Create submits an investment payment for asynchronous settlement.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	p, err := h.service.Create(c.UserContext(), CreateInput{
		AccountPhone: req.AccountPhone,
		PayTo:        req.PayTo,
		Amount:       req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount below minimum")
		case errors.Is(err, account.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, "account not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, "payment could not be created")
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"payment_id": p.ID,
		"status":     p.Status,
		"created_at": p.CreatedAt.Format(time.RFC3339Nano),
	})
}

// Status reports the payment's current state.
func (h *Handler) Status(c *fiber.Ctx) error {
	res, err := h.service.Status(c.UserContext(), c.Params("paymentId"))
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return fiber.NewError(http.StatusNotFound, "payment not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "payment status unavailable")
	}

	body := fiber.Map{"status": res.Status}
	if res.Note != "" {
		body["note"] = res.Note
	}
	return c.Status(http.StatusOK).JSON(body)
}

// Cancel cancels a still-pending payment.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	err := h.service.Cancel(c.UserContext(), c.Params("paymentId"))
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			return fiber.NewError(http.StatusNotFound, "payment not found")
		case errors.Is(err, ErrCannotCancel):
			return fiber.NewError(http.StatusConflict, "payment cannot be cancelled")
		default:
			return fiber.NewError(http.StatusInternalServerError, "payment could not be cancelled")
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": StatusCancelled})
}

package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes ledger HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type transactionResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Principal int64     `json:"principal,omitempty"`
	Bonus     int64     `json:"bonus,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Deposit adds funds to the account in the path.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.service.Deposit(c.UserContext(), c.Params("phone"), req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"phone":   c.Params("phone"),
		"balance": balance,
	})
}

// Withdraw removes funds from the account in the path.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.service.Withdraw(c.UserContext(), c.Params("phone"), req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"phone":   c.Params("phone"),
		"balance": balance,
	})
}

// View returns the account profile, balance and transaction history.
func (h *Handler) View(c *fiber.Ctx) error {
	acct, err := h.service.View(c.UserContext(), c.Params("phone"))
	if err != nil {
		return mapLedgerError(err)
	}

	history := make([]transactionResponse, 0, len(acct.Transactions))
	for _, tx := range acct.Transactions {
		history = append(history, transactionResponse{
			ID:        tx.ID,
			Kind:      tx.Kind,
			Amount:    tx.Amount,
			Principal: tx.Principal,
			Bonus:     tx.Bonus,
			CreatedAt: tx.CreatedAt,
		})
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"phone":        acct.Phone,
		"name":         acct.Name,
		"balance":      acct.Balance,
		"picture_url":  acct.PictureURL,
		"transactions": history,
	})
}

func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	default:
		return fiber.NewError(http.StatusInternalServerError, "ledger unavailable")
	}
}

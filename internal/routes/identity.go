package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pesa-invest/pesa_invest/internal/account"
	"github.com/pesa-invest/pesa_invest/internal/identity"
	"github.com/pesa-invest/pesa_invest/internal/session"
)

// RegisterIdentityRoutes wires signup and login. Signup auto-provisions a
// zero-balance ledger account for the new user.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, ledger *account.Service, sessions session.Store, rateLimiter fiber.Handler, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Phone string `json:"phone"`
			Name  string `json:"name"`
			PIN   string `json:"pin"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		user, err := ids.Register(c.UserContext(), identity.Credentials{Phone: req.Phone, Name: req.Name, PIN: req.PIN})
		if err != nil {
			if errors.Is(err, identity.ErrUserExists) {
				return fiber.NewError(http.StatusConflict, "phone already registered")
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		if _, err := ledger.Create(c.UserContext(), user.Phone, user.Name); err != nil && !errors.Is(err, account.ErrAccountExists) {
			return fiber.NewError(http.StatusInternalServerError, "account could not be provisioned")
		}

		if logger != nil {
			logger.Info("identity.register completed",
				slog.String("user_id", user.ID),
				slog.String("phone", user.Phone),
				slog.Int("status", http.StatusCreated),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id": user.ID,
			"phone":   user.Phone,
			"name":    user.Name,
		})
	})

	r.Post("/identity/login", rateLimiter, func(c *fiber.Ctx) error {
		var req struct {
			Phone string `json:"phone"`
			PIN   string `json:"pin"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		user, err := ids.Authenticate(c.UserContext(), identity.Credentials{Phone: req.Phone, PIN: req.PIN})
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
		}

		token, err := sessions.Create(c.UserContext(), user.Phone)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "session could not be created")
		}

		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user_id": user.ID,
			"phone":   user.Phone,
			"token":   token,
		})
	})
}

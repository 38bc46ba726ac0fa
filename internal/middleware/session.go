package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pesa-invest/pesa_invest/internal/session"
)

// LocalsAccountPhone is the fiber locals key holding the authenticated
// caller's account phone.
const LocalsAccountPhone = "account_phone"

// SessionAuth validates bearer session tokens against the session store and
// records the caller's account phone in request locals.
func SessionAuth(sessions session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		phone, err := sessions.Lookup(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid session")
		}

		c.Locals(LocalsAccountPhone, phone)
		return c.Next()
	}
}

package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pesa-invest/pesa_invest/internal/account"
	"github.com/pesa-invest/pesa_invest/internal/config"
	"github.com/pesa-invest/pesa_invest/internal/identity"
	"github.com/pesa-invest/pesa_invest/internal/middleware"
	"github.com/pesa-invest/pesa_invest/internal/notification"
	"github.com/pesa-invest/pesa_invest/internal/payment"
	"github.com/pesa-invest/pesa_invest/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. It returns the
// settlement worker so main can run it alongside the HTTP server.
func Setup(app *fiber.App, d Deps) (*payment.Settler, error) {
	// In-memory fallbacks are for development only.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories
	var accountRepo account.Repository
	var paymentRepo payment.Repository
	var identityRepo identity.Repository
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
		paymentRepo = payment.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		accountRepo = account.NewMemoryRepository()
		paymentRepo = payment.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
	}

	var sessions session.Store
	if d.Cache != nil {
		sessions = session.NewRedisStore(d.Cache, d.Cfg.SessionTTL)
	} else {
		sessions = session.NewMemoryStore(d.Cfg.SessionTTL)
	}

	// Services
	ledger := account.NewService(accountRepo)
	identitySvc := identity.NewService(identityRepo)
	notifier := notification.NewLoggerNotifier(d.Logger)
	paymentSvc := payment.NewService(paymentRepo, ledger, payment.ProbabilisticDecider{Rate: d.Cfg.SettlementSuccessRate}, notifier, payment.Config{
		MinAmount:       d.Cfg.MinPaymentAmount,
		BonusMultiplier: d.Cfg.SettlementBonus,
		DelayMin:        d.Cfg.SettlementDelayMin,
		DelayMax:        d.Cfg.SettlementDelayMax,
	})
	settler := payment.NewSettler(paymentSvc, paymentRepo, d.Cfg.SettlementPollInterval, d.Logger)

	accountHandler := account.NewHandler(ledger)
	paymentHandler := payment.NewHandler(paymentSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterIdentityRoutes(api, identitySvc, ledger, sessions, rateLimiter, d.Logger)

	// Protected routes
	protected := api.Group("", middleware.SessionAuth(sessions))
	RegisterAccountRoutes(protected, accountHandler)
	RegisterPaymentRoutes(protected, paymentHandler)
	protected.Post("/identity/logout", func(c *fiber.Ctx) error {
		phone, _ := c.Locals(middleware.LocalsAccountPhone).(string)
		if err := sessions.Invalidate(c.UserContext(), phone); err != nil {
			return fiber.NewError(http.StatusInternalServerError, "could not end session")
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
	})

	return settler, nil
}

package payment

import (
	"context"
	"log/slog"
	"time"
)

const settleBatchSize = 100

// Settler drives due PENDING payments to a terminal state. Run a single
// settler per deployment; the per-payment locks in Service serialize within
// one process only.
type Settler struct {
	service  *Service
	repo     Repository
	interval time.Duration
	logger   *slog.Logger
}

// NewSettler builds a settlement poller.
func NewSettler(service *Service, repo Repository, interval time.Duration, logger *slog.Logger) *Settler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Settler{service: service, repo: repo, interval: interval, logger: logger}
}

// Run polls for due payments until the context is cancelled. Task failures
// are logged and never stop the loop; an unresolved payment is retried on the
// next tick.
func (s *Settler) Run(ctx context.Context) {
	s.logger.Info("settlement worker started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement worker stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Settler) tick(ctx context.Context) {
	due, err := s.repo.DuePending(ctx, time.Now().UTC(), settleBatchSize)
	if err != nil {
		s.logger.Error("list due payments", "error", err)
		return
	}
	for _, p := range due {
		if err := s.service.Resolve(ctx, p.ID); err != nil {
			s.logger.Error("settle payment", "payment_id", p.ID, "error", err)
		}
	}
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesa-invest/pesa_invest/internal/account"
	"github.com/pesa-invest/pesa_invest/internal/locking"
	"github.com/pesa-invest/pesa_invest/internal/notification"
)

var (
	// ErrInvalidAmount occurs when a payment amount is below the minimum.
	ErrInvalidAmount = errors.New("amount below minimum")

	// ErrCannotCancel occurs when cancelling a payment that already reached a
	// terminal status.
	ErrCannotCancel = errors.New("payment cannot be cancelled")
)

// Config carries the settlement tunables. They are configuration, not
// business logic: the state machine never hard-codes them.
type Config struct {
	MinAmount       int64
	BonusMultiplier float64
	DelayMin        time.Duration
	DelayMax        time.Duration
}

// Service is the settlement engine: it owns the payment state machine from
// creation through exactly-once resolution or cancellation.
type Service struct {
	repo     Repository
	ledger   *account.Service
	decider  Decider
	notifier notification.Notifier
	cfg      Config
	locks    *locking.Keyed

	// creditedMu guards credited: ledger credits already applied for payments
	// whose SUCCESS write has not landed. A retry must finish the status
	// write, never credit again.
	creditedMu sync.Mutex
	credited   map[string]account.CreditResult
}

// NewService builds a settlement engine.
func NewService(repo Repository, ledger *account.Service, decider Decider, notifier notification.Notifier, cfg Config) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		decider:  decider,
		notifier: notifier,
		cfg:      cfg,
		locks:    locking.NewKeyed(),
		credited: make(map[string]account.CreditResult),
	}
}

// CreateInput captures the data needed to submit an investment payment.
type CreateInput struct {
	AccountPhone string
	PayTo        string
	Amount       int64
}

// Create validates the request and persists a PENDING payment with its
// settlement time drawn uniformly from the configured delay window. The
// caller returns immediately; resolution happens out of band.
func (s *Service) Create(ctx context.Context, input CreateInput) (Payment, error) {
	if input.Amount < s.cfg.MinAmount {
		return Payment{}, ErrInvalidAmount
	}
	if _, err := s.ledger.View(ctx, input.AccountPhone); err != nil {
		return Payment{}, err
	}

	now := time.Now().UTC()
	p := Payment{
		ID:           uuid.NewString(),
		AccountPhone: input.AccountPhone,
		PayTo:        input.PayTo,
		Amount:       input.Amount,
		Status:       StatusPending,
		CreatedAt:    now,
		SettleAt:     now.Add(s.settlementDelay()),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// StatusResult describes a payment's current state. Note is only set once the
// payment settled successfully.
type StatusResult struct {
	Status string
	Note   string
}

// Status returns the payment's current status.
func (s *Service) Status(ctx context.Context, id string) (StatusResult, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return StatusResult{}, err
	}
	res := StatusResult{Status: p.Status}
	if p.Status == StatusSuccess {
		res.Note = fmt.Sprintf("payment of %d to %s settled with bonus", p.Amount, p.PayTo)
	}
	return res, nil
}

// Cancel moves a PENDING payment to CANCELLED. It holds the same per-payment
// lock as resolution, so a payment is cancelled or settled, never both.
func (s *Service) Cancel(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Terminal() {
		return ErrCannotCancel
	}
	if _, applied := s.creditApplied(id); applied {
		// The ledger credit already landed; only the SUCCESS write is
		// outstanding. The payment is settled, not cancellable.
		return ErrCannotCancel
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		if errors.Is(err, ErrNotPending) {
			return ErrCannotCancel
		}
		return err
	}
	return nil
}

// Resolve settles one due payment: it re-checks PENDING under the per-payment
// lock, draws the outcome, credits the ledger on success and records the
// terminal status. Calling it for an already-resolved payment is a no-op.
func (s *Service) Resolve(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Terminal() {
		return nil
	}

	// Credit first, then mark. A failed credit leaves the payment PENDING so
	// the next poll retries; a failed status write after the credit keeps the
	// credit on record so the retry finishes the write without paying twice.
	credit, applied := s.creditApplied(id)
	if !applied {
		if !s.decider.Approve() {
			if err := s.repo.UpdateStatus(ctx, id, StatusFailed); err != nil && !errors.Is(err, ErrNotPending) {
				return err
			}
			return nil
		}
		credit, err = s.ledger.CreditSettlement(ctx, p.AccountPhone, p.Amount, s.cfg.BonusMultiplier)
		if err != nil {
			return err
		}
		s.recordCredit(id, credit)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusSuccess); err != nil {
		if errors.Is(err, ErrNotPending) {
			s.clearCredit(id)
			return nil
		}
		return fmt.Errorf("payment %s credited %d but status write failed: %w", id, credit.Credited, err)
	}
	s.clearCredit(id)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindSettlement,
			Destination: p.AccountPhone,
			Body:        fmt.Sprintf("investment settled, %d credited (%d bonus)", credit.Credited, credit.Bonus),
		})
	}
	return nil
}

func (s *Service) creditApplied(id string) (account.CreditResult, bool) {
	s.creditedMu.Lock()
	defer s.creditedMu.Unlock()
	credit, ok := s.credited[id]
	return credit, ok
}

func (s *Service) recordCredit(id string, credit account.CreditResult) {
	s.creditedMu.Lock()
	s.credited[id] = credit
	s.creditedMu.Unlock()
}

func (s *Service) clearCredit(id string) {
	s.creditedMu.Lock()
	delete(s.credited, id)
	s.creditedMu.Unlock()
}

func (s *Service) settlementDelay() time.Duration {
	window := s.cfg.DelayMax - s.cfg.DelayMin
	if window <= 0 {
		return s.cfg.DelayMin
	}
	return s.cfg.DelayMin + time.Duration(rand.Int64N(int64(window)))
}

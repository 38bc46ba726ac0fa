package account

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pesa-invest/pesa_invest/internal/locking"
)

var (
	// ErrInvalidAmount occurs when an operation amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance occurs when a withdrawal exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Service is the ledger: it owns all balance mutations and guarantees that
// the read-modify-write of a single account never interleaves.
type Service struct {
	repo  Repository
	locks *locking.Keyed
}

// NewService builds a ledger service over the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, locks: locking.NewKeyed()}
}

// CreditResult reports the outcome of a settlement credit.
type CreditResult struct {
	Credited   int64
	Bonus      int64
	NewBalance int64
}

// Create provisions an account with zero balance and empty history.
func (s *Service) Create(ctx context.Context, phone, name string) (Account, error) {
	acct := Account{
		Phone:     phone,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Deposit adds funds and appends a deposit transaction.
func (s *Service) Deposit(ctx context.Context, phone string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	unlock := s.locks.Lock(phone)
	defer unlock()

	acct, err := s.repo.Get(ctx, phone)
	if err != nil {
		return 0, err
	}

	newBalance := acct.Balance + amount
	entry := Transaction{
		ID:        uuid.NewString(),
		Kind:      KindDeposit,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Apply(ctx, phone, newBalance, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Withdraw removes funds and appends a withdraw transaction. The balance is
// never allowed below zero.
func (s *Service) Withdraw(ctx context.Context, phone string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	unlock := s.locks.Lock(phone)
	defer unlock()

	acct, err := s.repo.Get(ctx, phone)
	if err != nil {
		return 0, err
	}
	if amount > acct.Balance {
		return 0, ErrInsufficientBalance
	}

	newBalance := acct.Balance - amount
	entry := Transaction{
		ID:        uuid.NewString(),
		Kind:      KindWithdraw,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Apply(ctx, phone, newBalance, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// CreditSettlement applies the invest credit awarded when a payment settles
// successfully: principal times the bonus multiplier, rounded half-up once at
// the point of computation. Only the settlement engine calls this.
func (s *Service) CreditSettlement(ctx context.Context, phone string, principal int64, multiplier float64) (CreditResult, error) {
	if principal <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}

	unlock := s.locks.Lock(phone)
	defer unlock()

	acct, err := s.repo.Get(ctx, phone)
	if err != nil {
		return CreditResult{}, err
	}

	credited := int64(math.Round(float64(principal) * multiplier))
	newBalance := acct.Balance + credited
	entry := Transaction{
		ID:        uuid.NewString(),
		Kind:      KindInvest,
		Amount:    credited,
		Principal: principal,
		Bonus:     credited - principal,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Apply(ctx, phone, newBalance, entry); err != nil {
		return CreditResult{}, err
	}

	return CreditResult{Credited: credited, Bonus: credited - principal, NewBalance: newBalance}, nil
}

// View returns the account with its full history.
func (s *Service) View(ctx context.Context, phone string) (Account, error) {
	return s.repo.Get(ctx, phone)
}

package account

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[acct.Phone]; exists {
		return ErrAccountExists
	}
	r.accounts[acct.Phone] = acct
	return nil
}

func (r *memoryRepository) Get(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[phone]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	history := make([]Transaction, len(acct.Transactions))
	copy(history, acct.Transactions)
	acct.Transactions = history
	return acct, nil
}

func (r *memoryRepository) Apply(_ context.Context, phone string, newBalance int64, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[phone]
	if !ok {
		return ErrAccountNotFound
	}
	acct.Balance = newBalance
	acct.Transactions = append(acct.Transactions, tx)
	r.accounts[phone] = acct
	return nil
}

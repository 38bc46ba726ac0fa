package payment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	payments map[string]Payment
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{payments: make(map[string]Payment)}
}

func (r *memoryRepository) Create(_ context.Context, p Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.payments[p.ID]; exists {
		return errors.New("payment exists")
	}
	r.payments[p.ID] = p
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	if p.Status != StatusPending {
		return ErrNotPending
	}
	p.Status = status
	r.payments[id] = p
	return nil
}

func (r *memoryRepository) DuePending(_ context.Context, now time.Time, limit int) ([]Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []Payment
	for _, p := range r.payments {
		if p.Status == StatusPending && !p.SettleAt.After(now) {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].SettleAt.Before(due[j].SettleAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

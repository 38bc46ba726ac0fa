package payment

import "time"

// Payment statuses. PENDING is the only non-terminal state; transitions are
// one-directional and happen exactly once.
const (
	StatusPending   = "PENDING"
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Payment is an investment request awaiting settlement. SettleAt is persisted
// at creation so in-flight settlements survive a restart.
type Payment struct {
	ID           string
	AccountPhone string
	PayTo        string
	Amount       int64
	Status       string
	CreatedAt    time.Time
	SettleAt     time.Time
}

// Terminal reports whether the payment can no longer change state.
func (p Payment) Terminal() bool {
	return p.Status != StatusPending
}

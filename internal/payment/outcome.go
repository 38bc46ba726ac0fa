package payment

import "math/rand/v2"

// Decider decides whether a due payment settles successfully. Injectable so
// tests can force an outcome.
type Decider interface {
	Approve() bool
}

// ProbabilisticDecider approves with a fixed probability.
type ProbabilisticDecider struct {
	Rate float64
}

// Approve draws the settlement outcome.
func (d ProbabilisticDecider) Approve() bool {
	return rand.Float64() < d.Rate
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func() bool

// Approve calls the wrapped function.
func (f DeciderFunc) Approve() bool { return f() }

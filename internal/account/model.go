package account

import "time"

// Transaction kinds recorded in an account's history.
const (
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
	KindInvest   = "invest"
)

// Transaction is an immutable entry in an account's history. Invest entries
// additionally carry the principal and the bonus awarded on settlement.
type Transaction struct {
	ID        string
	Kind      string
	Amount    int64
	Principal int64
	Bonus     int64
	CreatedAt time.Time
}

// Account holds a user's spendable balance and full transaction history.
// Amounts are minor currency units; the balance always equals the signed sum
// of the history and never goes negative.
type Account struct {
	Phone        string
	Name         string
	Balance      int64
	PictureURL   string
	CreatedAt    time.Time
	Transactions []Transaction
}

// Delta returns the signed balance effect of the transaction.
func (t Transaction) Delta() int64 {
	if t.Kind == KindWithdraw {
		return -t.Amount
	}
	return t.Amount
}

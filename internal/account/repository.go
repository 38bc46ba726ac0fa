package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAccountNotFound occurs when no account exists for the given phone.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists occurs when signup reuses an existing phone number.
	ErrAccountExists = errors.New("account exists")
)

// Repository persists accounts and their transaction history. Apply must
// write the new balance and the appended transaction atomically; callers
// serialize per-account access, the repository does not.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, phone string) (Account, error)
	Apply(ctx context.Context, phone string, newBalance int64, tx Transaction) error
}

// PostgresRepository stores accounts in PostgreSQL, one row per account plus
// one row per history entry.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account record.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	cmd, err := r.db.Exec(ctx, `INSERT INTO accounts (phone, name, balance, picture_url, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (phone) DO NOTHING`,
		acct.Phone, acct.Name, acct.Balance, acct.PictureURL, acct.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountExists
	}
	return nil
}

// Get fetches an account with its history in insertion order.
func (r *PostgresRepository) Get(ctx context.Context, phone string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT phone, name, balance, picture_url, created_at
        FROM accounts WHERE phone = $1`, phone)

	var acct Account
	var createdAt time.Time
	if err := row.Scan(&acct.Phone, &acct.Name, &acct.Balance, &acct.PictureURL, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acct.CreatedAt = createdAt.UTC()

	rows, err := r.db.Query(ctx, `SELECT id, kind, amount, principal, bonus, created_at
        FROM account_transactions WHERE account_phone = $1 ORDER BY seq ASC`, phone)
	if err != nil {
		return Account{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var tx Transaction
		var id uuid.UUID
		var txCreated time.Time
		if err := rows.Scan(&id, &tx.Kind, &tx.Amount, &tx.Principal, &tx.Bonus, &txCreated); err != nil {
			return Account{}, err
		}
		tx.ID = id.String()
		tx.CreatedAt = txCreated.UTC()
		acct.Transactions = append(acct.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return Account{}, err
	}

	return acct, nil
}

// Apply writes the new balance and the appended history entry in a single
// database transaction so readers never observe one without the other.
func (r *PostgresRepository) Apply(ctx context.Context, phone string, newBalance int64, entry Transaction) error {
	txID, err := uuid.Parse(entry.ID)
	if err != nil {
		return fmt.Errorf("invalid transaction id: %w", err)
	}

	dbtx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	cmd, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE phone = $1`, phone, newBalance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	if _, err := dbtx.Exec(ctx, `INSERT INTO account_transactions (id, account_phone, kind, amount, principal, bonus, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txID, phone, entry.Kind, entry.Amount, entry.Principal, entry.Bonus, entry.CreatedAt.UTC()); err != nil {
		return err
	}

	return dbtx.Commit(ctx)
}

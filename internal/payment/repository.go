package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPaymentNotFound occurs when no payment exists for the given id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrNotPending occurs when a status update targets a payment that has
	// already left PENDING. It is the persistence-level fence against double
	// resolution.
	ErrNotPending = errors.New("payment no longer pending")
)

// Repository persists payments keyed by id. UpdateStatus must refuse to
// overwrite a terminal status.
type Repository interface {
	Create(ctx context.Context, p Payment) error
	Get(ctx context.Context, id string) (Payment, error)
	UpdateStatus(ctx context.Context, id, status string) error
	DuePending(ctx context.Context, now time.Time, limit int) ([]Payment, error)
}

// PostgresRepository stores payments in PostgreSQL, one row per payment.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a payment record.
func (r *PostgresRepository) Create(ctx context.Context, p Payment) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payments (id, account_phone, pay_to, amount, status, created_at, settle_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, p.AccountPhone, p.PayTo, p.Amount, p.Status, p.CreatedAt.UTC(), p.SettleAt.UTC())
	return err
}

// Get fetches a payment by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Payment, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return Payment{}, ErrPaymentNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, account_phone, pay_to, amount, status, created_at, settle_at
        FROM payments WHERE id = $1`, paymentID)
	return scanPayment(row)
}

// UpdateStatus moves a PENDING payment into a terminal status. The WHERE
// clause on status makes the transition exclusive even across processes.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string) error {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return ErrPaymentNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1 AND status = $3`,
		paymentID, status, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, paymentID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPaymentNotFound
		}
		return ErrNotPending
	}
	return nil
}

// DuePending lists pending payments whose settle time has passed, oldest due
// first.
func (r *PostgresRepository) DuePending(ctx context.Context, now time.Time, limit int) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, account_phone, pay_to, amount, status, created_at, settle_at
        FROM payments WHERE status = $1 AND settle_at <= $2 ORDER BY settle_at ASC LIMIT $3`,
		StatusPending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, p)
	}
	return due, rows.Err()
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var id uuid.UUID
	var createdAt, settleAt time.Time
	if err := row.Scan(&id, &p.AccountPhone, &p.PayTo, &p.Amount, &p.Status, &createdAt, &settleAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	p.ID = id.String()
	p.CreatedAt = createdAt.UTC()
	p.SettleAt = settleAt.UTC()
	return p, nil
}

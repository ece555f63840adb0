package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/adminpanel/services/payment/internal/repository"
)

const uniqueViolation = "23505"

const paymentColumns = `id, order_id, amount, status, COALESCE(idempotency_key, ''), created_at`

// Repository реализует PaymentRepository на PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPayment(row pgx.Row) (repository.Payment, error) {
	var p repository.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.IdempotencyKey, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Payment{}, repository.ErrNotFound
		}
		return repository.Payment{}, err
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context) ([]repository.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := make([]repository.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (repository.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (repository.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key))
}

// Create вставляет платёж. Уникальный индекс по idempotency_key - страховка,
// если Redis потерял ключ или два одинаковых запроса пришли одновременно.
func (r *Repository) Create(ctx context.Context, p repository.Payment) (repository.Payment, error) {
	var key *string
	if p.IdempotencyKey != "" {
		key = &p.IdempotencyKey
	}

	created, err := scanPayment(r.pool.QueryRow(ctx,
		`INSERT INTO payments (order_id, amount, status, idempotency_key)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+paymentColumns,
		p.OrderID, p.Amount, p.Status, key))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.Payment{}, repository.ErrDuplicateKey
		}
		return repository.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, p repository.Payment) (repository.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`UPDATE payments SET order_id = $1, amount = $2, status = $3
		 WHERE id = $4
		 RETURNING `+paymentColumns,
		p.OrderID, p.Amount, p.Status, p.ID))
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

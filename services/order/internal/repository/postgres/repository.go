package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/adminpanel/services/order/internal/repository"
)

const orderColumns = `id, user_id, product_id, quantity, state, amount, COALESCE(payment_key, ''),
	payment_id, attempts, last_error, created_at, updated_at`

// Repository реализует OrderRepository используя PostgreSQL.
// Каждое изменение состояния и его outbox событие пишутся в одной транзакции.
type Repository struct {
	pool  *pgxpool.Pool
	topic string
	now   func() time.Time
}

func NewRepository(pool *pgxpool.Pool, topic string) *Repository {
	if topic == "" {
		topic = repository.DefaultEventsTopic
	}
	return &Repository{pool: pool, topic: topic, now: time.Now}
}

func scanOrder(row pgx.Row) (repository.Order, error) {
	var o repository.Order
	var state string
	err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.Quantity, &state, &o.Amount, &o.PaymentKey,
		&o.PaymentID, &o.Attempts, &o.LastError, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Order{}, repository.ErrNotFound
		}
		return repository.Order{}, err
	}
	o.State = repository.State(state)
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]repository.Order, error) {
	defer rows.Close()

	orders := make([]repository.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) List(ctx context.Context) ([]repository.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repository) Get(ctx context.Context, id int64) (repository.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (r *Repository) GetByPaymentKey(ctx context.Context, key string) (repository.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_key = $1`, key))
}

// Create вставляет заказ, назначает payment_key по выданному id и пишет order.created в outbox
func (r *Repository) Create(ctx context.Context, o repository.Order) (repository.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return repository.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, product_id, quantity, state)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		o.UserID, o.ProductID, o.Quantity, string(repository.StateCreated)).Scan(&id)
	if err != nil {
		return repository.Order{}, fmt.Errorf("insert order: %w", err)
	}

	created, err := scanOrder(tx.QueryRow(ctx,
		`UPDATE orders SET payment_key = $2 WHERE id = $1 RETURNING `+orderColumns,
		id, repository.PaymentKey(id, 1)))
	if err != nil {
		return repository.Order{}, fmt.Errorf("assign payment key: %w", err)
	}

	if err := r.insertEvent(ctx, tx, repository.EventOrderCreated, created, ""); err != nil {
		return repository.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Order{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, o repository.Order) (repository.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders SET user_id = $1, product_id = $2, quantity = $3, updated_at = now(),
		        last_error = CASE WHEN state = 'created' AND (product_id <> $2 OR quantity <> $3) THEN '' ELSE last_error END,
		        attempts = CASE WHEN state = 'created' AND (product_id <> $2 OR quantity <> $3) THEN 0 ELSE attempts END
		 WHERE id = $4
		 RETURNING `+orderColumns,
		o.UserID, o.ProductID, o.Quantity, o.ID))
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Apply - compare-and-set по state: переход выполняется, только если заказ всё ещё в t.From
func (r *Repository) Apply(ctx context.Context, t repository.Transition) (repository.Order, error) {
	if !t.From.Before(t.To) {
		return repository.Order{}, fmt.Errorf("transition %s -> %s is not forward", t.From, t.To)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return repository.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := scanOrder(tx.QueryRow(ctx,
		`UPDATE orders SET
		   state = $3,
		   amount = COALESCE($4, amount),
		   payment_id = COALESCE($5, payment_id),
		   last_error = '',
		   updated_at = now()
		 WHERE id = $1 AND state = $2
		 RETURNING `+orderColumns,
		t.OrderID, string(t.From), string(t.To), t.Amount, t.PaymentID))
	if errors.Is(err, repository.ErrNotFound) {
		// либо заказа нет, либо он уже в другом состоянии
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, t.OrderID).Scan(&exists); err != nil {
			return repository.Order{}, fmt.Errorf("check order: %w", err)
		}
		if exists {
			return repository.Order{}, repository.ErrStaleState
		}
		return repository.Order{}, repository.ErrNotFound
	}
	if err != nil {
		return repository.Order{}, fmt.Errorf("apply transition: %w", err)
	}

	if err := r.insertEvent(ctx, tx, repository.EventOrderStateChanged, updated, t.From); err != nil {
		return repository.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Order{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *Repository) RecordFailure(ctx context.Context, id int64, lastError string) (repository.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders SET attempts = attempts + 1, last_error = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		id, lastError))
}

func (r *Repository) ListStalled(ctx context.Context, f repository.StalledFilter) ([]repository.Order, error) {
	terminal := f.TerminalErrors
	if terminal == nil {
		terminal = []string{}
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE state <> $1 AND updated_at < $2 AND attempts < $3 AND NOT (last_error = ANY($4))
		 ORDER BY updated_at
		 LIMIT $5`,
		string(repository.StateLinked), f.UpdatedBefore, f.MaxAttempts, terminal, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("query stalled orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, o repository.Order, from repository.State) error {
	event, err := repository.NewOrderEvent(r.topic, eventType, o, from, r.now())
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO order_outbox (event_id, event_type, aggregate_id, topic, payload, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.EventID, event.EventType, event.AggregateID, event.Topic, event.Payload, event.Status)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// GetPendingOutboxEvents pending события в порядке записи
func (r *Repository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_id::text, event_type, aggregate_id, topic, payload, status, attempts,
		        COALESCE(last_error, ''), created_at
		 FROM order_outbox
		 WHERE status = $1
		 ORDER BY created_at
		 LIMIT $2`,
		repository.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	events := make([]repository.OutboxEvent, 0)
	for rows.Next() {
		var e repository.OutboxEvent
		if err := rows.Scan(&e.EventID, &e.EventType, &e.AggregateID, &e.Topic, &e.Payload, &e.Status,
			&e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	return r.execOutbox(ctx,
		`UPDATE order_outbox SET status = $2, sent_at = now(), attempts = attempts + 1 WHERE event_id = $1`,
		eventID, repository.OutboxStatusSent)
}

func (r *Repository) MarkOutboxEventFailed(ctx context.Context, eventID, lastError string) error {
	return r.execOutbox(ctx,
		`UPDATE order_outbox SET status = $2, last_error = $3, attempts = attempts + 1 WHERE event_id = $1`,
		eventID, repository.OutboxStatusFailed, lastError)
}

func (r *Repository) ResetOutboxEventPending(ctx context.Context, eventID string) error {
	return r.execOutbox(ctx,
		`UPDATE order_outbox SET status = $2 WHERE event_id = $1`,
		eventID, repository.OutboxStatusPending)
}

func (r *Repository) execOutbox(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrOutboxEventNotFound
	}
	return nil
}

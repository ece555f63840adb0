package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/adminpanel/services/order/internal/repository"
)

// Repository in-memory реализация OrderRepository для тестов и ORDER_STORAGE=memory.
// Все операции под одним mutex, поэтому заказ и его outbox событие меняются атомарно.
type Repository struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]repository.Order
	outbox []repository.OutboxEvent
	topic  string
	now    func() time.Time
}

func NewRepository(topic string) *Repository {
	if topic == "" {
		topic = repository.DefaultEventsTopic
	}
	return &Repository{
		orders: make(map[int64]repository.Order),
		topic:  topic,
		now:    time.Now,
	}
}

// clone копирует указатели, чтобы вызывающий не мог изменить сохранённый заказ
func clone(o repository.Order) repository.Order {
	if o.Amount != nil {
		v := *o.Amount
		o.Amount = &v
	}
	if o.PaymentID != nil {
		v := *o.PaymentID
		o.PaymentID = &v
	}
	return o
}

func (r *Repository) List(ctx context.Context) ([]repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]repository.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return repository.Order{}, repository.ErrNotFound
	}
	return clone(o), nil
}

func (r *Repository) GetByPaymentKey(ctx context.Context, key string) (repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.PaymentKey == key {
			return clone(o), nil
		}
	}
	return repository.Order{}, repository.ErrNotFound
}

func (r *Repository) Create(ctx context.Context, o repository.Order) (repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	r.nextID++
	created := repository.Order{
		ID:         r.nextID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		State:      repository.StateCreated,
		PaymentKey: repository.PaymentKey(r.nextID, 1),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.appendEventLocked(repository.EventOrderCreated, created, ""); err != nil {
		r.nextID--
		return repository.Order{}, err
	}
	r.orders[created.ID] = created
	return clone(created), nil
}

func (r *Repository) Update(ctx context.Context, o repository.Order) (repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.orders[o.ID]
	if !ok {
		return repository.Order{}, repository.ErrNotFound
	}
	// новый товар или количество меняют цену: прошлая ошибка шага pricing больше не актуальна
	if existing.State == repository.StateCreated && (existing.ProductID != o.ProductID || existing.Quantity != o.Quantity) {
		existing.LastError = ""
		existing.Attempts = 0
	}
	existing.UserID = o.UserID
	existing.ProductID = o.ProductID
	existing.Quantity = o.Quantity
	existing.UpdatedAt = r.now().UTC()
	r.orders[o.ID] = existing
	return clone(existing), nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *Repository) Apply(ctx context.Context, t repository.Transition) (repository.Order, error) {
	if !t.From.Before(t.To) {
		return repository.Order{}, fmt.Errorf("transition %s -> %s is not forward", t.From, t.To)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[t.OrderID]
	if !ok {
		return repository.Order{}, repository.ErrNotFound
	}
	if o.State != t.From {
		return repository.Order{}, repository.ErrStaleState
	}

	o.State = t.To
	if t.Amount != nil {
		v := *t.Amount
		o.Amount = &v
	}
	if t.PaymentID != nil {
		v := *t.PaymentID
		o.PaymentID = &v
	}
	o.LastError = ""
	o.UpdatedAt = r.now().UTC()

	if err := r.appendEventLocked(repository.EventOrderStateChanged, o, t.From); err != nil {
		return repository.Order{}, err
	}
	r.orders[o.ID] = o
	return clone(o), nil
}

func (r *Repository) RecordFailure(ctx context.Context, id int64, lastError string) (repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return repository.Order{}, repository.ErrNotFound
	}
	o.Attempts++
	o.LastError = lastError
	o.UpdatedAt = r.now().UTC()
	r.orders[id] = o
	return clone(o), nil
}

func (r *Repository) ListStalled(ctx context.Context, f repository.StalledFilter) ([]repository.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]repository.Order, 0)
	for _, o := range r.orders {
		if o.State == repository.StateLinked || !o.UpdatedAt.Before(f.UpdatedBefore) || o.Attempts >= f.MaxAttempts {
			continue
		}
		if o.LastError != "" && slices.Contains(f.TerminalErrors, o.LastError) {
			continue
		}
		out = append(out, clone(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repository) appendEventLocked(eventType string, o repository.Order, from repository.State) error {
	event, err := repository.NewOrderEvent(r.topic, eventType, o, from, r.now())
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	r.outbox = append(r.outbox, event)
	return nil
}

func (r *Repository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]repository.OutboxEvent, 0)
	for _, e := range r.outbox {
		if e.Status != repository.OutboxStatusPending {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *Repository) MarkOutboxEventSent(ctx context.Context, eventID string) error {
	return r.updateEvent(eventID, func(e *repository.OutboxEvent) {
		e.Status = repository.OutboxStatusSent
		e.Attempts++
	})
}

func (r *Repository) MarkOutboxEventFailed(ctx context.Context, eventID, lastError string) error {
	return r.updateEvent(eventID, func(e *repository.OutboxEvent) {
		e.Status = repository.OutboxStatusFailed
		e.LastError = lastError
		e.Attempts++
	})
}

func (r *Repository) ResetOutboxEventPending(ctx context.Context, eventID string) error {
	return r.updateEvent(eventID, func(e *repository.OutboxEvent) {
		e.Status = repository.OutboxStatusPending
	})
}

func (r *Repository) updateEvent(eventID string, fn func(e *repository.OutboxEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.outbox {
		if r.outbox[i].EventID == eventID {
			fn(&r.outbox[i])
			return nil
		}
	}
	return repository.ErrOutboxEventNotFound
}

// Outbox снимок всех событий (для тестов)
func (r *Repository) Outbox() []repository.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]repository.OutboxEvent, len(r.outbox))
	copy(out, r.outbox)
	return out
}

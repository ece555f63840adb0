package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/adminpanel/services/payment/internal/repository"
)

// Repository хранит платежи в памяти. Используется в тестах HTTP слоя и при PAYMENT_STORAGE=memory.
type Repository struct {
	mu       sync.RWMutex
	nextID   int64
	payments map[int64]repository.Payment
	byKey    map[string]int64
	now      func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		payments: make(map[int64]repository.Payment),
		byKey:    make(map[string]int64),
		now:      time.Now,
	}
}

func (r *Repository) List(ctx context.Context) ([]repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return repository.Payment{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return repository.Payment{}, repository.ErrNotFound
	}
	return r.payments[id], nil
}

func (r *Repository) Create(ctx context.Context, p repository.Payment) (repository.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.IdempotencyKey != "" {
		if _, ok := r.byKey[p.IdempotencyKey]; ok {
			return repository.Payment{}, repository.ErrDuplicateKey
		}
	}

	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = r.now().UTC()
	r.payments[p.ID] = p
	if p.IdempotencyKey != "" {
		r.byKey[p.IdempotencyKey] = p.ID
	}
	return p, nil
}

func (r *Repository) Update(ctx context.Context, p repository.Payment) (repository.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.payments[p.ID]
	if !ok {
		return repository.Payment{}, repository.ErrNotFound
	}
	existing.OrderID = p.OrderID
	existing.Amount = p.Amount
	existing.Status = p.Status
	r.payments[p.ID] = existing
	return existing, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.payments, id)
	if p.IdempotencyKey != "" {
		delete(r.byKey, p.IdempotencyKey)
	}
	return nil
}

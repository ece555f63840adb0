package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/adminpanel/services/product/internal/repository"
)

// Repository реализует ProductRepository в памяти.
// Используется в тестах и при PRODUCT_STORAGE=memory.
type Repository struct {
	mu       sync.RWMutex
	nextID   int64
	products map[int64]repository.Product
	now      func() time.Time
}

// NewRepository создаёт репозиторий, заполненный initial (id берутся из элементов)
func NewRepository(initial ...repository.Product) *Repository {
	r := &Repository{
		products: make(map[int64]repository.Product),
		now:      time.Now,
	}
	for _, p := range initial {
		r.products[p.ID] = p
		if p.ID > r.nextID {
			r.nextID = p.ID
		}
	}
	return r
}

func (r *Repository) List(ctx context.Context) ([]repository.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (repository.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return repository.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *Repository) CreateMany(ctx context.Context, products []repository.Product) ([]repository.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	created := make([]repository.Product, 0, len(products))
	for _, p := range products {
		r.nextID++
		p.ID = r.nextID
		p.CreatedAt = now
		p.UpdatedAt = now
		r.products[p.ID] = p
		created = append(created, p)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, p repository.Product) (repository.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[p.ID]
	if !ok {
		return repository.Product{}, repository.ErrNotFound
	}
	existing.Name = p.Name
	existing.Price = p.Price
	existing.UpdatedAt = r.now()
	r.products[p.ID] = existing
	return existing, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

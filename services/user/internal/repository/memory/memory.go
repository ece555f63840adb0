package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shestoi/adminpanel/services/user/internal/repository"
)

// Repository хранит пользователей в памяти. Используется в тестах и при USER_STORAGE=memory.
type Repository struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]repository.User
	byEmail map[string]int64
	now     func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		users:   make(map[int64]repository.User),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (r *Repository) List(ctx context.Context) ([]repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return r.users[id], nil
}

func (r *Repository) CreateMany(ctx context.Context, users []repository.User) ([]repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// сначала проверяем всю пачку, чтобы не оставить частичную запись
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if _, ok := r.byEmail[u.Email]; ok {
			return nil, repository.ErrAlreadyExists
		}
		if _, ok := seen[u.Email]; ok {
			return nil, repository.ErrAlreadyExists
		}
		seen[u.Email] = struct{}{}
	}

	created := make([]repository.User, 0, len(users))
	for _, u := range users {
		r.nextID++
		u.ID = r.nextID
		u.CreatedAt = r.now()
		r.users[u.ID] = u
		r.byEmail[u.Email] = u.ID
		created = append(created, u)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, u repository.User) (repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	if id, taken := r.byEmail[u.Email]; taken && id != u.ID {
		return repository.User{}, repository.ErrAlreadyExists
	}

	delete(r.byEmail, existing.Email)
	existing.Name = u.Name
	existing.Email = u.Email
	existing.PasswordHash = u.PasswordHash
	r.users[u.ID] = existing
	r.byEmail[existing.Email] = u.ID
	return existing, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	delete(r.byEmail, u.Email)
	return nil
}

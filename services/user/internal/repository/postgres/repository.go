package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/adminpanel/services/user/internal/repository"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, created_at`

// Repository реализует UserRepository используя PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый PostgreSQL репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

func scanUser(row pgx.Row) (repository.User, error) {
	var u repository.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.User{}, repository.ErrNotFound
		}
		return repository.User{}, err
	}
	return u, nil
}

// mapWriteError переводит unique_violation по email в ErrAlreadyExists
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrAlreadyExists
	}
	return err
}

func (r *Repository) List(ctx context.Context) ([]repository.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]repository.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// Get получает пользователя по ID из PostgreSQL
func (r *Repository) Get(ctx context.Context, id int64) (repository.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail получает пользователя по email из PostgreSQL
func (r *Repository) GetByEmail(ctx context.Context, email string) (repository.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// CreateMany вставляет всех пользователей в одной транзакции
func (r *Repository) CreateMany(ctx context.Context, users []repository.User) ([]repository.User, error) {
	created := make([]repository.User, 0, len(users))
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, u := range users {
			c, err := scanUser(tx.QueryRow(ctx,
				`INSERT INTO users (name, email, password_hash)
				 VALUES ($1, $2, $3)
				 RETURNING `+userColumns,
				u.Name, u.Email, u.PasswordHash))
			if err != nil {
				return mapWriteError(err)
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("insert users: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, u repository.User) (repository.User, error) {
	updated, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET name = $1, email = $2, password_hash = $3
		 WHERE id = $4
		 RETURNING `+userColumns,
		u.Name, u.Email, u.PasswordHash, u.ID))
	if err != nil {
		return repository.User{}, mapWriteError(err)
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

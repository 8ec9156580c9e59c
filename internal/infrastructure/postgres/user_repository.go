package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	"github.com/oksasatya/go-registration-form/internal/domain/repository"
)

// UserRepository appends to the users table. Rows are never updated.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Append(ctx context.Context, u *entity.UserRecord) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (full_name, email, password)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`, u.FullName, u.Email, u.Password)

	return row.Scan(&u.ID, &u.CreatedAt)
}

// Count returns the number of stored records.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

var _ repository.UserRepository = (*UserRepository)(nil)

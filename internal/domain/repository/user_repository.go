//go:generate mockgen -source=user_repository.go -destination=../../application/mocks/user_repository_mock.go -package=mocks UserRepository

package repository

import (
	"context"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
)

// UserRepository is the remote "users" collection. It is append-only: records
// are never updated or deleted by this client.
type UserRepository interface {
	// Append stores u and fills its ID and CreatedAt.
	Append(ctx context.Context, u *entity.UserRecord) error
}

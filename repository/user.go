package repository

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

// UserRepository is the credential store. Create must fail with
// domain.ErrDuplicateIdentity when the email is taken, enforced by the backend
// itself so concurrent registrations cannot both succeed.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Package bolt stores users and tasks in a single embedded bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskboard/domain"
	boltinfra "github.com/fastygo/taskboard/internal/infrastructure/bolt"
	"github.com/fastygo/taskboard/repository"
)

type userRepository struct {
	db *bbolt.DB
}

// NewUserRepository returns a bbolt-backed UserRepository. Email uniqueness is
// enforced by the email index bucket inside a single write transaction.
func NewUserRepository(db *bbolt.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err)
	}
	if user.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.WrapError(domain.ErrCodeInternal, "generate user id", err)
		}
		user.ID = id.String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(newUserRecord(user))
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "encode user", err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(boltinfra.BucketUserEmails)
		users := tx.Bucket(boltinfra.BucketUsers)
		if emails == nil || users == nil {
			return bbolt.ErrBucketNotFound
		}
		if emails.Get([]byte(user.Email)) != nil {
			return domain.ErrDuplicateIdentity
		}
		if err := emails.Put([]byte(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return users.Put([]byte(user.ID), payload)
	})
	return domain.Unavailable(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	var user *domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = loadUser(tx, id)
		return err
	})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	var user *domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(boltinfra.BucketUserEmails)
		if emails == nil {
			return bbolt.ErrBucketNotFound
		}
		id := emails.Get([]byte(email))
		if id == nil {
			return domain.ErrUserNotFound
		}
		var err error
		user, err = loadUser(tx, string(id))
		return err
	})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return user, nil
}

func loadUser(tx *bbolt.Tx, id string) (*domain.User, error) {
	users := tx.Bucket(boltinfra.BucketUsers)
	if users == nil {
		return nil, bbolt.ErrBucketNotFound
	}
	raw := users.Get([]byte(id))
	if raw == nil {
		return nil, domain.ErrUserNotFound
	}
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

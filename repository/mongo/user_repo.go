// Package mongo implements the repositories on a MongoDB database.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/fastygo/taskboard/domain"
	mongoinfra "github.com/fastygo/taskboard/internal/infrastructure/mongo"
	"github.com/fastygo/taskboard/repository"
)

type userRepository struct {
	coll *mongodrv.Collection
}

// NewUserRepository relies on the unique email index from EnsureIndexes.
func NewUserRepository(db *mongodrv.Database) repository.UserRepository {
	return &userRepository{coll: db.Collection(mongoinfra.CollectionUsers)}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if user.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.WrapError(domain.ErrCodeInternal, "generate user id", err)
		}
		user.ID = id.String()
	}
	if user.CreatedAt.IsZero() {
		// Mongo stores milliseconds.
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	_, err := r.coll.InsertOne(ctx, userDocument{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.PasswordHash,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		if mongodrv.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateIdentity
		}
		return domain.Unavailable(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Unavailable(err)
	}
	return doc.toDomain(), nil
}

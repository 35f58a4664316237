package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fastygo/taskboard/domain"
	mongoinfra "github.com/fastygo/taskboard/internal/infrastructure/mongo"
	"github.com/fastygo/taskboard/repository"
)

type taskRepository struct {
	coll *mongodrv.Collection
	now  func() time.Time
}

func NewTaskRepository(db *mongodrv.Database) repository.TaskRepository {
	return &taskRepository{coll: db.Collection(mongoinfra.CollectionTasks), now: time.Now}
}

func (r *taskRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	var doc taskDocument
	if err := r.coll.FindOne(ctx, ownedBy(userID, id)).Decode(&doc); err != nil {
		return nil, mapTaskError(err)
	}
	return doc.toDomain(), nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := bson.M{"userId": filter.UserID}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer cursor.Close(ctx)

	tasks := make([]domain.Task, 0)
	for cursor.Next(ctx) {
		var doc taskDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, domain.Unavailable(err)
		}
		tasks = append(tasks, *doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	return tasks, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "generate task id", err)
		}
		task.ID = id.String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = r.timestamp()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	if _, err := r.coll.InsertOne(ctx, newTaskDocument(task)); err != nil {
		return nil, domain.Unavailable(err)
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	set := bson.M{"updatedAt": r.timestamp()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.Priority != nil {
		set["priority"] = string(*patch.Priority)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc taskDocument
	if err := r.coll.FindOneAndUpdate(ctx, ownedBy(userID, id), bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, mapTaskError(err)
	}
	return doc.toDomain(), nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) (*domain.Task, error) {
	var doc taskDocument
	if err := r.coll.FindOneAndDelete(ctx, ownedBy(userID, id)).Decode(&doc); err != nil {
		return nil, mapTaskError(err)
	}
	return doc.toDomain(), nil
}

func ownedBy(userID, id string) bson.M {
	return bson.M{"_id": id, "userId": userID}
}

func mapTaskError(err error) error {
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return domain.ErrTaskNotFound
	}
	return domain.Unavailable(err)
}

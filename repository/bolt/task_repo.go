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

// Tasks live in one nested bucket per owner, keyed by a time-ordered UUIDv7,
// so a cursor walk yields insertion order.
type taskRepository struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewTaskRepository(db *bbolt.DB) repository.TaskRepository {
	return &taskRepository{db: db, now: time.Now}
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	var task *domain.Task
	err := r.db.View(func(tx *bbolt.Tx) error {
		owner := ownerBucket(tx, userID)
		if owner == nil {
			return domain.ErrTaskNotFound
		}
		var err error
		task, err = decodeTask(owner.Get([]byte(id)))
		return err
	})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return task, nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	tasks := make([]domain.Task, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		owner := ownerBucket(tx, filter.UserID)
		if owner == nil {
			return nil
		}

		skipped := 0
		c := owner.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			task, err := decodeTask(v)
			if err != nil {
				return err
			}
			if filter.Status != "" && task.Status != filter.Status {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			tasks = append(tasks, *task)
			if filter.Limit > 0 && len(tasks) >= filter.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return tasks, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "generate task id", err)
		}
		task.ID = id.String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = r.now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "encode task", err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(boltinfra.BucketTasks)
		if root == nil {
			return bbolt.ErrBucketNotFound
		}
		owner, err := root.CreateBucketIfNotExists([]byte(task.UserID))
		if err != nil {
			return err
		}
		return owner.Put([]byte(task.ID), payload)
	})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	var task *domain.Task
	err := r.db.Update(func(tx *bbolt.Tx) error {
		owner := ownerBucket(tx, userID)
		if owner == nil {
			return domain.ErrTaskNotFound
		}
		current, err := decodeTask(owner.Get([]byte(id)))
		if err != nil {
			return err
		}
		patch.Apply(current)
		current.UpdatedAt = r.now().UTC()

		payload, err := json.Marshal(current)
		if err != nil {
			return err
		}
		if err := owner.Put([]byte(id), payload); err != nil {
			return err
		}
		task = current
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return task, nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	var task *domain.Task
	err := r.db.Update(func(tx *bbolt.Tx) error {
		owner := ownerBucket(tx, userID)
		if owner == nil {
			return domain.ErrTaskNotFound
		}
		current, err := decodeTask(owner.Get([]byte(id)))
		if err != nil {
			return err
		}
		if err := owner.Delete([]byte(id)); err != nil {
			return err
		}
		task = current
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return task, nil
}

func ownerBucket(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	root := tx.Bucket(boltinfra.BucketTasks)
	if root == nil || userID == "" {
		return nil
	}
	return root.Bucket([]byte(userID))
}

func decodeTask(raw []byte) (*domain.Task, error) {
	if raw == nil {
		return nil, domain.ErrTaskNotFound
	}
	var task domain.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

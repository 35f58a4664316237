package repository

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

// TaskFilter narrows a listing. UserID is mandatory; a zero Limit returns every match.
type TaskFilter struct {
	UserID string
	Status domain.TaskStatus
	Limit  int
	Offset int
}

// IsFullList reports whether the filter selects the owner's whole task list.
func (f TaskFilter) IsFullList() bool {
	return f.Status == "" && f.Limit <= 0 && f.Offset <= 0
}

// TaskRepository persists tasks. Every method that addresses a single task is
// keyed by both the owner and the task id; a task owned by someone else is
// reported as domain.ErrTaskNotFound.
type TaskRepository interface {
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, userID, id string) (*domain.Task, error)
}

// Package task implements the owner-scoped task operations.
package task

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	appLogger "github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
)

// MaxPageSize caps an explicit list limit.
const MaxPageSize = 500

type CreateInput struct {
	Title       string
	Description string
	Priority    string
}

type ListInput struct {
	Status string
	Limit  int
	Offset int
}

type UseCase struct {
	tasks  repository.TaskRepository
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		logger: logger,
	}
}

// CreateTask stores a new pending task owned by userID. Unknown or missing
// priorities become medium.
func (uc *UseCase) CreateTask(ctx context.Context, userID string, in CreateInput) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" {
		return nil, domain.Invalid("title is required")
	}
	if description == "" {
		return nil, domain.Invalid("description is required")
	}

	created, err := uc.tasks.Create(ctx, &domain.Task{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      domain.StatusPending,
		Priority:    domain.NormalizePriority(in.Priority),
	})
	if err != nil {
		return nil, err
	}

	appLogger.FromContext(ctx, uc.logger).Debug("task created", zap.String("task_id", created.ID))
	return created, nil
}

// ListTasks returns the caller's tasks in creation order.
func (uc *UseCase) ListTasks(ctx context.Context, userID string, in ListInput) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	filter := repository.TaskFilter{UserID: userID, Limit: in.Limit, Offset: in.Offset}
	if in.Status != "" {
		status := domain.TaskStatus(strings.ToLower(strings.TrimSpace(in.Status)))
		if !status.Valid() {
			return nil, domain.Invalid("status must be one of pending, in-progress, completed")
		}
		filter.Status = status
	}
	if in.Limit < 0 || in.Limit > MaxPageSize {
		return nil, domain.Invalid("limit must be between 0 and 500")
	}
	if in.Offset < 0 {
		return nil, domain.Invalid("offset must not be negative")
	}

	return uc.tasks.List(ctx, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrTaskNotFound
	}
	return uc.tasks.GetByID(ctx, userID, id)
}

// UpdateTask applies the set fields of patch. An empty patch returns the task
// unchanged.
func (uc *UseCase) UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrTaskNotFound
	}
	if err := patch.Normalize(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return uc.tasks.GetByID(ctx, userID, id)
	}

	updated, err := uc.tasks.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, err
	}

	appLogger.FromContext(ctx, uc.logger).Debug("task updated", zap.String("task_id", id))
	return updated, nil
}

// DeleteTask removes the task and returns what was deleted.
func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrTaskNotFound
	}

	deleted, err := uc.tasks.Delete(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	appLogger.FromContext(ctx, uc.logger).Debug("task deleted", zap.String("task_id", id))
	return deleted, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type cachedTaskRepository struct {
	next   repository.TaskRepository
	client *redislib.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger

	// Owners whose last generation bump failed. Their lists bypass the cache
	// until a bump succeeds.
	mu    sync.Mutex
	stale map[string]struct{}
}

// NewCachedTaskRepository wraps next with a read-through cache of each owner's
// full task list. Entries are keyed by a per-owner generation that every write
// bumps, so a list read before a write is never served after it. Cache failures
// are logged and never reach the caller.
func NewCachedTaskRepository(next repository.TaskRepository, client *redislib.Client, ttl time.Duration, logger *zap.Logger) repository.TaskRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedTaskRepository{
		next:   next,
		client: client,
		prefix: "tasks:",
		ttl:    ttl,
		logger: logger,
		stale:  make(map[string]struct{}),
	}
}

func (r *cachedTaskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	return r.next.GetByID(ctx, userID, id)
}

func (r *cachedTaskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	if !filter.IsFullList() {
		return r.next.List(ctx, filter)
	}

	gen, ok := r.generation(ctx, filter.UserID)
	if !ok {
		return r.next.List(ctx, filter)
	}

	key := r.key(filter.UserID, gen)
	if cached, ok := r.load(ctx, key); ok {
		return cached, nil
	}

	tasks, err := r.next.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, tasks)
	return tasks, nil
}

func (r *cachedTaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	created, err := r.next.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, created.UserID)
	return created, nil
}

func (r *cachedTaskRepository) Update(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	updated, err := r.next.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, userID)
	return updated, nil
}

func (r *cachedTaskRepository) Delete(ctx context.Context, userID, id string) (*domain.Task, error) {
	deleted, err := r.next.Delete(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, userID)
	return deleted, nil
}

// generation returns the owner's current cache generation. ok is false when
// the cache must not be used for this read.
func (r *cachedTaskRepository) generation(ctx context.Context, userID string) (int64, bool) {
	if r.isStale(userID) {
		if !r.bump(ctx, userID) {
			return 0, false
		}
	}

	gen, err := r.client.Get(ctx, r.generationKey(userID)).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redislib.Nil):
		return 0, true
	default:
		r.logger.Warn("task cache generation read failed", zap.String("user_id", userID), zap.Error(err))
		return 0, false
	}
}

func (r *cachedTaskRepository) load(ctx context.Context, key string) ([]domain.Task, bool) {
	result, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redislib.Nil) {
			r.logger.Warn("task cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	tasks := make([]domain.Task, 0)
	if err := json.Unmarshal(result, &tasks); err != nil {
		r.logger.Warn("task cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return tasks, true
}

func (r *cachedTaskRepository) store(ctx context.Context, key string, tasks []domain.Task) {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("task cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *cachedTaskRepository) invalidate(ctx context.Context, userID string) {
	if !r.bump(ctx, userID) {
		r.markStale(userID)
	}
}

// bump moves the owner to a fresh generation and clears the stale mark.
func (r *cachedTaskRepository) bump(ctx context.Context, userID string) bool {
	if err := r.client.Incr(ctx, r.generationKey(userID)).Err(); err != nil {
		r.logger.Warn("task cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	r.mu.Lock()
	delete(r.stale, userID)
	r.mu.Unlock()
	return true
}

func (r *cachedTaskRepository) markStale(userID string) {
	r.mu.Lock()
	r.stale[userID] = struct{}{}
	r.mu.Unlock()
}

func (r *cachedTaskRepository) isStale(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stale[userID]
	return ok
}

func (r *cachedTaskRepository) key(userID string, gen int64) string {
	return fmt.Sprintf("%slist:%s:%d", r.prefix, userID, gen)
}

func (r *cachedTaskRepository) generationKey(userID string) string {
	return fmt.Sprintf("%sgen:%s", r.prefix, userID)
}

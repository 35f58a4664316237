package redis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/config"
	boltinfra "github.com/fastygo/taskboard/internal/infrastructure/bolt"
	redisinfra "github.com/fastygo/taskboard/internal/infrastructure/redis"
	"github.com/fastygo/taskboard/repository"
	boltrepo "github.com/fastygo/taskboard/repository/bolt"
)

// Runs against a real server when TASKBOARD_TEST_REDIS_URL is set.
func openTestClient(t *testing.T) *redislib.Client {
	t.Helper()
	url := os.Getenv("TASKBOARD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TASKBOARD_TEST_REDIS_URL not set")
	}
	client, err := redisinfra.NewClient(context.Background(), config.RedisConfig{URL: url})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newBackingRepo(t *testing.T) repository.TaskRepository {
	t.Helper()
	db, err := boltinfra.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return boltrepo.NewTaskRepository(db)
}

func newCacheUser(t *testing.T, client *redislib.Client) string {
	t.Helper()
	userID := fmt.Sprintf("cache-test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, "tasks:list:"+userID+":*").Result()
		client.Del(ctx, append(keys, "tasks:gen:"+userID)...)
	})
	return userID
}

func newTask(userID, title string) *domain.Task {
	return &domain.Task{UserID: userID, Title: title, Description: "d", Status: domain.StatusPending, Priority: domain.PriorityLow}
}

// pausingRepo holds the first List call after it has read the store, until
// release is closed.
type pausingRepo struct {
	repository.TaskRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingRepo) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	tasks, err := p.TaskRepository.List(ctx, filter)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return tasks, err
}

func TestCachedListIsInvalidatedByWrites(t *testing.T) {
	client := openTestClient(t)
	repo := NewCachedTaskRepository(newBackingRepo(t), client, time.Minute, nil)
	ctx := context.Background()
	userID := newCacheUser(t, client)

	first, err := repo.Create(ctx, newTask(userID, "a"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.List(ctx, repository.TaskFilter{UserID: userID})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	gen, err := client.Get(ctx, "tasks:gen:"+userID).Int64()
	if err != nil {
		t.Fatalf("read generation: %v", err)
	}
	if n, _ := client.Exists(ctx, fmt.Sprintf("tasks:list:%s:%d", userID, gen)).Result(); n != 1 {
		t.Fatal("expected list to be cached")
	}

	title := "renamed"
	if _, err := repo.Update(ctx, userID, first.ID, domain.TaskPatch{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	next, err := client.Get(ctx, "tasks:gen:"+userID).Int64()
	if err != nil || next <= gen {
		t.Fatalf("expected generation to advance past %d, got %d (%v)", gen, next, err)
	}

	list, err = repo.List(ctx, repository.TaskFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Title != "renamed" {
		t.Fatalf("stale list %+v", list)
	}
}

func TestListReadBeforeDeleteIsNotServedAfterIt(t *testing.T) {
	client := openTestClient(t)
	backing := &pausingRepo{
		TaskRepository: newBackingRepo(t),
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	repo := NewCachedTaskRepository(backing, client, time.Minute, nil)
	ctx := context.Background()
	userID := newCacheUser(t, client)

	// Created directly so the first cached List is the one that pauses.
	task, err := backing.TaskRepository.Create(ctx, newTask(userID, "doomed"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := repo.List(ctx, repository.TaskFilter{UserID: userID})
		done <- err
	}()

	<-backing.read
	if _, err := repo.Delete(ctx, userID, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	close(backing.release)
	if err := <-done; err != nil {
		t.Fatalf("list: %v", err)
	}

	list, err := repo.List(ctx, repository.TaskFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", list)
	}
}

func TestFailedInvalidationBypassesCache(t *testing.T) {
	client := openTestClient(t)
	down := redislib.NewClient(&redislib.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer down.Close()

	repo := NewCachedTaskRepository(newBackingRepo(t), client, time.Minute, nil)
	cached := repo.(*cachedTaskRepository)
	ctx := context.Background()
	userID := newCacheUser(t, client)

	task, err := repo.Create(ctx, newTask(userID, "a"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if list, err := repo.List(ctx, repository.TaskFilter{UserID: userID}); err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}

	// The delete lands in the store while the cache is unreachable.
	cached.client = down
	if _, err := repo.Delete(ctx, userID, task.ID); err != nil {
		t.Fatalf("delete should not surface cache errors: %v", err)
	}
	cached.client = client

	list, err := repo.List(ctx, repository.TaskFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected fresh empty list, got %+v", list)
	}
	if cached.isStale(userID) {
		t.Fatal("expected stale mark to clear once the cache is reachable")
	}
}

func TestCacheFailureFallsThrough(t *testing.T) {
	// Nothing listens on this port; every cache call fails fast.
	client := redislib.NewClient(&redislib.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	repo := NewCachedTaskRepository(newBackingRepo(t), client, time.Minute, nil)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTask("u1", "a")); err != nil {
		t.Fatalf("create should not surface cache errors: %v", err)
	}
	list, err := repo.List(ctx, repository.TaskFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list should not surface cache errors: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}
}

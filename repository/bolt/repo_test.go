package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskboard/domain"
	boltinfra "github.com/fastygo/taskboard/internal/infrastructure/bolt"
	"github.com/fastygo/taskboard/repository"
)

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := boltinfra.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserCreateAndLookup(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	user := &domain.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "digest"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be assigned, got %+v", user)
	}

	byEmail, err := repo.GetByEmail(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.PasswordHash != "digest" {
		t.Fatalf("unexpected user %+v", byEmail)
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != "ann@example.com" {
		t.Fatalf("unexpected email %q", byID.Email)
	}

	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.User{Name: "A", Email: "dup@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, &domain.User{Name: "B", Email: "dup@example.com", PasswordHash: "y"})
	if !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate identity, got %v", err)
	}
}

func TestUserCreateConcurrentSameEmail(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, &domain.User{Name: "race", Email: "race@example.com", PasswordHash: "h"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrDuplicateIdentity) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one registration to succeed, got %d", succeeded)
	}
}

func seedTasks(t *testing.T, repo repository.TaskRepository, userID string, titles ...string) []*domain.Task {
	t.Helper()
	var out []*domain.Task
	for _, title := range titles {
		task, err := repo.Create(context.Background(), &domain.Task{
			UserID:      userID,
			Title:       title,
			Description: title + " description",
			Status:      domain.StatusPending,
			Priority:    domain.PriorityMedium,
		})
		if err != nil {
			t.Fatalf("create task %q: %v", title, err)
		}
		out = append(out, task)
	}
	return out
}

func TestTaskListOrderAndFilters(t *testing.T) {
	repo := NewTaskRepository(openTestDB(t))
	ctx := context.Background()

	created := seedTasks(t, repo, "u1", "one", "two", "three", "four")
	status := domain.StatusCompleted
	if _, err := repo.Update(ctx, "u1", created[1].ID, domain.TaskPatch{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := repo.List(ctx, repository.TaskFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(all))
	}
	for i, want := range []string{"one", "two", "three", "four"} {
		if all[i].Title != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, all[i].Title)
		}
	}

	page, err := repo.List(ctx, repository.TaskFilter{UserID: "u1", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].Title != "two" || page[1].Title != "three" {
		t.Fatalf("unexpected page %+v", page)
	}

	completed, err := repo.List(ctx, repository.TaskFilter{UserID: "u1", Status: domain.StatusCompleted})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 || completed[0].Title != "two" {
		t.Fatalf("unexpected filtered list %+v", completed)
	}

	empty, err := repo.List(ctx, repository.TaskFilter{UserID: "nobody"})
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty)
	}
}

func TestTaskOwnershipIsolation(t *testing.T) {
	repo := NewTaskRepository(openTestDB(t))
	ctx := context.Background()

	task := seedTasks(t, repo, "owner", "private")[0]
	title := "hijacked"

	if _, err := repo.GetByID(ctx, "intruder", task.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("get: expected not found, got %v", err)
	}
	if _, err := repo.Update(ctx, "intruder", task.ID, domain.TaskPatch{Title: &title}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("update: expected not found, got %v", err)
	}
	if _, err := repo.Delete(ctx, "intruder", task.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("delete: expected not found, got %v", err)
	}

	got, err := repo.GetByID(ctx, "owner", task.ID)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if got.Title != "private" {
		t.Fatalf("task was modified by another user: %+v", got)
	}
}

func TestTaskUpdateAndDelete(t *testing.T) {
	repo := NewTaskRepository(openTestDB(t))
	ctx := context.Background()

	task := seedTasks(t, repo, "u1", "draft")[0]
	title := "final"
	priority := domain.PriorityHigh

	updated, err := repo.Update(ctx, "u1", task.ID, domain.TaskPatch{Title: &title, Priority: &priority})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "final" || updated.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.Description != "draft description" || updated.Status != domain.StatusPending {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.UpdatedAt.Before(task.UpdatedAt) {
		t.Fatal("updated_at went backwards")
	}

	deleted, err := repo.Delete(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != task.ID || deleted.Title != "final" {
		t.Fatalf("unexpected deleted task %+v", deleted)
	}
	if _, err := repo.Delete(ctx, "u1", task.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func TestPing(t *testing.T) {
	if err := NewPinger(openTestDB(t)).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

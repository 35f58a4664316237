package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/config"
	mongoinfra "github.com/fastygo/taskboard/internal/infrastructure/mongo"
	"github.com/fastygo/taskboard/repository"

	mongodrv "go.mongodb.org/mongo-driver/mongo"
)

// Runs against a real server when TASKBOARD_TEST_MONGODB_URI is set.
func openTestDatabase(t *testing.T) *mongodrv.Database {
	t.Helper()
	uri := os.Getenv("TASKBOARD_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TASKBOARD_TEST_MONGODB_URI not set")
	}

	ctx := context.Background()
	name := fmt.Sprintf("taskboard_test_%d", time.Now().UnixNano())
	client, db, err := mongoinfra.Connect(ctx, config.MongoConfig{URI: uri, Database: name}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	if err := mongoinfra.EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return db
}

func TestMongoUserDuplicateEmail(t *testing.T) {
	db := openTestDatabase(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.User{Name: "A", Email: "a@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &domain.User{Name: "B", Email: "a@example.com", PasswordHash: "h"}); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate identity, got %v", err)
	}
	got, err := repo.GetByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "A" || got.PasswordHash != "h" {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestMongoTaskLifecycle(t *testing.T) {
	db := openTestDatabase(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if _, err := repo.Create(ctx, &domain.Task{UserID: "u1", Title: title, Description: "d", Status: domain.StatusPending, Priority: domain.PriorityLow}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tasks, err := repo.List(ctx, repository.TaskFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 || tasks[0].Title != "one" || tasks[2].Title != "three" {
		t.Fatalf("unexpected list %+v", tasks)
	}

	status := domain.StatusCompleted
	updated, err := repo.Update(ctx, "u1", tasks[0].ID, domain.TaskPatch{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusCompleted || updated.Title != "one" {
		t.Fatalf("unexpected update %+v", updated)
	}

	if _, err := repo.Delete(ctx, "u2", tasks[0].ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if _, err := repo.Delete(ctx, "u1", tasks[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, "u1", tasks[0].ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

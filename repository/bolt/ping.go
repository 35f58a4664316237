package bolt

import (
	"context"

	bbolt "go.etcd.io/bbolt"

	boltinfra "github.com/fastygo/taskboard/internal/infrastructure/bolt"
	"github.com/fastygo/taskboard/repository"
)

type pinger struct {
	db *bbolt.DB
}

func NewPinger(db *bbolt.DB) repository.Pinger {
	return pinger{db: db}
}

// Ping opens a read transaction and checks the buckets are still there.
func (p pinger) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(boltinfra.BucketUsers) == nil || tx.Bucket(boltinfra.BucketTasks) == nil {
			return bbolt.ErrBucketNotFound
		}
		return nil
	})
}

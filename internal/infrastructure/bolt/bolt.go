package bolt

import (
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
)

// Top-level buckets used by the embedded document store.
var (
	BucketUsers      = []byte("users")
	BucketUserEmails = []byte("user_emails")
	BucketTasks      = []byte("tasks")
)

// Open initializes the BoltDB file and ensures every bucket exists.
func Open(path string) (*bbolt.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := EnsureBuckets(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureBuckets creates the top-level buckets if they are missing.
func EnsureBuckets(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{BucketUsers, BucketUserEmails, BucketTasks} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Size returns the number of keys in a top-level bucket.
func Size(db *bbolt.DB, bucket []byte) (int, error) {
	if db == nil {
		return 0, bbolt.ErrDatabaseNotOpen
	}
	var count int
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return bbolt.ErrBucketNotFound
		}
		count = b.Stats().KeyN
		return nil
	})
	return count, err
}

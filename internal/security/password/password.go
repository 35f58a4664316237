// Package password hashes and verifies user passwords with bcrypt.
//
// Concurrent hashing is capped by a weighted semaphore. Callers wait for a
// slot under their request context.
package password

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/fastygo/taskboard/domain"
)

// DefaultCost keeps a single hash in the tens of milliseconds on current hardware.
const DefaultCost = bcrypt.DefaultCost

// MaxLength is the longest input bcrypt accepts.
const MaxLength = 72

// Hasher produces and checks salted bcrypt digests.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher with the given cost and concurrency limit.
// Out-of-range values fall back to defaults.
func NewHasher(cost, maxConcurrent int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Cost returns the bcrypt work factor in use.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt digest of plaintext.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > MaxLength {
		return "", domain.Invalid("password must be at most 72 bytes")
	}
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Invalid("password must be at most 72 bytes")
		}
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. An empty digest is compared
// against a throwaway hash and always reports false.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	target := []byte(digest)
	if digest == "" {
		target = h.dummyDigest()
	}

	err := bcrypt.CompareHashAndPassword(target, []byte(plaintext))
	switch {
	case err == nil:
		// bcrypt only reads the first 72 bytes; Hash never accepts longer input.
		return digest != "" && len(plaintext) <= MaxLength, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrHashTooShort), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, err
	}
}

func (h *Hasher) acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "password hashing cancelled", err)
	}
	return nil
}

func (h *Hasher) dummyDigest() []byte {
	h.dummyOnce.Do(func() {
		digest, err := bcrypt.GenerateFromPassword([]byte("taskboard-timing-equaliser"), h.cost)
		if err != nil {
			digest = []byte{}
		}
		h.dummy = digest
	})
	return h.dummy
}

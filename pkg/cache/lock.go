package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout reports that a scoped lock could not be acquired in time.
// Callers fall back to unlocked best-effort I/O rather than deadlocking.
var ErrLockTimeout = errors.New("cache: lock acquisition timed out")

// Locker serializes access to a durable cache file. The file-backed
// implementation coordinates multiple processes sharing one cache directory;
// the in-memory implementation gives a single process the same scoped
// acquire-with-timeout semantics.
type Locker interface {
	// Acquire takes the lock guarding path, waiting at most timeout.
	// The returned release func must always be called.
	Acquire(path string, timeout time.Duration) (release func(), err error)
}

type fileLocker struct{}

// NewFileLocker returns a Locker backed by per-file advisory locks.
func NewFileLocker() Locker { return fileLocker{} }

func (fileLocker) Acquire(path string, timeout time.Duration) (func(), error) {
	fl := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ok, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			err = ErrLockTimeout
		}
		return nil, err
	}
	return func() { _ = fl.Unlock() }, nil
}

type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemLocker returns an in-process Locker for single-process deployments
// and tests.
func NewMemLocker() Locker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (m *memLocker) Acquire(path string, timeout time.Duration) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[path]
	if !ok {
		l = &sync.Mutex{}
		m.locks[path] = l
	}
	m.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if l.TryLock() {
			return l.Unlock, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

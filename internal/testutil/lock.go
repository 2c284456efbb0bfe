// internal/testutil/lock.go
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/lock"
)

// LocalLocker serializes per key with in-process mutexes. It stands in for
// the redis locker in service tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// Acquired counts Acquire calls per key.
	Acquired map[string]int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks:    make(map[string]*sync.Mutex),
		Acquired: make(map[string]int),
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (lock.Lease, error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.Acquired[key]++
	l.mu.Unlock()

	m.Lock()
	return &localLease{mu: m}, nil
}

type localLease struct {
	mu   *sync.Mutex
	once sync.Once
}

func (l *localLease) Release(_ context.Context) error {
	l.once.Do(l.mu.Unlock)
	return nil
}

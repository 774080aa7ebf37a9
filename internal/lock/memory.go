package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memLease struct {
	token   string
	expires time.Time
}

// MemoryLocker serialises holders inside one process.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memLease
	now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: map[string]memLease{}, now: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	_ = ctx
	token := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expires) {
		return nil, ErrHeld
	}
	l.leases[key] = memLease{token: token, expires: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[key]; ok && cur.token == token {
			delete(l.leases, key)
		}
		return nil
	}, nil
}

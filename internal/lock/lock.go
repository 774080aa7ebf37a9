package lock

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("lock: held by another holder")

// Locker is a lease-based mutual exclusion keyed by name. The lease expires on
// its own after ttl so a crashed holder cannot wedge the pipeline.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Package tx decouples services from the storage transaction implementation.
package tx

import (
	"context"
)

// Manager runs fn inside a storage transaction.
// If fn returns an error the transaction is rolled back, otherwise committed.
// Nested calls reuse the transaction already present in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop runs fn directly. Used by stores without transactions (in-memory).
type Nop struct{}

func (Nop) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Locker is implemented by managers that can serialize work on a key across
// processes. The lock is held until the surrounding transaction ends.
type Locker interface {
	LockKey(ctx context.Context, key string) error
}

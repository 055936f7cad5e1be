// Package vault provides the transactional boundary for a single owner
// vault. Every mutating operation (submit, approve, deny, revoke, expiry
// observation) runs inside RunInTx so that at most one decision is recorded
// per request, ledger sequence numbers stay gap-free, and index updates are
// visible before the mutating call returns.
package vault

import (
	"context"
	"sync"
	"time"

	dErrors "medvault/pkg/domain-errors"
)

// Tx serializes mutations against one vault. Implementations may wrap a
// database transaction or, in-memory, a coarse lock.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a vault transaction so no operation blocks
// indefinitely.
const defaultTxTimeout = 5 * time.Second

// MemoryTx serializes vault mutations with a single mutex. The vault is a
// single-writer domain, so one lock per vault is sufficient.
type MemoryTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewMemoryTx() *MemoryTx {
	return &MemoryTx{}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "vault transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "vault transaction aborted: context cancelled")
	}

	return fn(ctx)
}

package main

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "medvault/pkg/domain-errors"
	txcontext "medvault/pkg/platform/tx"
)

const defaultVaultTxTimeout = 5 * time.Second

// postgresVaultTx runs vault mutations inside a database transaction while a
// process-local mutex preserves the single-writer guarantee the ledger's
// sequence assignment relies on.
type postgresVaultTx struct {
	db      *sql.DB
	mu      sync.Mutex
	timeout time.Duration
}

func newPostgresVaultTx(db *sql.DB) *postgresVaultTx {
	return &postgresVaultTx{db: db}
}

func (t *postgresVaultTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "vault transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultVaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "vault transaction aborted: context cancelled")
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "begin vault transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "commit vault transaction")
	}
	return nil
}

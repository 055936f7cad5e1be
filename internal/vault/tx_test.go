package vault

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/testutil"
)

func TestMemoryTxSerializesMutations(t *testing.T) {
	tx := NewMemoryTx()

	testutil.Given(t, "two goroutines mutating the same counter in transactions", func(t *testing.T) {
		var counter int
		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := tx.RunInTx(context.Background(), func(context.Context) error {
					counter++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		testutil.Then(t, "every increment is applied", func(t *testing.T) {
			assert.Equal(t, 50, counter)
		})
	})
}

func TestMemoryTxPropagatesFnError(t *testing.T) {
	tx := NewMemoryTx()
	sentinelErr := errors.New("boom")

	err := tx.RunInTx(context.Background(), func(context.Context) error {
		return sentinelErr
	})
	assert.ErrorIs(t, err, sentinelErr)
}

func TestMemoryTxRejectsCancelledContext(t *testing.T) {
	tx := NewMemoryTx()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tx.RunInTx(ctx, func(context.Context) error {
		t.Fatal("fn must not run with a cancelled context")
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestMemoryTxAppliesDefaultDeadline(t *testing.T) {
	tx := NewMemoryTx()

	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "transactions are always bounded")
		assert.LessOrEqual(t, time.Until(deadline), defaultTxTimeout)
		return nil
	})
	require.NoError(t, err)
}

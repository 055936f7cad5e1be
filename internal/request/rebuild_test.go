package request

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"medvault/internal/catalog"
	"medvault/internal/ledger"
	"medvault/internal/platform/metrics"
	"medvault/internal/vault"
	id "medvault/pkg/domain"
	"medvault/pkg/requestcontext"
)

func TestRebuildReproducesRegistryFromLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	cat := catalog.NewInMemoryStore()
	live := NewInMemoryStore()
	led := ledger.NewInMemoryStore()
	service := NewService(live, cat, led, vault.NewMemoryTx(), metrics.NewForTesting())

	submit := func(offset time.Duration) *DataAccessRequest {
		in := validInput()
		for _, item := range in.Items {
			require.NoError(t, cat.Add(ctx, &catalog.Item{
				ID:       item.ItemID,
				Name:     "blood panel",
				Category: id.CategoryLab,
				Source:   id.SourceProfile,
			}))
		}
		req, err := service.Submit(requestcontext.WithTime(ctx, now.Add(offset)), in)
		require.NoError(t, err)
		return req
	}

	approved := submit(0)
	denied := submit(time.Hour)
	pending := submit(2 * time.Hour)

	// Terminal decisions in the exact shape the consent engine appends them.
	decidedAt := now.Add(3 * time.Hour)
	grantID := id.GrantID(uuid.New())
	expiresAt := decidedAt.Add(30 * 24 * time.Hour)

	_, err := led.Append(ctx, ledger.Event{
		Timestamp: decidedAt,
		Kind:      ledger.EventApproved,
		RequestID: approved.ID,
		GrantID:   grantID,
		Requester: approved.Requester.ID,
		ItemIDs:   approved.ItemIDs(),
		ExpiresAt: &expiresAt,
	})
	require.NoError(t, err)
	approved.Status = StatusApproved
	approved.DecidedAt = &decidedAt
	approved.GrantID = &grantID
	require.NoError(t, live.Update(ctx, approved))

	_, err = led.Append(ctx, ledger.Event{
		Timestamp: decidedAt,
		Kind:      ledger.EventDenied,
		RequestID: denied.ID,
	})
	require.NoError(t, err)
	denied.Status = StatusDenied
	denied.DecidedAt = &decidedAt
	require.NoError(t, live.Update(ctx, denied))

	rebuilt := NewInMemoryStore()
	require.NoError(t, Rebuild(ctx, rebuilt, led))

	want, err := live.List(ctx, Filter{})
	require.NoError(t, err)
	got, err := rebuilt.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, want, got, "replaying the ledger from empty must reproduce the registry")

	for _, req := range []*DataAccessRequest{approved, denied, pending} {
		fromLive, err := live.Get(ctx, req.ID)
		require.NoError(t, err)
		fromRebuilt, err := rebuilt.Get(ctx, req.ID)
		require.NoError(t, err)
		require.Equal(t, fromLive, fromRebuilt)
	}
}

func TestRebuildRejectsReceiptWithoutPayload(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemoryStore()

	_, err := led.Append(ctx, ledger.Event{
		Kind:      ledger.EventRequestReceived,
		RequestID: id.RequestID(uuid.New()),
		Requester: id.RequesterID(uuid.New()),
	})
	require.NoError(t, err)

	err = Rebuild(ctx, NewInMemoryStore(), led)
	require.Error(t, err, "a receipt without its submission payload cannot be folded")
}

func TestRebuildIgnoresGrantLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemoryStore()

	_, err := led.Append(ctx, ledger.Event{Kind: ledger.EventRevoked, GrantID: id.GrantID(uuid.New())})
	require.NoError(t, err)
	_, err = led.Append(ctx, ledger.Event{Kind: ledger.EventExpired, GrantID: id.GrantID(uuid.New())})
	require.NoError(t, err)

	rebuilt := NewInMemoryStore()
	require.NoError(t, Rebuild(ctx, rebuilt, led))

	listed, err := rebuilt.List(ctx, Filter{})
	require.NoError(t, err)
	require.Empty(t, listed)
}

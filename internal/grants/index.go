package grants

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"medvault/internal/ledger"
	id "medvault/pkg/domain"
)

// Index folds ledger events into a per-item view of active grants. Reads
// are lock-free with respect to writers in the sense required by the vault
// model: they always observe a consistent snapshot under a read lock and
// never block on ledger I/O.
type Index struct {
	mu      sync.RWMutex
	grants  map[id.GrantID]*Grant
	byItem  map[id.ItemID]map[id.GrantID]struct{}
	lastSeq uint64
}

func NewIndex() *Index {
	return &Index{
		grants: make(map[id.GrantID]*Grant),
		byItem: make(map[id.ItemID]map[id.GrantID]struct{}),
	}
}

// Apply folds one ledger event into the index. Events at or below the last
// applied sequence are ignored, making redelivery harmless; events are
// otherwise expected in sequence order.
func (x *Index) Apply(event ledger.Event) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if event.Seq <= x.lastSeq {
		return nil
	}

	switch event.Kind {
	case ledger.EventApproved:
		expiresAt := event.ExpiresAt
		if expiresAt != nil {
			t := *expiresAt
			expiresAt = &t
		}
		grant := &Grant{
			ID:        event.GrantID,
			RequestID: event.RequestID,
			Requester: event.Requester,
			ItemIDs:   append([]id.ItemID(nil), event.ItemIDs...),
			GrantedAt: event.Timestamp,
			ExpiresAt: expiresAt,
		}
		x.grants[grant.ID] = grant
		for _, itemID := range grant.ItemIDs {
			if x.byItem[itemID] == nil {
				x.byItem[itemID] = make(map[id.GrantID]struct{})
			}
			x.byItem[itemID][grant.ID] = struct{}{}
		}

	case ledger.EventRevoked:
		grant, ok := x.grants[event.GrantID]
		if !ok {
			return fmt.Errorf("revoked event %d references unknown grant %s", event.Seq, event.GrantID)
		}
		if grant.RevokedAt == nil {
			t := event.Timestamp
			grant.RevokedAt = &t
		}

	case ledger.EventExpired:
		grant, ok := x.grants[event.GrantID]
		if !ok {
			return fmt.Errorf("expired event %d references unknown grant %s", event.Seq, event.GrantID)
		}
		grant.ExpiryObserved = true

	case ledger.EventRequestReceived, ledger.EventDenied:
		// Request lifecycle events carry no grant state.
	}

	x.lastSeq = event.Seq
	return nil
}

// IsGranted reports whether the requester currently holds an unexpired,
// unrevoked grant covering the item. Expiry is evaluated lazily against the
// recorded ExpiresAt; no background sweep is involved.
func (x *Index) IsGranted(itemID id.ItemID, requesterID id.RequesterID, now time.Time) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for grantID := range x.byItem[itemID] {
		grant := x.grants[grantID]
		if grant.Requester == requesterID && grant.ActiveAt(now) {
			return true
		}
	}
	return false
}

// Get returns a copy of the grant, or false when unknown.
func (x *Index) Get(grantID id.GrantID) (*Grant, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	grant, ok := x.grants[grantID]
	if !ok {
		return nil, false
	}
	return grant.clone(), true
}

// UnobservedExpiries lists grants whose expiry has become wall-clock true
// but has not yet been recorded in the ledger. Revoked grants are excluded:
// their loss of access is already on record. Results are ordered by grant
// id so the emitted events are deterministic.
func (x *Index) UnobservedExpiries(now time.Time) []id.GrantID {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []id.GrantID
	for grantID, grant := range x.grants {
		if grant.ExpiryObserved || grant.RevokedAt != nil {
			continue
		}
		if grant.ExpiresAt != nil && !grant.ExpiresAt.After(now) {
			out = append(out, grantID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// LastSeq reports the sequence number of the last applied event.
func (x *Index) LastSeq() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.lastSeq
}

// Rebuild folds ledger events from the position after the last applied
// sequence. Called with a fresh index it performs a full deterministic
// rebuild from sequence 0; called on a checkpointed index it resumes replay.
func (x *Index) Rebuild(ctx context.Context, store ledger.Store) error {
	it, err := store.ReadFrom(ctx, x.LastSeq()+1)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	defer it.Close()

	for it.Next(ctx) {
		if err := x.Apply(it.Event()); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("replay ledger: %w", err)
	}
	return nil
}

package grants

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	id "medvault/pkg/domain"
)

// Snapshot is a serializable copy of the index state at a ledger position.
// Checkpointing is an optimization: restoring a snapshot and replaying the
// remainder of the ledger must produce the same index as a cold rebuild.
type Snapshot struct {
	LastSeq uint64          `json:"last_seq"`
	Grants  []SnapshotGrant `json:"grants"`
}

// SnapshotGrant is the wire form of a grant inside a snapshot.
type SnapshotGrant struct {
	ID             string     `json:"id"`
	RequestID      string     `json:"request_id"`
	Requester      string     `json:"requester"`
	ItemIDs        []string   `json:"item_ids"`
	GrantedAt      time.Time  `json:"granted_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	ExpiryObserved bool       `json:"expiry_observed,omitempty"`
}

// Checkpoint persists and restores index snapshots.
type Checkpoint interface {
	// Save overwrites the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns the stored snapshot, or nil when none exists.
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot captures the current index state. Grants are ordered by id so
// the serialized form is stable.
func (x *Index) Snapshot() Snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()

	snap := Snapshot{LastSeq: x.lastSeq}
	for _, grant := range x.grants {
		items := make([]string, len(grant.ItemIDs))
		for i, itemID := range grant.ItemIDs {
			items[i] = itemID.String()
		}
		snap.Grants = append(snap.Grants, SnapshotGrant{
			ID:             grant.ID.String(),
			RequestID:      grant.RequestID.String(),
			Requester:      grant.Requester.String(),
			ItemIDs:        items,
			GrantedAt:      grant.GrantedAt,
			ExpiresAt:      cloneTime(grant.ExpiresAt),
			RevokedAt:      cloneTime(grant.RevokedAt),
			ExpiryObserved: grant.ExpiryObserved,
		})
	}
	sort.Slice(snap.Grants, func(i, j int) bool { return snap.Grants[i].ID < snap.Grants[j].ID })
	return snap
}

// Restore replaces the index state with the snapshot contents. Used before
// Rebuild to resume replay from the checkpointed position.
func (x *Index) Restore(snap Snapshot) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	grantsByID := make(map[id.GrantID]*Grant, len(snap.Grants))
	byItem := make(map[id.ItemID]map[id.GrantID]struct{})

	for _, sg := range snap.Grants {
		grantID, err := parseAs[id.GrantID](sg.ID)
		if err != nil {
			return err
		}
		requestID, err := parseAs[id.RequestID](sg.RequestID)
		if err != nil {
			return err
		}
		requesterID, err := parseAs[id.RequesterID](sg.Requester)
		if err != nil {
			return err
		}
		items := make([]id.ItemID, len(sg.ItemIDs))
		for i, raw := range sg.ItemIDs {
			itemID, err := parseAs[id.ItemID](raw)
			if err != nil {
				return err
			}
			items[i] = itemID
		}
		grant := &Grant{
			ID:             grantID,
			RequestID:      requestID,
			Requester:      requesterID,
			ItemIDs:        items,
			GrantedAt:      sg.GrantedAt,
			ExpiresAt:      cloneTime(sg.ExpiresAt),
			RevokedAt:      cloneTime(sg.RevokedAt),
			ExpiryObserved: sg.ExpiryObserved,
		}
		grantsByID[grant.ID] = grant
		for _, itemID := range items {
			if byItem[itemID] == nil {
				byItem[itemID] = make(map[id.GrantID]struct{})
			}
			byItem[itemID][grant.ID] = struct{}{}
		}
	}

	x.grants = grantsByID
	x.byItem = byItem
	x.lastSeq = snap.LastSeq
	return nil
}

func parseAs[T ~[16]byte](s string) (T, error) {
	var zero T
	u, err := uuid.Parse(s)
	if err != nil {
		return zero, err
	}
	return T(u), nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

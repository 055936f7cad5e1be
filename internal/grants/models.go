// Package grants maintains the queryable projection of currently-active
// grants. The index is a pure fold over ledger events: rebuilding it from
// sequence 0 against the same ledger contents always yields an identical
// index.
package grants

import (
	"time"

	id "medvault/pkg/domain"
)

// Grant is the immutable record of what an owner approved: a fixed item
// set with an optional expiry. Widening access requires a new grant, never
// mutation; the only state that accrues is revocation and the one-way
// expiry observation.
type Grant struct {
	ID        id.GrantID
	RequestID id.RequestID
	Requester id.RequesterID
	ItemIDs   []id.ItemID
	GrantedAt time.Time
	ExpiresAt *time.Time
	RevokedAt *time.Time

	// ExpiryObserved memoizes that an Expired event has been appended for
	// this grant, so observation is recorded exactly once.
	ExpiryObserved bool
}

// Covers reports whether the grant includes the item.
func (g *Grant) Covers(itemID id.ItemID) bool {
	for _, item := range g.ItemIDs {
		if item == itemID {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the grant confers access at the given instant:
// not revoked, and either without expiry or not yet expired.
func (g *Grant) ActiveAt(now time.Time) bool {
	if g.RevokedAt != nil {
		return false
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return false
	}
	return true
}

func (g *Grant) clone() *Grant {
	copied := *g
	copied.ItemIDs = append([]id.ItemID(nil), g.ItemIDs...)
	if g.ExpiresAt != nil {
		t := *g.ExpiresAt
		copied.ExpiresAt = &t
	}
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		copied.RevokedAt = &t
	}
	return &copied
}

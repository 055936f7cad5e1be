// Package ledger is the append-only, ordered log of every consent decision.
// It is the single durable source of truth: the request registry and the
// grant index are derivable caches that must be reconstructible by replaying
// the ledger from empty state. Entries are never deleted or edited.
package ledger

import (
	"time"

	id "medvault/pkg/domain"
)

// EventKind discriminates ledger entries.
type EventKind string

const (
	// EventRequestReceived records a request entering the registry.
	EventRequestReceived EventKind = "request_received"
	// EventApproved records the owner approving a subset of requested items.
	// The event carries the full grant so replay needs no other source.
	EventApproved EventKind = "approved"
	// EventDenied records a terminal denial. No grant is created.
	EventDenied EventKind = "denied"
	// EventRevoked records owner-initiated loss of access for a grant.
	EventRevoked EventKind = "revoked"
	// EventExpired records the first observation of a grant's expiry.
	// Appended once per grant; query-time expiry itself is computed from
	// the ExpiresAt recorded on the approval event.
	EventExpired EventKind = "expired"
)

// Event is the only thing ever appended to the ledger. Seq is assigned by
// the store at append time and is strictly monotonic with no gaps within a
// vault. Fields beyond Kind are populated per kind:
//
//	request_received: RequestID, Requester, Request
//	approved:         RequestID, Requester, GrantID, ItemIDs, ExpiresAt
//	denied:           RequestID
//	revoked:          GrantID
//	expired:          GrantID
type Event struct {
	Seq       uint64
	Timestamp time.Time
	Kind      EventKind
	RequestID id.RequestID
	GrantID   id.GrantID
	Requester id.RequesterID
	ItemIDs   []id.ItemID
	ExpiresAt *time.Time
	// Request carries the requester's full submission on receipt events so
	// the registry can be rebuilt from the ledger alone.
	Request *RequestDetails
	// Client is a short description of the caller's client, recorded for
	// audit enrichment only. Never part of decision logic.
	Client string
}

// RequestDetails is everything a requester submitted beyond the identifiers
// already on the event. Recorded once on the receipt event and never updated.
type RequestDetails struct {
	RequesterName string
	RequesterType id.RequesterType
	Purpose       string
	Items         []RequestedItem
	Format        string
	Validity      string
	Retention     string
}

// RequestedItem is one line item of a recorded submission.
type RequestedItem struct {
	ItemID  id.ItemID
	Enabled bool
	Access  id.AccessType
}

func (d *RequestDetails) clone() *RequestDetails {
	if d == nil {
		return nil
	}
	copied := *d
	copied.Items = make([]RequestedItem, len(d.Items))
	copy(copied.Items, d.Items)
	return &copied
}

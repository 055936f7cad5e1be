// Package request holds inbound data-access requests and their lifecycle
// state. The registry is a derivable cache: the ledger remains the durable
// source of truth for every transition.
package request

import (
	"time"

	id "medvault/pkg/domain"
)

// Status is the request lifecycle state. A request receives exactly one
// terminal owner decision; approved and denied are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// ParseStatus validates an externally supplied status filter value.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusDenied:
		return Status(s), true
	}
	return "", false
}

// Requester is the external entity asking for access.
type Requester struct {
	ID   id.RequesterID
	Name string
	Type id.RequesterType
}

// RequestedItem is one line item inside a request. Enabled is the default
// proposed by the requester; it never binds the owner's decision.
type RequestedItem struct {
	ItemID  id.ItemID
	Enabled bool
	Access  id.AccessType
}

// DataAccessRequest is an inbound request naming which items the requester
// wants and why. Format, Validity, and Retention are disclosure metadata:
// informational for the owner, except that Validity seeds the grant expiry
// at approval time.
//
// DecidedAt and GrantID are populated only once a terminal decision exists;
// GrantID only when that decision is an approval.
type DataAccessRequest struct {
	ID        id.RequestID
	Requester Requester
	Purpose   string
	Items     []RequestedItem
	Format    string
	Validity  string
	Retention string
	CreatedAt time.Time
	Status    Status
	DecidedAt *time.Time
	GrantID   *id.GrantID
}

// ItemIDs returns the requested item ids in request order.
func (r *DataAccessRequest) ItemIDs() []id.ItemID {
	out := make([]id.ItemID, len(r.Items))
	for i, item := range r.Items {
		out[i] = item.ItemID
	}
	return out
}

// HasItem reports whether the request names the given item.
func (r *DataAccessRequest) HasItem(itemID id.ItemID) bool {
	for _, item := range r.Items {
		if item.ItemID == itemID {
			return true
		}
	}
	return false
}

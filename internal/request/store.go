package request

import (
	"context"

	id "medvault/pkg/domain"
)

// Filter narrows List results. A nil/empty Statuses slice matches all.
type Filter struct {
	Statuses []Status
}

func (f Filter) matches(status Status) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Store persists requests. Creating an existing id returns
// sentinel.ErrConflict; Get and Update return sentinel.ErrNotFound for
// unknown ids.
type Store interface {
	Create(ctx context.Context, req *DataAccessRequest) error
	Get(ctx context.Context, requestID id.RequestID) (*DataAccessRequest, error)
	Update(ctx context.Context, req *DataAccessRequest) error
	// List returns a snapshot ordered by CreatedAt ascending, ties broken
	// by id, for determinism.
	List(ctx context.Context, filter Filter) ([]*DataAccessRequest, error)
}

package request

import (
	"context"
	"sort"
	"sync"

	id "medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
)

// InMemoryStore keeps requests in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*DataAccessRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]*DataAccessRequest)}
}

func (s *InMemoryStore) Create(_ context.Context, req *DataAccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, requestID id.RequestID) (*DataAccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *InMemoryStore) Update(_ context.Context, req *DataAccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*DataAccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*DataAccessRequest
	for _, req := range s.requests {
		if filter.matches(req.Status) {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func cloneRequest(req *DataAccessRequest) *DataAccessRequest {
	copied := *req
	copied.Items = make([]RequestedItem, len(req.Items))
	copy(copied.Items, req.Items)
	if req.DecidedAt != nil {
		t := *req.DecidedAt
		copied.DecidedAt = &t
	}
	if req.GrantID != nil {
		g := *req.GrantID
		copied.GrantID = &g
	}
	return &copied
}

package ledger

import (
	"context"
	"sync"
	"time"

	id "medvault/pkg/domain"
)

// InMemoryStore keeps the ledger in an append-only slice.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.Seq = uint64(len(s.events)) + 1
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.ItemIDs = cloneItemIDs(event.ItemIDs)
	event.Request = event.Request.clone()
	s.events = append(s.events, event)
	return event, nil
}

func (s *InMemoryStore) ReadFrom(_ context.Context, from uint64) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Snapshot at creation time so iteration is consistent and restartable
	// even while new events are appended.
	var snapshot []Event
	for _, e := range s.events {
		if e.Seq >= from {
			snapshot = append(snapshot, e)
		}
	}
	return &sliceIterator{events: snapshot}, nil
}

func (s *InMemoryStore) LastSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.events)), nil
}

type sliceIterator struct {
	events  []Event
	current Event
	pos     int
	err     error
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.pos >= len(it.events) {
		return false
	}
	it.current = it.events[it.pos]
	it.pos++
	return true
}

func (it *sliceIterator) Event() Event { return it.current }
func (it *sliceIterator) Err() error   { return it.err }
func (it *sliceIterator) Close() error { return nil }

func cloneItemIDs(ids []id.ItemID) []id.ItemID {
	if ids == nil {
		return nil
	}
	out := make([]id.ItemID, len(ids))
	copy(out, ids)
	return out
}

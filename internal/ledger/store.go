package ledger

import "context"

// Store persists ledger events. Implementations assign sequence numbers at
// append time; the consent engine guarantees a single writer per vault, so
// stores do not need their own cross-append coordination.
type Store interface {
	// Append assigns the next sequence number and a timestamp (when unset)
	// and persists the event. A storage error is fatal for the operation:
	// the caller must not assume a partial write and must retry the whole
	// logical operation.
	Append(ctx context.Context, event Event) (Event, error)

	// ReadFrom returns an iterator over events with Seq >= from, in sequence
	// order, against a consistent snapshot. Iteration is cancellable at any
	// event boundary and restartable: re-reading from the same sequence
	// yields byte-for-byte identical events.
	ReadFrom(ctx context.Context, from uint64) (Iterator, error)

	// LastSeq reports the highest assigned sequence number, 0 when empty.
	LastSeq(ctx context.Context) (uint64, error)
}

// Iterator walks ledger events in sequence order, rows-style:
//
//	for it.Next(ctx) {
//	    event := it.Event()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator interface {
	Next(ctx context.Context) bool
	Event() Event
	Err() error
	Close() error
}

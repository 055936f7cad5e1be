package request

import (
	"context"
	"fmt"

	"medvault/internal/ledger"
)

// Rebuild reconstructs the registry by folding the ledger from sequence 1
// into an empty store. Receipt events recreate pending requests from the
// recorded submission payload; approval and denial events fold the terminal
// decision back in. The result must match what Get and List returned on the
// live registry, event for event.
func Rebuild(ctx context.Context, store Store, led ledger.Store) error {
	it, err := led.ReadFrom(ctx, 1)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	defer func() { _ = it.Close() }()

	for it.Next(ctx) {
		if err := fold(ctx, store, it.Event()); err != nil {
			return err
		}
	}
	return it.Err()
}

func fold(ctx context.Context, store Store, event ledger.Event) error {
	switch event.Kind {
	case ledger.EventRequestReceived:
		if event.Request == nil {
			return fmt.Errorf("receipt event %d carries no submission payload", event.Seq)
		}
		return store.Create(ctx, &DataAccessRequest{
			ID: event.RequestID,
			Requester: Requester{
				ID:   event.Requester,
				Name: event.Request.RequesterName,
				Type: event.Request.RequesterType,
			},
			Purpose:   event.Request.Purpose,
			Items:     fromLedgerItems(event.Request.Items),
			Format:    event.Request.Format,
			Validity:  event.Request.Validity,
			Retention: event.Request.Retention,
			CreatedAt: event.Timestamp,
			Status:    StatusPending,
		})
	case ledger.EventApproved:
		return foldDecision(ctx, store, event, StatusApproved)
	case ledger.EventDenied:
		return foldDecision(ctx, store, event, StatusDenied)
	}
	// Revocations and expiries change grants, never request state.
	return nil
}

func foldDecision(ctx context.Context, store Store, event ledger.Event, status Status) error {
	req, err := store.Get(ctx, event.RequestID)
	if err != nil {
		return fmt.Errorf("decision event %d names unknown request %s: %w", event.Seq, event.RequestID, err)
	}
	req.Status = status
	decidedAt := event.Timestamp
	req.DecidedAt = &decidedAt
	if status == StatusApproved {
		grantID := event.GrantID
		req.GrantID = &grantID
	}
	return store.Update(ctx, req)
}

func toLedgerItems(items []RequestedItem) []ledger.RequestedItem {
	out := make([]ledger.RequestedItem, len(items))
	for i, item := range items {
		out[i] = ledger.RequestedItem{ItemID: item.ItemID, Enabled: item.Enabled, Access: item.Access}
	}
	return out
}

func fromLedgerItems(items []ledger.RequestedItem) []RequestedItem {
	out := make([]RequestedItem, len(items))
	for i, item := range items {
		out[i] = RequestedItem{ItemID: item.ItemID, Enabled: item.Enabled, Access: item.Access}
	}
	return out
}

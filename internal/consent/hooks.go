package consent

import (
	"context"
	"time"

	id "medvault/pkg/domain"
)

// Outcome labels a terminal owner action for enrichment sinks.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDenied   Outcome = "denied"
	OutcomeRevoked  Outcome = "revoked"
)

// Decision is the notification payload handed to enrichment hooks after a
// decision is durably recorded.
type Decision struct {
	RequestID id.RequestID
	GrantID   id.GrantID
	Outcome   Outcome
	ItemIDs   []id.ItemID
	DecidedAt time.Time
}

// DecisionHook receives decision notifications. Hooks are decoration: they
// must not block, and they can neither veto nor delay a decision.
// Implementations are expected to hand off asynchronously.
type DecisionHook interface {
	OnDecision(ctx context.Context, decision Decision)
}

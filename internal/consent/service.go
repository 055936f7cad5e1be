// Package consent is the decision authority. All owner-facing actions pass
// through it: it validates against the registry and catalog, appends the
// immutable ledger event, and folds the event into the grant index before
// the call returns.
package consent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"medvault/internal/grants"
	"medvault/internal/ledger"
	"medvault/internal/platform/metrics"
	"medvault/internal/request"
	"medvault/internal/vault"
	id "medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/platform/sentinel"
	"medvault/pkg/requestcontext"
)

// Service applies owner decisions to pending requests and manages grant
// lifecycle. Mutations run under the vault transaction so decisions are
// recorded at most once and ledger sequences stay gap-free.
type Service struct {
	requests request.Store
	ledger   ledger.Store
	index    *grants.Index
	tx       vault.Tx
	hooks    []DecisionHook
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func NewService(
	requests request.Store,
	led ledger.Store,
	index *grants.Index,
	tx vault.Tx,
	logger *slog.Logger,
	m *metrics.Metrics,
	hooks ...DecisionHook,
) *Service {
	return &Service{
		requests: requests,
		ledger:   led,
		index:    index,
		tx:       tx,
		hooks:    hooks,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("medvault/consent"),
	}
}

// ApproveSelected grants access to exactly the chosen subset of a pending
// request's items. The grant's item set is fixed at creation; widening
// access later requires a new request.
func (s *Service) ApproveSelected(ctx context.Context, requestID id.RequestID, chosen []id.ItemID) (*grants.Grant, error) {
	ctx, span := s.tracer.Start(ctx, "consent.approve_selected",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	defer span.End()

	if len(chosen) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "chosen item set must not be empty")
	}
	chosen = dedupeItems(chosen)

	var grant *grants.Grant
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		req, err := s.getForDecision(ctx, requestID)
		if err != nil {
			return err
		}
		for _, itemID := range chosen {
			if !req.HasItem(itemID) {
				return dErrors.Newf(dErrors.CodeValidation, "item %s is not part of request %s", itemID, requestID)
			}
		}

		now := requestcontext.Now(ctx)
		expiresAt := parseValidity(req.Validity, now)

		event, err := s.ledger.Append(ctx, ledger.Event{
			Timestamp: now,
			Kind:      ledger.EventApproved,
			RequestID: req.ID,
			GrantID:   id.GrantID(uuid.New()),
			Requester: req.Requester.ID,
			ItemIDs:   chosen,
			ExpiresAt: expiresAt,
			Client:    clientLabel(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "append approval event")
		}

		req.Status = request.StatusApproved
		req.DecidedAt = &event.Timestamp
		grantID := event.GrantID
		req.GrantID = &grantID
		if err := s.requests.Update(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "update request")
		}

		if err := s.index.Apply(event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "apply approval to index")
		}
		applied, _ := s.index.Get(event.GrantID)
		grant = applied
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RequestsApproved.Inc()
		s.metrics.LedgerAppends.Inc()
	}
	s.logger.InfoContext(ctx, "request approved",
		"request_id", requestID.String(),
		"grant_id", grant.ID.String(),
		"items", len(grant.ItemIDs),
	)
	s.notify(ctx, Decision{
		RequestID: requestID,
		GrantID:   grant.ID,
		Outcome:   OutcomeApproved,
		ItemIDs:   append([]id.ItemID(nil), grant.ItemIDs...),
		DecidedAt: grant.GrantedAt,
	})
	return grant, nil
}

// ApproveAll grants access to every item the request names.
func (s *Service) ApproveAll(ctx context.Context, requestID id.RequestID) (*grants.Grant, error) {
	req, err := s.getSnapshot(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// The full set is re-validated against the pending state inside the
	// transaction; a racing decision still loses with InvalidState.
	return s.ApproveSelected(ctx, requestID, req.ItemIDs())
}

// Deny records a terminal denial. No grant is created; denied requests can
// never be approved later.
func (s *Service) Deny(ctx context.Context, requestID id.RequestID) error {
	ctx, span := s.tracer.Start(ctx, "consent.deny",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	defer span.End()

	var decidedAt Decision
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		req, err := s.getForDecision(ctx, requestID)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		event, err := s.ledger.Append(ctx, ledger.Event{
			Timestamp: now,
			Kind:      ledger.EventDenied,
			RequestID: req.ID,
			Client:    clientLabel(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "append denial event")
		}

		req.Status = request.StatusDenied
		req.DecidedAt = &event.Timestamp
		if err := s.requests.Update(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "update request")
		}
		if err := s.index.Apply(event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "apply denial to index")
		}
		decidedAt = Decision{RequestID: requestID, Outcome: OutcomeDenied, DecidedAt: event.Timestamp}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RequestsDenied.Inc()
		s.metrics.LedgerAppends.Inc()
	}
	s.logger.InfoContext(ctx, "request denied", "request_id", requestID.String())
	s.notify(ctx, decidedAt)
	return nil
}

// Revoke withdraws an active grant. Revoking a grant that is already
// revoked or expired is a successful no-op, so caller-side retries are safe.
func (s *Service) Revoke(ctx context.Context, grantID id.GrantID) error {
	ctx, span := s.tracer.Start(ctx, "consent.revoke",
		trace.WithAttributes(attribute.String("grant_id", grantID.String())))
	defer span.End()

	var revoked bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		grant, ok := s.index.Get(grantID)
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "grant %s not found", grantID)
		}
		if grant.RevokedAt != nil {
			return nil
		}

		now := requestcontext.Now(ctx)
		if grant.ExpiresAt != nil && !grant.ExpiresAt.After(now) {
			// Already expired: access is gone, nothing to revoke. Record the
			// expiry observation if this is the first sighting.
			if !grant.ExpiryObserved {
				return s.observeExpiry(ctx, grantID, now)
			}
			return nil
		}

		event, err := s.ledger.Append(ctx, ledger.Event{
			Timestamp: now,
			Kind:      ledger.EventRevoked,
			GrantID:   grantID,
			Client:    clientLabel(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "append revocation event")
		}
		if err := s.index.Apply(event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "apply revocation to index")
		}
		revoked = true
		return nil
	})
	if err != nil {
		return err
	}

	if revoked {
		if s.metrics != nil {
			s.metrics.GrantsRevoked.Inc()
			s.metrics.LedgerAppends.Inc()
		}
		s.logger.InfoContext(ctx, "grant revoked", "grant_id", grantID.String())
		s.notify(ctx, Decision{
			GrantID:   grantID,
			Outcome:   OutcomeRevoked,
			DecidedAt: requestcontext.Now(ctx),
		})
	}
	return nil
}

// IsGranted evaluates whether the requester currently holds access to the
// item. Expiry is computed lazily from the recorded expiry instant; the
// first observation of an expiry additionally appends an Expired event so
// the audit trail shows when the loss of access became visible.
func (s *Service) IsGranted(ctx context.Context, itemID id.ItemID, requesterID id.RequesterID) (bool, error) {
	now := requestcontext.Now(ctx)

	if pending := s.index.UnobservedExpiries(now); len(pending) > 0 {
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			// Re-list under the lock; another caller may have recorded some.
			for _, grantID := range s.index.UnobservedExpiries(now) {
				if err := s.observeExpiry(ctx, grantID, now); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			// The answer is still computable from the recorded expiry; the
			// observation will be retried on the next query.
			s.logger.WarnContext(ctx, "expiry observation failed", "error", err.Error())
		}
	}

	granted := s.index.IsGranted(itemID, requesterID, now)
	if s.metrics != nil {
		outcome := "denied"
		if granted {
			outcome = "granted"
		}
		s.metrics.GrantChecks.WithLabelValues(outcome).Inc()
	}
	return granted, nil
}

// Grant returns a copy of the grant, or NotFound.
func (s *Service) Grant(ctx context.Context, grantID id.GrantID) (*grants.Grant, error) {
	grant, ok := s.index.Get(grantID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "grant %s not found", grantID)
	}
	return grant, nil
}

// observeExpiry appends the one-time Expired event for a grant and folds it
// into the index. Callers hold the vault transaction.
func (s *Service) observeExpiry(ctx context.Context, grantID id.GrantID, now time.Time) error {
	event, err := s.ledger.Append(ctx, ledger.Event{
		Timestamp: now,
		Kind:      ledger.EventExpired,
		GrantID:   grantID,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "append expiry event")
	}
	if err := s.index.Apply(event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "apply expiry to index")
	}
	if s.metrics != nil {
		s.metrics.ExpiriesObserved.Inc()
		s.metrics.LedgerAppends.Inc()
	}
	return nil
}

// getForDecision loads a request and enforces that it is still pending.
func (s *Service) getForDecision(ctx context.Context, requestID id.RequestID) (*request.DataAccessRequest, error) {
	req, err := s.getSnapshot(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != request.StatusPending {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "request %s already decided (%s)", requestID, req.Status)
	}
	return req, nil
}

func (s *Service) getSnapshot(ctx context.Context, requestID id.RequestID) (*request.DataAccessRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "request %s not found", requestID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "get request")
	}
	return req, nil
}

// notify fans a decision out to enrichment hooks. Hooks are decoration and
// never influence the outcome.
func (s *Service) notify(ctx context.Context, decision Decision) {
	for _, hook := range s.hooks {
		hook.OnDecision(ctx, decision)
	}
}

func dedupeItems(items []id.ItemID) []id.ItemID {
	seen := make(map[id.ItemID]struct{}, len(items))
	out := make([]id.ItemID, 0, len(items))
	for _, itemID := range items {
		if _, ok := seen[itemID]; ok {
			continue
		}
		seen[itemID] = struct{}{}
		out = append(out, itemID)
	}
	return out
}

func clientLabel(ctx context.Context) string {
	info := requestcontext.Client(ctx)
	if info.Browser == "" && info.OS == "" {
		return ""
	}
	return strings.TrimSpace(info.Browser + " " + info.OS)
}

package request

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"medvault/internal/catalog"
	"medvault/internal/ledger"
	"medvault/internal/platform/metrics"
	"medvault/internal/vault"
	id "medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/platform/sentinel"
	"medvault/pkg/requestcontext"
)

// Service is the request registry. Submit validates against the item
// catalog, records the request, and appends the receipt to the ledger under
// the vault's transactional boundary.
type Service struct {
	store   Store
	catalog catalog.Store
	ledger  ledger.Store
	tx      vault.Tx
	metrics *metrics.Metrics
}

func NewService(store Store, cat catalog.Store, led ledger.Store, tx vault.Tx, m *metrics.Metrics) *Service {
	return &Service{store: store, catalog: cat, ledger: led, tx: tx, metrics: m}
}

// SubmitInput carries everything a requester provides. Item ids must exist
// in the catalog at submission time.
type SubmitInput struct {
	Requester Requester
	Purpose   string
	Items     []RequestedItem
	Format    string
	Validity  string
	Retention string
}

// Submit validates and registers a new request as pending, appending a
// receipt event to the ledger. Validation failures reject the request
// before any ledger write.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*DataAccessRequest, error) {
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose must not be empty")
	}
	if len(in.Items) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "requested items must not be empty")
	}
	if in.Requester.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "requester id is required")
	}

	seen := make(map[id.ItemID]bool, len(in.Items))
	for _, item := range in.Items {
		if seen[item.ItemID] {
			return nil, dErrors.Newf(dErrors.CodeValidation, "duplicate requested item %s", item.ItemID)
		}
		seen[item.ItemID] = true

		if _, err := s.catalog.Resolve(ctx, item.ItemID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Newf(dErrors.CodeValidation, "unknown item %s", item.ItemID)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "resolve item")
		}
	}

	now := requestcontext.Now(ctx)
	req := &DataAccessRequest{
		ID:        id.RequestID(uuid.New()),
		Requester: in.Requester,
		Purpose:   in.Purpose,
		Items:     append([]RequestedItem(nil), in.Items...),
		Format:    in.Format,
		Validity:  in.Validity,
		Retention: in.Retention,
		CreatedAt: now,
		Status:    StatusPending,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "create request")
		}
		_, err := s.ledger.Append(ctx, ledger.Event{
			Timestamp: now,
			Kind:      ledger.EventRequestReceived,
			RequestID: req.ID,
			Requester: req.Requester.ID,
			Request: &ledger.RequestDetails{
				RequesterName: req.Requester.Name,
				RequesterType: req.Requester.Type,
				Purpose:       req.Purpose,
				Items:         toLedgerItems(req.Items),
				Format:        req.Format,
				Validity:      req.Validity,
				Retention:     req.Retention,
			},
			Client: clientLabel(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "append receipt event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RequestsSubmitted.Inc()
		s.metrics.LedgerAppends.Inc()
	}
	return req, nil
}

// Get returns the request or a NotFound domain error.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*DataAccessRequest, error) {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "request %s not found", requestID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "get request")
	}
	return req, nil
}

// List returns a snapshot ordered by creation time ascending, ties broken
// by id.
func (s *Service) List(ctx context.Context, filter Filter) ([]*DataAccessRequest, error) {
	reqs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list requests")
	}
	return reqs, nil
}

func clientLabel(ctx context.Context) string {
	info := requestcontext.Client(ctx)
	if info.Browser == "" && info.OS == "" {
		return ""
	}
	return strings.TrimSpace(info.Browser + " " + info.OS)
}

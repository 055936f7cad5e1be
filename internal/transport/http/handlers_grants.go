package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"medvault/internal/transport/http/shared"
	id "medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
)

func (h *Handler) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	grantID, err := id.ParseGrantID(chi.URLParam(r, "grantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	grant, err := h.consent.Grant(ctx, grantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toGrantResponse(grant))
}

// handleRevoke withdraws an active grant. Revoking an already-inactive grant
// succeeds without effect, so retries are safe.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	grantID, err := id.ParseGrantID(chi.URLParam(r, "grantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.consent.Revoke(ctx, grantID); err != nil {
		h.logDecisionError(ctx, "revoke", grantID.String(), err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGrantCheck answers the access question: does this requester
// currently hold access to this item.
func (h *Handler) handleGrantCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID, err := id.ParseItemID(r.URL.Query().Get("itemId"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	requesterID, err := id.ParseRequesterID(r.URL.Query().Get("requesterId"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	granted, err := h.consent.IsGranted(ctx, itemID, requesterID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

// handleReadLedger streams ledger events from a sequence position, for audit
// display and external reconciliation.
func (h *Handler) handleReadLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from := uint64(1)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "from must be a non-negative integer"))
			return
		}
		from = parsed
	}

	it, err := h.ledger.ReadFrom(ctx, from)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read ledger", "error", err.Error())
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeStorage, "read ledger"))
		return
	}
	defer func() { _ = it.Close() }()

	events := make([]eventResponse, 0, 64)
	for it.Next(ctx) {
		events = append(events, toEventResponse(it.Event()))
	}
	if err := it.Err(); err != nil {
		h.logger.ErrorContext(ctx, "ledger iteration failed", "error", err.Error())
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeStorage, "read ledger"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

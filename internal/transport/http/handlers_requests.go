package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medvault/internal/request"
	"medvault/internal/transport/http/shared"
	id "medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/requestcontext"
)

// handleSubmitRequest registers a requester's data-access request as pending.
func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload submitRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	in, err := payload.toSubmitInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := h.requests.Submit(ctx, in)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.WarnContext(ctx, "request rejected",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "failed to submit request", "error", err.Error())
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toRequestResponse(req))
}

// handleListRequests returns requests ordered by creation time, optionally
// filtered by one or more status values.
func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter request.Filter
	for _, raw := range r.URL.Query()["status"] {
		status, ok := request.ParseStatus(raw)
		if !ok {
			shared.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid status %q", raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	reqs, err := h.requests.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list requests", "error", err.Error())
		shared.WriteError(w, err)
		return
	}

	out := make([]requestResponse, len(reqs))
	for i, req := range reqs {
		out[i] = toRequestResponse(req)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := h.requests.Get(ctx, requestID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

// handleApprove approves the chosen subset of a pending request's items.
func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var payload approveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	chosen, err := payload.parseItemIDs()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	grant, err := h.consent.ApproveSelected(ctx, requestID, chosen)
	if err != nil {
		h.logDecisionError(ctx, "approve", requestID.String(), err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toGrantResponse(grant))
}

// handleApproveAll approves every item the request names.
func (h *Handler) handleApproveAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	grant, err := h.consent.ApproveAll(ctx, requestID)
	if err != nil {
		h.logDecisionError(ctx, "approve-all", requestID.String(), err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toGrantResponse(grant))
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.consent.Deny(ctx, requestID); err != nil {
		h.logDecisionError(ctx, "deny", requestID.String(), err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logDecisionError logs decision failures at a severity matching their
// nature: expected rejections warn, everything else errors.
func (h *Handler) logDecisionError(ctx context.Context, action, subject string, err error) {
	expected := dErrors.HasCode(err, dErrors.CodeValidation) ||
		dErrors.HasCode(err, dErrors.CodeNotFound) ||
		dErrors.HasCode(err, dErrors.CodeInvalidState)
	if expected {
		h.logger.WarnContext(ctx, "decision rejected",
			"action", action,
			"subject", subject,
			"error", err.Error(),
		)
		return
	}
	h.logger.ErrorContext(ctx, "decision failed",
		"action", action,
		"subject", subject,
		"error", err.Error(),
	)
}

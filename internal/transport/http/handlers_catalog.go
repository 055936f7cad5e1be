package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"medvault/internal/catalog"
	"medvault/internal/transport/http/shared"
	id "medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/platform/sentinel"
)

// handleListItems returns the owner's shareable items, ordered by name.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.catalog.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list items", "error", err.Error())
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeStorage, "list items"))
		return
	}

	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = toItemResponse(item)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

// handleAddItem registers a new catalog item for the authenticated owner.
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "item name must not be empty"))
		return
	}
	category, err := id.ParseItemCategory(payload.Category)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	source, err := id.ParseItemSource(payload.Source)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	item := &catalog.Item{
		ID:       id.ItemID(uuid.New()),
		Name:     payload.Name,
		Category: category,
		Source:   source,
	}
	if err := h.catalog.Add(ctx, item); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidState, "item already exists"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to add item", "error", err.Error())
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeStorage, "add item"))
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toItemResponse(item))
}

package httptransport

import (
	"time"

	"medvault/internal/catalog"
	"medvault/internal/grants"
	"medvault/internal/ledger"
	"medvault/internal/request"
	id "medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
)

type itemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

func toItemResponse(item *catalog.Item) itemResponse {
	return itemResponse{
		ID:       item.ID.String(),
		Name:     item.Name,
		Category: item.Category.String(),
		Source:   string(item.Source),
	}
}

type addItemRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

type requesterPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type requestedItemPayload struct {
	ItemID  string `json:"itemId"`
	Enabled bool   `json:"enabled"`
	Access  string `json:"access"`
}

type submitRequest struct {
	Requester requesterPayload       `json:"requester"`
	Purpose   string                 `json:"purpose"`
	Items     []requestedItemPayload `json:"items"`
	Format    string                 `json:"format,omitempty"`
	Validity  string                 `json:"validity,omitempty"`
	Retention string                 `json:"retention,omitempty"`
}

// toSubmitInput validates the payload's identifier and enum fields; the
// service validates the business rules.
func (p submitRequest) toSubmitInput() (request.SubmitInput, error) {
	requesterID, err := id.ParseRequesterID(p.Requester.ID)
	if err != nil {
		return request.SubmitInput{}, err
	}
	requesterType, err := id.ParseRequesterType(p.Requester.Type)
	if err != nil {
		return request.SubmitInput{}, err
	}

	items := make([]request.RequestedItem, 0, len(p.Items))
	for _, item := range p.Items {
		itemID, err := id.ParseItemID(item.ItemID)
		if err != nil {
			return request.SubmitInput{}, err
		}
		access := id.AccessRead
		if item.Access != "" {
			access, err = id.ParseAccessType(item.Access)
			if err != nil {
				return request.SubmitInput{}, err
			}
		}
		items = append(items, request.RequestedItem{
			ItemID:  itemID,
			Enabled: item.Enabled,
			Access:  access,
		})
	}

	return request.SubmitInput{
		Requester: request.Requester{
			ID:   requesterID,
			Name: p.Requester.Name,
			Type: requesterType,
		},
		Purpose:   p.Purpose,
		Items:     items,
		Format:    p.Format,
		Validity:  p.Validity,
		Retention: p.Retention,
	}, nil
}

type requestResponse struct {
	ID        string                 `json:"id"`
	Requester requesterPayload       `json:"requester"`
	Purpose   string                 `json:"purpose"`
	Items     []requestedItemPayload `json:"items"`
	Format    string                 `json:"format,omitempty"`
	Validity  string                 `json:"validity,omitempty"`
	Retention string                 `json:"retention,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	Status    string                 `json:"status"`
	DecidedAt *time.Time             `json:"decidedAt,omitempty"`
	GrantID   string                 `json:"grantId,omitempty"`
}

func toRequestResponse(req *request.DataAccessRequest) requestResponse {
	items := make([]requestedItemPayload, len(req.Items))
	for i, item := range req.Items {
		items[i] = requestedItemPayload{
			ItemID:  item.ItemID.String(),
			Enabled: item.Enabled,
			Access:  string(item.Access),
		}
	}
	out := requestResponse{
		ID: req.ID.String(),
		Requester: requesterPayload{
			ID:   req.Requester.ID.String(),
			Name: req.Requester.Name,
			Type: string(req.Requester.Type),
		},
		Purpose:   req.Purpose,
		Items:     items,
		Format:    req.Format,
		Validity:  req.Validity,
		Retention: req.Retention,
		CreatedAt: req.CreatedAt,
		Status:    string(req.Status),
		DecidedAt: req.DecidedAt,
	}
	if req.GrantID != nil {
		out.GrantID = req.GrantID.String()
	}
	return out
}

type approveRequest struct {
	ItemIDs []string `json:"itemIds"`
}

func (p approveRequest) parseItemIDs() ([]id.ItemID, error) {
	if len(p.ItemIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "itemIds must not be empty")
	}
	out := make([]id.ItemID, 0, len(p.ItemIDs))
	for _, raw := range p.ItemIDs {
		itemID, err := id.ParseItemID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, itemID)
	}
	return out, nil
}

type grantResponse struct {
	ID        string     `json:"id"`
	RequestID string     `json:"requestId"`
	Requester string     `json:"requester"`
	ItemIDs   []string   `json:"itemIds"`
	GrantedAt time.Time  `json:"grantedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

func toGrantResponse(grant *grants.Grant) grantResponse {
	items := make([]string, len(grant.ItemIDs))
	for i, itemID := range grant.ItemIDs {
		items[i] = itemID.String()
	}
	return grantResponse{
		ID:        grant.ID.String(),
		RequestID: grant.RequestID.String(),
		Requester: grant.Requester.String(),
		ItemIDs:   items,
		GrantedAt: grant.GrantedAt,
		ExpiresAt: grant.ExpiresAt,
		RevokedAt: grant.RevokedAt,
	}
}

type eventResponse struct {
	Seq       uint64     `json:"seq"`
	Timestamp time.Time  `json:"timestamp"`
	Kind      string     `json:"kind"`
	RequestID string     `json:"requestId,omitempty"`
	GrantID   string     `json:"grantId,omitempty"`
	Requester string     `json:"requester,omitempty"`
	ItemIDs   []string   `json:"itemIds,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Client    string     `json:"client,omitempty"`
}

func toEventResponse(event ledger.Event) eventResponse {
	out := eventResponse{
		Seq:       event.Seq,
		Timestamp: event.Timestamp,
		Kind:      string(event.Kind),
		ExpiresAt: event.ExpiresAt,
		Client:    event.Client,
	}
	if !event.RequestID.IsNil() {
		out.RequestID = event.RequestID.String()
	}
	if !event.GrantID.IsNil() {
		out.GrantID = event.GrantID.String()
	}
	if !event.Requester.IsNil() {
		out.Requester = event.Requester.String()
	}
	for _, itemID := range event.ItemIDs {
		out.ItemIDs = append(out.ItemIDs, itemID.String())
	}
	return out
}

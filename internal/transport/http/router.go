// Package httptransport is the thin HTTP layer over the vault services. It
// translates JSON payloads to domain calls and domain errors to status codes;
// no business logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medvault/internal/catalog"
	"medvault/internal/grants"
	"medvault/internal/ledger"
	"medvault/internal/platform/middleware"
	"medvault/internal/request"
	id "medvault/pkg/domain"
)

// RequestService is the registry surface the transport needs.
type RequestService interface {
	Submit(ctx context.Context, in request.SubmitInput) (*request.DataAccessRequest, error)
	Get(ctx context.Context, requestID id.RequestID) (*request.DataAccessRequest, error)
	List(ctx context.Context, filter request.Filter) ([]*request.DataAccessRequest, error)
}

// ConsentService is the decision surface the transport needs.
type ConsentService interface {
	ApproveSelected(ctx context.Context, requestID id.RequestID, chosen []id.ItemID) (*grants.Grant, error)
	ApproveAll(ctx context.Context, requestID id.RequestID) (*grants.Grant, error)
	Deny(ctx context.Context, requestID id.RequestID) error
	Revoke(ctx context.Context, grantID id.GrantID) error
	IsGranted(ctx context.Context, itemID id.ItemID, requesterID id.RequesterID) (bool, error)
	Grant(ctx context.Context, grantID id.GrantID) (*grants.Grant, error)
}

// Handler bundles the services behind the public endpoints.
type Handler struct {
	logger   *slog.Logger
	catalog  catalog.Store
	requests RequestService
	consent  ConsentService
	ledger   ledger.Store
	verifier middleware.OwnerVerifier
}

func NewHandler(
	logger *slog.Logger,
	cat catalog.Store,
	requests RequestService,
	consentSvc ConsentService,
	led ledger.Store,
	verifier middleware.OwnerVerifier,
) *Handler {
	return &Handler{
		logger:   logger,
		catalog:  cat,
		requests: requests,
		consent:  consentSvc,
		ledger:   led,
		verifier: verifier,
	}
}

// NewRouter wires all public endpoints. Owner decisions and revocations sit
// behind bearer-token auth; submission and the grant check are open to
// requesters and collaborating services.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/items", h.handleListItems)
	r.Post("/requests", h.handleSubmitRequest)
	r.Get("/requests", h.handleListRequests)
	r.Get("/requests/{requestID}", h.handleGetRequest)
	r.Get("/grants/check", h.handleGrantCheck)
	r.Get("/grants/{grantID}", h.handleGetGrant)
	r.Get("/ledger", h.handleReadLedger)

	r.Group(func(owner chi.Router) {
		owner.Use(middleware.RequireOwner(h.verifier, h.logger))
		owner.Post("/items", h.handleAddItem)
		owner.Post("/requests/{requestID}/approve", h.handleApprove)
		owner.Post("/requests/{requestID}/approve-all", h.handleApproveAll)
		owner.Post("/requests/{requestID}/deny", h.handleDeny)
		owner.Post("/grants/{grantID}/revoke", h.handleRevoke)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

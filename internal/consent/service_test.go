package consent

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"medvault/internal/grants"
	"medvault/internal/ledger"
	"medvault/internal/platform/metrics"
	"medvault/internal/request"
	"medvault/internal/vault"
	id "medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/requestcontext"
)

type recordingHook struct {
	decisions []Decision
}

func (h *recordingHook) OnDecision(_ context.Context, d Decision) {
	h.decisions = append(h.decisions, d)
}

type engineFixture struct {
	service  *Service
	requests request.Store
	ledger   ledger.Store
	index    *grants.Index
	hook     *recordingHook
}

type ConsentServiceSuite struct {
	suite.Suite
	now time.Time
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
}

func (s *ConsentServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ConsentServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ConsentServiceSuite) newFixture() *engineFixture {
	requests := request.NewInMemoryStore()
	led := ledger.NewInMemoryStore()
	index := grants.NewIndex()
	hook := &recordingHook{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewService(requests, led, index, vault.NewMemoryTx(), logger, metrics.NewForTesting(), hook)
	return &engineFixture{
		service:  service,
		requests: requests,
		ledger:   led,
		index:    index,
		hook:     hook,
	}
}

// seedPending places a pending request with the given number of items in the
// registry and returns it.
func (s *ConsentServiceSuite) seedPending(f *engineFixture, itemCount int, validity string) *request.DataAccessRequest {
	items := make([]request.RequestedItem, itemCount)
	for i := range items {
		items[i] = request.RequestedItem{
			ItemID:  id.ItemID(uuid.New()),
			Enabled: true,
			Access:  id.AccessRead,
		}
	}
	req := &request.DataAccessRequest{
		ID: id.RequestID(uuid.New()),
		Requester: request.Requester{
			ID:   id.RequesterID(uuid.New()),
			Name: "Dr. Vance",
			Type: id.RequesterDoctor,
		},
		Purpose:   "treatment follow-up",
		Items:     items,
		Validity:  validity,
		CreatedAt: s.now,
		Status:    request.StatusPending,
	}
	s.Require().NoError(f.requests.Create(context.Background(), req))
	return req
}

func (s *ConsentServiceSuite) ledgerEvents(f *engineFixture) []ledger.Event {
	it, err := f.ledger.ReadFrom(context.Background(), 1)
	s.Require().NoError(err)
	defer it.Close()

	var out []ledger.Event
	for it.Next(context.Background()) {
		out = append(out, it.Event())
	}
	s.Require().NoError(it.Err())
	return out
}

func (s *ConsentServiceSuite) TestApproveSelectedCreatesGrantOverChosenItems() {
	f := s.newFixture()
	req := s.seedPending(f, 3, "30 days")
	chosen := []id.ItemID{req.Items[0].ItemID, req.Items[2].ItemID}

	grant, err := f.service.ApproveSelected(s.ctx(), req.ID, chosen)
	s.Require().NoError(err)

	s.Equal(chosen, grant.ItemIDs)
	s.Equal(req.Requester.ID, grant.Requester)
	s.Equal(req.ID, grant.RequestID)
	s.Require().NotNil(grant.ExpiresAt)
	s.Equal(s.now.Add(30*24*time.Hour), *grant.ExpiresAt)

	stored, err := f.requests.Get(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusApproved, stored.Status)
	s.Require().NotNil(stored.DecidedAt)
	s.Require().NotNil(stored.GrantID)
	s.Equal(grant.ID, *stored.GrantID)

	events := s.ledgerEvents(f)
	s.Require().Len(events, 1)
	s.Equal(ledger.EventApproved, events[0].Kind)
	s.Equal(chosen, events[0].ItemIDs)

	granted, err := f.service.IsGranted(s.ctx(), req.Items[0].ItemID, req.Requester.ID)
	s.Require().NoError(err)
	s.True(granted)

	notChosen, err := f.service.IsGranted(s.ctx(), req.Items[1].ItemID, req.Requester.ID)
	s.Require().NoError(err)
	s.False(notChosen)

	s.Require().Len(f.hook.decisions, 1)
	s.Equal(OutcomeApproved, f.hook.decisions[0].Outcome)
	s.Equal(grant.ID, f.hook.decisions[0].GrantID)
}

func (s *ConsentServiceSuite) TestApproveAllCoversEveryRequestedItem() {
	f := s.newFixture()
	req := s.seedPending(f, 3, "")

	grant, err := f.service.ApproveAll(s.ctx(), req.ID)
	s.Require().NoError(err)

	s.ElementsMatch(req.ItemIDs(), grant.ItemIDs)
	s.Nil(grant.ExpiresAt, "blank validity means no automatic expiry")

	for _, item := range req.Items {
		granted, err := f.service.IsGranted(s.ctx(), item.ItemID, req.Requester.ID)
		s.Require().NoError(err)
		s.True(granted)
	}
}

func (s *ConsentServiceSuite) TestApproveRejectsItemsOutsideRequest() {
	f := s.newFixture()
	req := s.seedPending(f, 2, "")
	foreign := id.ItemID(uuid.New())

	_, err := f.service.ApproveSelected(s.ctx(), req.ID, []id.ItemID{req.Items[0].ItemID, foreign})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	stored, getErr := f.requests.Get(context.Background(), req.ID)
	s.Require().NoError(getErr)
	s.Equal(request.StatusPending, stored.Status, "rejected approval must leave the request pending")
	s.Empty(s.ledgerEvents(f), "validation failures must not reach the ledger")
}

func (s *ConsentServiceSuite) TestApproveRejectsEmptySelection() {
	f := s.newFixture()
	req := s.seedPending(f, 2, "")

	_, err := f.service.ApproveSelected(s.ctx(), req.ID, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ConsentServiceSuite) TestSecondDecisionIsRejected() {
	s.Run("deny after approve", func() {
		f := s.newFixture()
		req := s.seedPending(f, 1, "")

		_, err := f.service.ApproveAll(s.ctx(), req.ID)
		s.Require().NoError(err)

		err = f.service.Deny(s.ctx(), req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Len(s.ledgerEvents(f), 1, "the losing decision must not append")
	})

	s.Run("approve after deny", func() {
		f := s.newFixture()
		req := s.seedPending(f, 1, "")

		s.Require().NoError(f.service.Deny(s.ctx(), req.ID))

		_, err := f.service.ApproveAll(s.ctx(), req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ConsentServiceSuite) TestConcurrentDecisionsFirstWins() {
	f := s.newFixture()
	req := s.seedPending(f, 1, "")

	start := make(chan struct{})
	results := make(chan error, 2)

	go func() {
		<-start
		_, err := f.service.ApproveAll(s.ctx(), req.ID)
		results <- err
	}()
	go func() {
		<-start
		results <- f.service.Deny(s.ctx(), req.ID)
	}()
	close(start)

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			succeeded++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		rejected++
	}
	s.Equal(1, succeeded, "exactly one decision lands")
	s.Equal(1, rejected, "the loser observes the terminal state")
	s.Len(s.ledgerEvents(f), 1, "the losing decision never appends")
}

func (s *ConsentServiceSuite) TestDenyIsTerminalAndGrantsNothing() {
	f := s.newFixture()
	req := s.seedPending(f, 2, "")

	s.Require().NoError(f.service.Deny(s.ctx(), req.ID))

	stored, err := f.requests.Get(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusDenied, stored.Status)
	s.Nil(stored.GrantID)

	for _, item := range req.Items {
		granted, err := f.service.IsGranted(s.ctx(), item.ItemID, req.Requester.ID)
		s.Require().NoError(err)
		s.False(granted)
	}

	events := s.ledgerEvents(f)
	s.Require().Len(events, 1)
	s.Equal(ledger.EventDenied, events[0].Kind)

	s.Require().Len(f.hook.decisions, 1)
	s.Equal(OutcomeDenied, f.hook.decisions[0].Outcome)
}

func (s *ConsentServiceSuite) TestDecisionOnUnknownRequest() {
	f := s.newFixture()

	_, err := f.service.ApproveAll(s.ctx(), id.RequestID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = f.service.Deny(s.ctx(), id.RequestID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConsentServiceSuite) TestRevokeWithdrawsAccessAndIsIdempotent() {
	f := s.newFixture()
	req := s.seedPending(f, 1, "")

	grant, err := f.service.ApproveAll(s.ctx(), req.ID)
	s.Require().NoError(err)

	s.Require().NoError(f.service.Revoke(s.ctx(), grant.ID))

	granted, err := f.service.IsGranted(s.ctx(), req.Items[0].ItemID, req.Requester.ID)
	s.Require().NoError(err)
	s.False(granted)

	eventsAfterFirst := len(s.ledgerEvents(f))

	// Second revoke succeeds without recording anything new.
	s.Require().NoError(f.service.Revoke(s.ctx(), grant.ID))
	s.Len(s.ledgerEvents(f), eventsAfterFirst)
}

func (s *ConsentServiceSuite) TestRevokeUnknownGrant() {
	f := s.newFixture()
	err := f.service.Revoke(s.ctx(), id.GrantID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConsentServiceSuite) TestExpiryIsLazyAndRecordedOnce() {
	f := s.newFixture()
	req := s.seedPending(f, 1, "10 days")
	item := req.Items[0].ItemID

	grant, err := f.service.ApproveAll(s.ctx(), req.ID)
	s.Require().NoError(err)
	s.Require().NotNil(grant.ExpiresAt)

	// Still inside the validity window.
	beforeExpiry := s.ctxAt(s.now.Add(9 * 24 * time.Hour))
	granted, err := f.service.IsGranted(beforeExpiry, item, req.Requester.ID)
	s.Require().NoError(err)
	s.True(granted)
	s.Len(s.ledgerEvents(f), 1, "no expiry event while the grant is live")

	// Past expiry: access is gone and the observation is appended exactly once.
	afterExpiry := s.ctxAt(s.now.Add(11 * 24 * time.Hour))
	granted, err = f.service.IsGranted(afterExpiry, item, req.Requester.ID)
	s.Require().NoError(err)
	s.False(granted)

	events := s.ledgerEvents(f)
	s.Require().Len(events, 2)
	s.Equal(ledger.EventExpired, events[1].Kind)
	s.Equal(grant.ID, events[1].GrantID)

	// Repeat queries observe nothing new.
	_, err = f.service.IsGranted(afterExpiry, item, req.Requester.ID)
	s.Require().NoError(err)
	s.Len(s.ledgerEvents(f), 2)
}

func (s *ConsentServiceSuite) TestRevokeAfterExpiryRecordsExpiryNotRevocation() {
	f := s.newFixture()
	req := s.seedPending(f, 1, "5 days")

	grant, err := f.service.ApproveAll(s.ctx(), req.ID)
	s.Require().NoError(err)

	afterExpiry := s.ctxAt(s.now.Add(6 * 24 * time.Hour))
	s.Require().NoError(f.service.Revoke(afterExpiry, grant.ID))

	events := s.ledgerEvents(f)
	s.Require().Len(events, 2)
	s.Equal(ledger.EventExpired, events[1].Kind, "access already lapsed, so the first sighting records expiry")

	stored, err := f.service.Grant(context.Background(), grant.ID)
	s.Require().NoError(err)
	s.Nil(stored.RevokedAt)
}

func (s *ConsentServiceSuite) TestRebuildFromLedgerMatchesLiveIndex() {
	f := s.newFixture()

	first := s.seedPending(f, 2, "30 days")
	second := s.seedPending(f, 1, "")
	third := s.seedPending(f, 1, "")

	grant1, err := f.service.ApproveSelected(s.ctx(), first.ID, []id.ItemID{first.Items[1].ItemID})
	s.Require().NoError(err)
	_, err = f.service.ApproveAll(s.ctx(), second.ID)
	s.Require().NoError(err)
	s.Require().NoError(f.service.Deny(s.ctx(), third.ID))
	s.Require().NoError(f.service.Revoke(s.ctx(), grant1.ID))

	rebuilt := grants.NewIndex()
	s.Require().NoError(rebuilt.Rebuild(context.Background(), f.ledger))

	s.Equal(f.index.Snapshot(), rebuilt.Snapshot(),
		"replaying the ledger from empty must reproduce the live index")
}

func (s *ConsentServiceSuite) TestLedgerSequenceIsGapFreeAcrossRejections() {
	f := s.newFixture()
	req := s.seedPending(f, 2, "")

	// A rejected decision between two recorded ones must not burn a sequence.
	_, err := f.service.ApproveSelected(s.ctx(), req.ID, []id.ItemID{id.ItemID(uuid.New())})
	s.Require().Error(err)

	grant, err := f.service.ApproveAll(s.ctx(), req.ID)
	s.Require().NoError(err)
	s.Require().NoError(f.service.Revoke(s.ctx(), grant.ID))

	events := s.ledgerEvents(f)
	s.Require().Len(events, 2)
	for i, event := range events {
		s.Equal(uint64(i+1), event.Seq)
	}
}

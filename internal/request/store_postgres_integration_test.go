//go:build integration

package request_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"medvault/internal/request"
	id "medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	"medvault/pkg/testutil/containers"
)

type RequestPostgresSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *request.PostgresStore
}

func TestRequestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RequestPostgresSuite))
}

func (s *RequestPostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T(), "../../migrations/0001_init.sql")
	s.store = request.NewPostgres(s.pg.DB)
}

func (s *RequestPostgresSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(context.Background(), `TRUNCATE access_requests`)
	s.Require().NoError(err)
}

func (s *RequestPostgresSuite) newRequest(createdAt time.Time) *request.DataAccessRequest {
	return &request.DataAccessRequest{
		ID: id.RequestID(uuid.New()),
		Requester: request.Requester{
			ID:   id.RequesterID(uuid.New()),
			Name: "City Hospital",
			Type: id.RequesterHospital,
		},
		Purpose: "pre-surgery review",
		Items: []request.RequestedItem{
			{ItemID: id.ItemID(uuid.New()), Enabled: true, Access: id.AccessRead},
			{ItemID: id.ItemID(uuid.New()), Enabled: false, Access: id.AccessRead},
		},
		Format:    "pdf",
		Validity:  "30 days",
		Retention: "90 days",
		CreatedAt: createdAt,
		Status:    request.StatusPending,
	}
}

func (s *RequestPostgresSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	req := s.newRequest(time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))

	s.Require().NoError(s.store.Create(ctx, req))

	got, err := s.store.Get(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.ID, got.ID)
	s.Equal(req.Requester, got.Requester)
	s.Equal(req.Items, got.Items)
	s.Equal(request.StatusPending, got.Status)
	s.True(got.CreatedAt.Equal(req.CreatedAt))
	s.Nil(got.DecidedAt)
	s.Nil(got.GrantID)
}

func (s *RequestPostgresSuite) TestCreateConflictAndGetNotFound() {
	ctx := context.Background()
	req := s.newRequest(time.Now().UTC())

	s.Require().NoError(s.store.Create(ctx, req))
	s.ErrorIs(s.store.Create(ctx, req), sentinel.ErrConflict)

	_, err := s.store.Get(ctx, id.RequestID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RequestPostgresSuite) TestUpdateDecision() {
	ctx := context.Background()
	req := s.newRequest(time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, req))

	decidedAt := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	grantID := id.GrantID(uuid.New())
	req.Status = request.StatusApproved
	req.DecidedAt = &decidedAt
	req.GrantID = &grantID
	s.Require().NoError(s.store.Update(ctx, req))

	got, err := s.store.Get(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusApproved, got.Status)
	s.Require().NotNil(got.DecidedAt)
	s.True(got.DecidedAt.Equal(decidedAt))
	s.Require().NotNil(got.GrantID)
	s.Equal(grantID, *got.GrantID)

	missing := s.newRequest(time.Now().UTC())
	s.ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
}

func (s *RequestPostgresSuite) TestListOrderingAndFilter() {
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	older := s.newRequest(base)
	newer := s.newRequest(base.Add(time.Hour))
	denied := s.newRequest(base.Add(2 * time.Hour))
	denied.Status = request.StatusDenied

	for _, req := range []*request.DataAccessRequest{newer, denied, older} {
		s.Require().NoError(s.store.Create(ctx, req))
	}

	all, err := s.store.List(ctx, request.Filter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(older.ID, all[0].ID)
	s.Equal(newer.ID, all[1].ID)
	s.Equal(denied.ID, all[2].ID)

	pending, err := s.store.List(ctx, request.Filter{Statuses: []request.Status{request.StatusPending}})
	s.Require().NoError(err)
	s.Len(pending, 2)
}

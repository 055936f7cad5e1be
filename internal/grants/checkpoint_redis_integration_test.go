//go:build integration

package grants_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"medvault/internal/grants"
	"medvault/internal/ledger"
	"medvault/internal/platform/config"
	"medvault/internal/platform/redis"
	id "medvault/pkg/domain"
	"medvault/pkg/testutil/containers"
)

type RedisCheckpointSuite struct {
	suite.Suite
	rc         *containers.RedisContainer
	checkpoint *grants.RedisCheckpoint
}

func TestRedisCheckpointSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCheckpointSuite))
}

func (s *RedisCheckpointSuite) SetupSuite() {
	s.rc = containers.NewRedisContainer(s.T())

	client, err := redis.New(config.RedisConfig{
		URL:          s.rc.URL,
		PoolSize:     5,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	s.Require().NoError(err)
	s.Require().NotNil(client)
	s.checkpoint = grants.NewRedisCheckpoint(client)
}

func (s *RedisCheckpointSuite) SetupTest() {
	s.Require().NoError(s.rc.FlushAll(context.Background()))
}

func (s *RedisCheckpointSuite) TestLoadWithoutSnapshot() {
	snap, err := s.checkpoint.Load(context.Background())
	s.Require().NoError(err)
	s.Nil(snap, "missing checkpoint is not an error")
}

func (s *RedisCheckpointSuite) TestSaveLoadRestoreRoundTrip() {
	ctx := context.Background()
	store := ledger.NewInMemoryStore()
	index := grants.NewIndex()

	expiresAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	appendAndApply := func(t *testing.T, event ledger.Event) {
		appended, err := store.Append(ctx, event)
		require.NoError(t, err)
		require.NoError(t, index.Apply(appended))
	}

	grantA := id.GrantID(uuid.New())
	grantB := id.GrantID(uuid.New())
	requester := id.RequesterID(uuid.New())

	appendAndApply(s.T(), ledger.Event{
		Timestamp: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
		Kind:      ledger.EventApproved,
		RequestID: id.RequestID(uuid.New()),
		GrantID:   grantA,
		Requester: requester,
		ItemIDs:   []id.ItemID{id.ItemID(uuid.New())},
		ExpiresAt: &expiresAt,
	})
	appendAndApply(s.T(), ledger.Event{
		Timestamp: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		Kind:      ledger.EventApproved,
		RequestID: id.RequestID(uuid.New()),
		GrantID:   grantB,
		Requester: requester,
		ItemIDs:   []id.ItemID{id.ItemID(uuid.New())},
	})
	appendAndApply(s.T(), ledger.Event{
		Timestamp: time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC),
		Kind:      ledger.EventRevoked,
		GrantID:   grantB,
	})

	s.Require().NoError(s.checkpoint.Save(ctx, index.Snapshot()))

	loaded, err := s.checkpoint.Load(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(loaded)

	restored := grants.NewIndex()
	s.Require().NoError(restored.Restore(*loaded))
	s.Equal(index.Snapshot(), restored.Snapshot())
	s.Equal(uint64(3), restored.LastSeq())

	// Resuming replay from the checkpoint is a no-op when nothing new exists.
	s.Require().NoError(restored.Rebuild(ctx, store))
	s.Equal(index.Snapshot(), restored.Snapshot())
}

func (s *RedisCheckpointSuite) TestSaveOverwritesPreviousSnapshot() {
	ctx := context.Background()

	s.Require().NoError(s.checkpoint.Save(ctx, grants.Snapshot{LastSeq: 1}))
	s.Require().NoError(s.checkpoint.Save(ctx, grants.Snapshot{LastSeq: 7}))

	loaded, err := s.checkpoint.Load(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(loaded)
	s.Equal(uint64(7), loaded.LastSeq)
}

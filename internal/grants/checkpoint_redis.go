package grants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"medvault/internal/platform/redis"
)

const checkpointKey = "medvault:grants:checkpoint"

// RedisCheckpoint stores the index snapshot as a JSON blob in Redis so a
// restarting service resumes replay from the checkpointed sequence instead
// of folding the whole ledger. Losing the key is harmless: rebuild falls
// back to sequence 0.
type RedisCheckpoint struct {
	client *redis.Client
}

func NewRedisCheckpoint(client *redis.Client) *RedisCheckpoint {
	return &RedisCheckpoint{client: client}
}

func (c *RedisCheckpoint) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := c.client.Set(ctx, checkpointKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (c *RedisCheckpoint) Load(ctx context.Context) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, checkpointKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &snap, nil
}

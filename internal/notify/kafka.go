package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"medvault/internal/consent"
)

// decisionRecord is the wire form of a decision notification.
type decisionRecord struct {
	RequestID string    `json:"request_id,omitempty"`
	GrantID   string    `json:"grant_id,omitempty"`
	Outcome   string    `json:"outcome"`
	ItemIDs   []string  `json:"item_ids,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// KafkaSink publishes decision notifications to a Kafka topic. Records are
// keyed by grant id (falling back to request id for denials) so consumers
// see a grant's lifecycle in order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the brokers and ensures the topic exists. Topic
// creation failures on clusters without auto-create surface here rather
// than on the first publish.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, decision consent.Decision) error {
	rec := decisionRecord{
		Outcome:   string(decision.Outcome),
		DecidedAt: decision.DecidedAt,
	}
	if !decision.RequestID.IsNil() {
		rec.RequestID = decision.RequestID.String()
	}
	if !decision.GrantID.IsNil() {
		rec.GrantID = decision.GrantID.String()
	}
	for _, itemID := range decision.ItemIDs {
		rec.ItemIDs = append(rec.ItemIDs, itemID.String())
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	key := rec.GrantID
	if key == "" {
		key = rec.RequestID
	}

	results := s.client.ProduceSync(ctx, &kgo.Record{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
	})
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce decision: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}

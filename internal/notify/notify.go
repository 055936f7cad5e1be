// Package notify fans decision notifications out to external sinks. Delivery
// is best-effort and fully decoupled from the decision path: a slow or dead
// sink never blocks or fails an owner action.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"medvault/internal/consent"
)

// Sink delivers one decision notification to an external system.
type Sink interface {
	Publish(ctx context.Context, decision consent.Decision) error
	Close() error
}

// Publisher implements consent.DecisionHook by handing decisions to a
// background worker over a bounded inbox. When the inbox is full the
// decision is dropped and counted; the ledger remains the source of truth,
// notifications are decoration.
type Publisher struct {
	sink   Sink
	inbox  chan consent.Decision
	logger *slog.Logger

	mu      sync.Mutex
	dropped int64
	closed  bool
	done    chan struct{}
}

const defaultInboxSize = 256

func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{
		sink:   sink,
		inbox:  make(chan consent.Decision, defaultInboxSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// OnDecision enqueues the decision without blocking. The send stays under
// the mutex so a concurrent Close cannot close the inbox mid-send.
func (p *Publisher) OnDecision(_ context.Context, decision consent.Decision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	select {
	case p.inbox <- decision:
	default:
		p.dropped++
		p.logger.Warn("decision notification dropped, inbox full",
			"outcome", string(decision.Outcome),
			"dropped_total", p.dropped,
		)
	}
}

// Run consumes the inbox until the context is cancelled or Close drains it.
func (p *Publisher) Run(ctx context.Context) error {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case decision, ok := <-p.inbox:
			if !ok {
				return nil
			}
			p.publish(ctx, decision)
		}
	}
}

// Close stops intake, lets the worker drain pending notifications, and
// closes the sink. The inbox is closed under the same mutex that guards
// intake, so no send can race the close.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
	return p.sink.Close()
}

// Dropped reports how many notifications were discarded due to backpressure.
func (p *Publisher) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case decision, ok := <-p.inbox:
			if !ok {
				return
			}
			p.publish(ctx, decision)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, decision consent.Decision) {
	if err := p.sink.Publish(ctx, decision); err != nil {
		p.logger.ErrorContext(ctx, "decision notification failed",
			"outcome", string(decision.Outcome),
			"request_id", decision.RequestID.String(),
			"error", err.Error(),
		)
	}
}

// LogSink writes decision notifications to the structured log. Used when no
// broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, decision consent.Decision) error {
	s.logger.InfoContext(ctx, "decision",
		"outcome", string(decision.Outcome),
		"request_id", decision.RequestID.String(),
		"grant_id", decision.GrantID.String(),
		"items", len(decision.ItemIDs),
		"decided_at", decision.DecidedAt,
	)
	return nil
}

func (s *LogSink) Close() error { return nil }

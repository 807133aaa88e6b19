package outbox

import (
	"context"
	"encoding/json"
	"time"

	"chatcore/internal/domain/outbox"
	"chatcore/internal/events"
	"chatcore/internal/repository"
	"chatcore/pkg/logger"

	"go.uber.org/zap"
)

// Publisher sends an encoded envelope to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor publishes pending change notifications in creation order.
type Processor struct {
	repo       repository.OutboxRepository
	publisher  Publisher
	log        *logger.Logger
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewProcessor(repo repository.OutboxRepository, publisher Publisher, log *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		log:        log,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publishes one batch and returns how many rows were delivered.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	batch, err := p.repo.GetPending(ctx, p.batchSize)
	if err != nil {
		p.log.Error("failed to load pending outbox events", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, e := range batch {
		if e.RetryCount >= p.maxRetries {
			_ = p.repo.MarkFailed(ctx, e.ID, "max retries exceeded")
			continue
		}

		payload, err := json.Marshal(envelopeOf(e))
		if err != nil {
			_ = p.repo.MarkFailed(ctx, e.ID, err.Error())
			continue
		}

		if err := p.publisher.Publish(ctx, e.Channel, payload); err != nil {
			p.log.Warn("outbox publish failed",
				zap.String("event_id", e.ID.String()),
				zap.String("channel", e.Channel),
				zap.Error(err))
			_ = p.repo.IncrementRetry(ctx, e.ID, err.Error())
			// later rows stay behind the failed one
			break
		}

		if err := p.repo.MarkCompleted(ctx, e.ID); err != nil {
			p.log.Error("failed to mark outbox event completed", zap.String("event_id", e.ID.String()), zap.Error(err))
		}
		delivered++
	}
	return delivered
}

func envelopeOf(e outbox.Event) events.Envelope {
	return events.Envelope{
		EventType:     events.EventType(e.EventType),
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID.String(),
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       json.RawMessage(e.Payload),
	}
}

package outbox

import (
	"context"
	"time"

	"chatcore/config"
	"chatcore/internal/repository"
	"chatcore/pkg/logger"

	"go.uber.org/zap"
)

const defaultDrainTimeout = 5 * time.Second

// Runner supervises the relay for the process lifetime. On shutdown it keeps
// publishing full batches until the backlog is short, so changes committed
// just before SIGTERM still reach the subscribers.
type Runner struct {
	processor    *Processor
	drainTimeout time.Duration
}

func NewRunner(processor *Processor, drainTimeout time.Duration) *Runner {
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}
	return &Runner{processor: processor, drainTimeout: drainTimeout}
}

// NewRelay builds the runner from the outbox settings.
func NewRelay(cfg *config.Config, repo repository.OutboxRepository, publisher Publisher, log *logger.Logger) *Runner {
	p := NewProcessor(repo, publisher, log, cfg.OutboxBatchSize, cfg.OutboxInterval, cfg.OutboxMaxRetries)
	return NewRunner(p, cfg.OutboxDrainTimeout)
}

// Run blocks until ctx is cancelled, then drains.
func (r *Runner) Run(ctx context.Context) error {
	p := r.processor
	p.log.Info("outbox relay started",
		zap.Int("batch_size", p.batchSize),
		zap.Duration("interval", p.interval))

	p.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()
	drained := r.drain(drainCtx)
	p.log.Info("outbox relay stopped", zap.Int("drained", drained))
	return nil
}

// drain stops at the first short batch: either the backlog is empty or a
// publish failed and the rest must wait behind it.
func (r *Runner) drain(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n := r.processor.ProcessBatch(ctx)
		total += n
		if n < r.processor.batchSize {
			break
		}
	}
	return total
}

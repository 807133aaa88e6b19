package repository

import (
	"context"
	"time"

	"chatcore/internal/domain/outbox"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db         *gorm.DB
	maxRetries int
}

func NewOutboxRepository(db *gorm.DB, maxRetries int) OutboxRepository {
	return &outboxRepository{db: db, maxRetries: maxRetries}
}

func (r *outboxRepository) Create(ctx context.Context, tx *gorm.DB, ev *outbox.Event) error {
	execDB := tx
	if execDB == nil {
		execDB = r.db
	}
	return execDB.WithContext(ctx).Create(ev).Error
}

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]outbox.Event, error) {
	var evs []outbox.Event
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", outbox.StatusPending, r.maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&evs).Error
	if err != nil {
		return nil, err
	}
	return evs, nil
}

func (r *outboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&outbox.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       outbox.StatusCompleted,
			"processed_at": &now,
		}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.db.WithContext(ctx).
		Model(&outbox.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": outbox.StatusFailed,
			"error":  errorMsg,
		}).Error
}

func (r *outboxRepository) IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.db.WithContext(ctx).
		Model(&outbox.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"error":       errorMsg,
		}).Error
}

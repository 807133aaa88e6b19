package repository

import (
	"errors"
	"strings"
	"time"

	"chatcore/internal/domain/outbox"
	"chatcore/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// escapeLike escapes the LIKE wildcards of a user supplied search term.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// enqueue writes the change notification for ev inside tx.
func enqueue(tx *gorm.DB, ev events.Event, at time.Time) error {
	env, err := events.Wrap(ev, at)
	if err != nil {
		return err
	}
	aggID, err := uuid.Parse(env.AggregateID)
	if err != nil {
		return err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	return tx.Create(&outbox.Event{
		ID:            id,
		EventType:     string(env.EventType),
		AggregateType: env.AggregateType,
		AggregateID:   aggID,
		Channel:       events.ResolveChannel(ev),
		Payload:       env.Payload,
		Status:        outbox.StatusPending,
		CreatedAt:     at,
	}).Error
}

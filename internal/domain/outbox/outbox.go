package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the publishing state of a row change notification
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Event is a row change notification written in the same transaction as the
// change itself and published to the realtime transport afterwards.
type Event struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType     string    `gorm:"type:varchar(50);not null"`
	AggregateType string    `gorm:"type:varchar(50);not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null"`
	Channel       string    `gorm:"type:varchar(120);not null"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	Status        Status    `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	RetryCount    int       `gorm:"not null;default:0"`
	Error         string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`
	ProcessedAt   *time.Time
}

func (Event) TableName() string {
	return "outbox_events"
}


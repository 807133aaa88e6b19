package messages

import (
	"chatcore/internal/domain/message"

	"github.com/google/uuid"
)

// Delivery is the state of a message in the sender's own view.
type Delivery string

const (
	// Sent messages are confirmed by the durable store.
	Sent Delivery = "sent"
	// Pending messages are optimistic and their write is in flight.
	Pending Delivery = "pending"
	// Failed messages are optimistic and their last write failed.
	Failed Delivery = "failed"
)

// Item is a message in the active list, enriched for display.
type Item struct {
	message.Message
	// DraftID is set while the item is an unconfirmed optimistic write.
	DraftID      uuid.UUID `json:"draft_id,omitempty"`
	State        Delivery  `json:"state"`
	Error        string    `json:"error,omitempty"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar string    `json:"sender_avatar,omitempty"`
}

// Draft is the caller supplied part of a new message.
type Draft struct {
	Content         string              `json:"content"`
	Type            message.Type        `json:"message_type,omitempty"`
	Attachment      *message.Attachment `json:"attachment,omitempty"`
	ReplyToID       uuid.NullUUID       `json:"reply_to_id"`
	ForwardedFromID uuid.NullUUID       `json:"forwarded_from_id"`
}

// pendingWrite is an optimistic message whose durable write has not been
// confirmed, keyed by its draft id.
type pendingWrite struct {
	item      Item
	inFlight  bool
	cancelled bool
}

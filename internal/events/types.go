package events

import (
	"time"

	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageInserted     EventType = "message.created"
	EventMessageUpdated      EventType = "message.updated"
	EventCursorMoved         EventType = "receipt.read"
	EventConversationChanged EventType = "conversation.changed"
	EventPresenceSync        EventType = "presence.sync"
	EventTyping              EventType = "typing.broadcast"
)

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeReceipt      = "message_receipt"
	AggregateTypeConversation = "conversation"
	AggregateTypePresence     = "presence"
	AggregateTypeTyping       = "typing"
)

// Event is one realtime notification, decoded at the transport boundary.
// Concrete types: *MessageInserted, *MessageUpdated, *CursorMoved,
// *ConversationChanged, *PresenceSync, *TypingBroadcast.
type Event interface {
	Type() EventType
	// Scope is the conversation the event belongs to.
	Scope() uuid.UUID
}

// MessageInserted is delivered when a message row is created.
type MessageInserted struct {
	Message message.Message `json:"message"`
}

func (e *MessageInserted) Type() EventType  { return EventMessageInserted }
func (e *MessageInserted) Scope() uuid.UUID { return e.Message.ConversationID }

// MessageUpdated is delivered for edits, reaction changes and soft deletes.
type MessageUpdated struct {
	Message message.Message `json:"message"`
}

func (e *MessageUpdated) Type() EventType  { return EventMessageUpdated }
func (e *MessageUpdated) Scope() uuid.UUID { return e.Message.ConversationID }

// CursorMoved is delivered when a participant's last_read_at advances.
type CursorMoved struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	Principal      principal.Ref `json:"principal"`
	LastReadAt     time.Time     `json:"last_read_at"`
}

func (e *CursorMoved) Type() EventType  { return EventCursorMoved }
func (e *CursorMoved) Scope() uuid.UUID { return e.ConversationID }

// Conversation change operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ConversationChanged is delivered for any write to the conversations relation.
type ConversationChanged struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Op             string    `json:"op"`
}

func (e *ConversationChanged) Type() EventType  { return EventConversationChanged }
func (e *ConversationChanged) Scope() uuid.UUID { return e.ConversationID }

// PresenceEntry is one attached session in a presence snapshot.
type PresenceEntry struct {
	Principal principal.Ref `json:"principal"`
	SessionID string        `json:"session_id"`
	LastSeen  time.Time     `json:"last_seen"`
}

// PresenceSync carries the full membership of a conversation scope.
type PresenceSync struct {
	ConversationID uuid.UUID       `json:"conversation_id"`
	Entries        []PresenceEntry `json:"entries"`
}

func (e *PresenceSync) Type() EventType  { return EventPresenceSync }
func (e *PresenceSync) Scope() uuid.UUID { return e.ConversationID }

// TypingBroadcast signals that a principal started or stopped typing.
type TypingBroadcast struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	Principal      principal.Ref `json:"principal"`
	DisplayName    string        `json:"display_name"`
	Typing         bool          `json:"typing"`
	At             time.Time     `json:"at"`
}

func (e *TypingBroadcast) Type() EventType  { return EventTyping }
func (e *TypingBroadcast) Scope() uuid.UUID { return e.ConversationID }

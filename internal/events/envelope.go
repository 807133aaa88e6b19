package events

import (
	"encoding/json"
	"fmt"
	"time"
)

type Envelope struct {
	EventType     EventType       `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// AggregateOf returns the aggregate type and id an event is published under.
func AggregateOf(ev Event) (string, string) {
	switch e := ev.(type) {
	case *MessageInserted:
		return AggregateTypeMessage, e.Message.ID.String()
	case *MessageUpdated:
		return AggregateTypeMessage, e.Message.ID.String()
	case *CursorMoved:
		return AggregateTypeReceipt, e.ConversationID.String()
	case *ConversationChanged:
		return AggregateTypeConversation, e.ConversationID.String()
	case *PresenceSync:
		return AggregateTypePresence, e.ConversationID.String()
	case *TypingBroadcast:
		return AggregateTypeTyping, e.ConversationID.String()
	}
	return "", ""
}

// Wrap builds the envelope for ev.
func Wrap(ev Event, occurredAt time.Time) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	aggType, aggID := AggregateOf(ev)
	return Envelope{
		EventType:     ev.Type(),
		AggregateType: aggType,
		AggregateID:   aggID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       payload,
	}, nil
}

// Encode marshals ev into its wire form.
func Encode(ev Event, occurredAt time.Time) ([]byte, error) {
	env, err := Wrap(ev, occurredAt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses a wire payload into its typed event.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return Unwrap(env)
}

// Unwrap decodes the payload of env according to its event type.
func Unwrap(env Envelope) (Event, error) {
	var ev Event
	switch env.EventType {
	case EventMessageInserted:
		ev = &MessageInserted{}
	case EventMessageUpdated:
		ev = &MessageUpdated{}
	case EventCursorMoved:
		ev = &CursorMoved{}
	case EventConversationChanged:
		ev = &ConversationChanged{}
	case EventPresenceSync:
		ev = &PresenceSync{}
	case EventTyping:
		ev = &TypingBroadcast{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.EventType)
	}
	if err := json.Unmarshal(env.Payload, ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.EventType, err)
	}
	return ev, nil
}

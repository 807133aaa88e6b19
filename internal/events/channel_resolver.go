package events

import (
	"github.com/google/uuid"
)

// Redis channel prefixes
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPrefixPresence     = "channel:presence:"
	ChannelPrefixTyping       = "channel:typing:"
	ChannelConversations      = "channel:conversations"
	ChannelPattern            = "channel:*"
)

func ConversationChannel(id uuid.UUID) string {
	return ChannelPrefixConversation + id.String()
}

func PresenceChannel(id uuid.UUID) string {
	return ChannelPrefixPresence + id.String()
}

func TypingChannel(id uuid.UUID) string {
	return ChannelPrefixTyping + id.String()
}

// ResolveChannel determines which channel an event is published to.
func ResolveChannel(ev Event) string {
	switch e := ev.(type) {
	case *MessageInserted, *MessageUpdated, *CursorMoved:
		return ConversationChannel(e.Scope())
	case *PresenceSync:
		return PresenceChannel(e.ConversationID)
	case *TypingBroadcast:
		return TypingChannel(e.ConversationID)
	case *ConversationChanged:
		return ChannelConversations
	}
	return ""
}

package session

import (
	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/principal"
	"chatcore/internal/messages"
	"chatcore/internal/typing"

	"github.com/google/uuid"
)

// MessageView is a list item with who has read it.
type MessageView struct {
	messages.Item
	ReadBy []principal.Ref `json:"read_by,omitempty"`
}

// View is everything the UI renders, built in one pass on the loop.
type View struct {
	Conversations   []conversation.Summary `json:"conversations"`
	TotalUnread     int                    `json:"total_unread"`
	ListError       string                 `json:"list_error,omitempty"`
	Active          uuid.UUID              `json:"active_conversation_id"`
	Loading         bool                   `json:"loading"`
	LoadError       string                 `json:"load_error,omitempty"`
	Messages        []MessageView          `json:"messages"`
	Typing          []typing.Entry         `json:"typing"`
	TypingIndicator string                 `json:"typing_indicator,omitempty"`
	Online          []principal.Ref        `json:"online"`
}

func (s *Session) View() View {
	v := View{
		Conversations: s.list.List(),
		TotalUnread:   s.list.TotalUnread(),
		Active:        s.active,
	}
	if err := s.list.Err(); err != nil {
		v.ListError = err.Error()
	}
	if s.active == uuid.Nil {
		return v
	}

	v.Loading = s.sync.Loading()
	if err := s.sync.LoadError(); err != nil {
		v.LoadError = err.Error()
	}
	items := s.sync.Items()
	v.Messages = make([]MessageView, len(items))
	for i, it := range items {
		mv := MessageView{Item: it}
		if it.State == messages.Sent {
			mv.ReadBy = s.cursors.ReadersOf(it.Message)
		}
		v.Messages[i] = mv
	}
	v.Typing = s.typing.Entries()
	v.TypingIndicator = typing.Indicator(v.Typing)
	v.Online = s.presence.Online()
	return v
}

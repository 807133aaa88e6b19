package session

import (
	"context"
	"fmt"
	"strings"

	"chatcore/internal/assistant"
	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"
	"chatcore/internal/messages"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Send posts an optimistic message to the active conversation and returns
// its draft id.
func (s *Session) Send(d messages.Draft) (uuid.UUID, error) {
	if s.active == uuid.Nil {
		return uuid.Nil, chat_errors.ErrNotActive
	}
	id, err := s.sync.Send(s.active, d)
	if err == nil {
		s.typing.StopTyping()
	}
	return id, err
}

func (s *Session) Retry(draftID uuid.UUID) error {
	return s.sync.Retry(draftID)
}

func (s *Session) Edit(id uuid.UUID, content string) error {
	return s.sync.Edit(id, content)
}

func (s *Session) Delete(id uuid.UUID) error {
	return s.sync.Delete(id)
}

func (s *Session) React(id uuid.UUID, emoji string) error {
	return s.sync.ToggleReaction(id, emoji)
}

// Typing signals a keystroke in the active conversation.
func (s *Session) Typing() error {
	if s.active == uuid.Nil {
		return chat_errors.ErrNotActive
	}
	s.typing.SignalTyping(s.active)
	return nil
}

func (s *Session) StopTyping() {
	s.typing.StopTyping()
}

func (s *Session) MarkRead() error {
	if s.active == uuid.Nil {
		return chat_errors.ErrNotActive
	}
	s.cursors.MarkRead(s.active)
	return nil
}

// Archive hides a conversation from the list, leaving it first if active.
func (s *Session) Archive(conversationID uuid.UUID) error {
	if conversationID == s.active {
		s.leave()
	}
	return s.list.MarkArchived(conversationID)
}

func (s *Session) Pin(conversationID uuid.UUID, messageID uuid.NullUUID) error {
	return s.list.Pin(conversationID, messageID)
}

func (s *Session) Refresh() {
	s.list.Refresh()
}

func (s *Session) TotalUnread() int {
	return s.list.TotalUnread()
}

// Create writes a new conversation off the loop and refreshes the list once
// it lands.
func (s *Session) Create(kind conversation.Kind, opts conversation.CreateOptions, reply Reply) {
	s.sched.Go(func(ctx context.Context) func() {
		c, err := s.list.Create(ctx, kind, opts)
		return func() {
			s.list.Refresh()
			reply(c, err)
		}
	})
}

// Forward copies a message of the active list into target as the current
// principal. Forwarding into the active conversation goes through the
// optimistic path.
func (s *Session) Forward(messageID, target uuid.UUID, reply Reply) {
	src, ok := s.sync.Find(messageID)
	if !ok || src.State != messages.Sent {
		reply(nil, chat_errors.ErrNotFound)
		return
	}
	d := messages.Draft{
		Content:         src.Content,
		Type:            src.Type,
		Attachment:      src.Attachment(),
		ForwardedFromID: uuid.NullUUID{UUID: src.ID, Valid: true},
	}
	if target == s.active {
		id, err := s.sync.Send(target, d)
		reply(id, err)
		return
	}
	if target == uuid.Nil {
		reply(nil, chat_errors.ErrInvalidInput)
		return
	}

	clientID, err := uuid.NewV7()
	if err != nil {
		reply(nil, err)
		return
	}
	m := &message.Message{
		ConversationID:  target,
		SenderID:        s.self.ID,
		SenderKind:      s.self.Kind,
		ClientMessageID: uuid.NullUUID{UUID: clientID, Valid: true},
		Content:         d.Content,
		Type:            d.Type,
		ForwardedFromID: d.ForwardedFromID,
		Reactions:       message.Reactions{},
	}
	m.SetAttachment(d.Attachment)

	s.sched.Go(func(ctx context.Context) func() {
		err := s.deps.Messages.Create(ctx, m)
		return func() {
			if err != nil {
				s.log.Warn("failed to forward message", zap.String("message_id", messageID.String()), zap.Error(err))
				reply(nil, err)
				return
			}
			s.list.ApplyMessage(*m)
			reply(m.ID, nil)
		}
	})
}

// Search finds messages of the active conversation containing query,
// newest first.
func (s *Session) Search(query string, reply Reply) {
	query = strings.TrimSpace(query)
	if query == "" {
		reply([]message.Message{}, nil)
		return
	}
	conv := s.active
	if conv == uuid.Nil {
		reply(nil, chat_errors.ErrNotActive)
		return
	}
	s.sched.Go(func(ctx context.Context) func() {
		found, err := s.deps.Messages.Search(ctx, conv, query, SearchLimit)
		return func() { reply(found, err) }
	})
}

// Media lists the active conversation's messages carrying files.
func (s *Session) Media(kind message.MediaKind, reply Reply) {
	switch kind {
	case "":
		kind = message.MediaAll
	case message.MediaAll, message.MediaImages, message.MediaFiles:
	default:
		reply(nil, fmt.Errorf("%w: media kind %q", chat_errors.ErrInvalidInput, kind))
		return
	}
	conv := s.active
	if conv == uuid.Nil {
		reply(nil, chat_errors.ErrNotActive)
		return
	}
	s.sched.Go(func(ctx context.Context) func() {
		found, err := s.deps.Messages.ListMedia(ctx, conv, kind, MediaLimit)
		return func() { reply(found, err) }
	})
}

// Translate never fails: the assistant returns the input when it cannot help.
func (s *Session) Translate(text, lang string, reply Reply) {
	conv := s.active
	s.sched.Go(func(ctx context.Context) func() {
		out := s.deps.Assistant.Translate(ctx, conv, text, lang)
		return func() { reply(out, nil) }
	})
}

// Summarize summarizes the last text messages of the active conversation.
func (s *Session) Summarize(reply Reply) {
	conv := s.active
	if conv == uuid.Nil {
		reply(nil, chat_errors.ErrNotActive)
		return
	}
	s.sched.Go(func(ctx context.Context) func() {
		recent, err := s.deps.Messages.RecentText(ctx, conv, assistant.TranscriptSize)
		if err != nil {
			return func() { reply(nil, err) }
		}
		if len(recent) == 0 {
			return func() { reply(nil, fmt.Errorf("%w: nothing to summarize", chat_errors.ErrInvalidInput)) }
		}
		names := s.resolveNames(ctx, recent)
		transcript := assistant.Transcript(recent, func(m message.Message) string {
			if p, ok := names[m.Sender()]; ok && p.DisplayName != "" {
				return p.DisplayName
			}
			return principal.DefaultName(m.SenderKind)
		})
		out := s.deps.Assistant.Summarize(ctx, conv, transcript)
		return func() { reply(out, nil) }
	})
}

// resolveNames runs off the loop.
func (s *Session) resolveNames(ctx context.Context, msgs []message.Message) map[principal.Ref]principal.Principal {
	if s.deps.Directory == nil {
		return nil
	}
	seen := make(map[principal.Ref]bool)
	var refs []principal.Ref
	for _, m := range msgs {
		if ref := m.Sender(); !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	names, err := s.deps.Directory.Resolve(ctx, refs)
	if err != nil {
		s.log.Warn("failed to resolve transcript names", zap.Error(err))
		return nil
	}
	return names
}

package gateway

import (
	"fmt"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"
	"chatcore/internal/loop"
	"chatcore/internal/messages"
	"chatcore/internal/session"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
)

// Session is the per-connection state the gateway drives. Every method runs
// on the connection's loop.
type Session interface {
	Start() error
	Close()
	Tick(now time.Time)
	View() session.View

	Select(conversationID uuid.UUID) error
	Send(d messages.Draft) (uuid.UUID, error)
	Retry(draftID uuid.UUID) error
	Edit(id uuid.UUID, content string) error
	Delete(id uuid.UUID) error
	React(id uuid.UUID, emoji string) error
	Typing() error
	StopTyping()
	MarkRead() error
	Archive(conversationID uuid.UUID) error
	Pin(conversationID uuid.UUID, messageID uuid.NullUUID) error
	Refresh()
	Create(kind conversation.Kind, opts conversation.CreateOptions, reply session.Reply)
	Forward(messageID, target uuid.UUID, reply session.Reply)
	Search(query string, reply session.Reply)
	Media(kind message.MediaKind, reply session.Reply)
	Translate(text, lang string, reply session.Reply)
	Summarize(reply session.Reply)
}

// SessionFactory builds the session of a new connection on its loop.
type SessionFactory func(sched loop.Scheduler, who principal.Principal, sessionID string) Session

// dispatch runs cmd against sess and reports exactly one result through out,
// now or once the command's async work completes.
func dispatch(sess Session, cmd Command, out func(Frame)) {
	reply := func(v any, err error) {
		out(resultFrame(cmd.ID, v, err))
	}
	done := func(err error) {
		reply(nil, err)
	}

	switch cmd.Type {
	case CmdSelect:
		done(sess.Select(cmd.ConversationID))
	case CmdSend:
		id, err := sess.Send(messages.Draft{
			Content:    cmd.Content,
			Type:       cmd.MessageType,
			Attachment: cmd.Attachment,
			ReplyToID:  cmd.ReplyToID,
		})
		if err != nil {
			done(err)
			return
		}
		reply(map[string]uuid.UUID{"draft_id": id}, nil)
	case CmdRetry:
		done(sess.Retry(cmd.DraftID))
	case CmdEdit:
		done(sess.Edit(cmd.MessageID, cmd.Content))
	case CmdDelete:
		done(sess.Delete(cmd.MessageID))
	case CmdReact:
		done(sess.React(cmd.MessageID, cmd.Emoji))
	case CmdTyping:
		if cmd.Stop {
			sess.StopTyping()
			done(nil)
			return
		}
		done(sess.Typing())
	case CmdMarkRead:
		done(sess.MarkRead())
	case CmdArchive:
		done(sess.Archive(cmd.ConversationID))
	case CmdPin:
		done(sess.Pin(cmd.ConversationID, cmd.PinnedMessageID))
	case CmdRefresh:
		sess.Refresh()
		done(nil)
	case CmdCreate:
		sess.Create(cmd.Kind, conversation.CreateOptions{
			Title:           cmd.Title,
			ParticipantIDs:  cmd.ParticipantIDs,
			ExternalPartyID: cmd.ExternalPartyID,
		}, reply)
	case CmdForward:
		sess.Forward(cmd.MessageID, cmd.TargetConversationID, reply)
	case CmdSearch:
		sess.Search(cmd.Query, reply)
	case CmdMedia:
		sess.Media(cmd.Media, reply)
	case CmdTranslate:
		sess.Translate(cmd.Text, cmd.Lang, reply)
	case CmdSummarize:
		sess.Summarize(reply)
	default:
		done(fmt.Errorf("%w: unknown command %q", chat_errors.ErrInvalidInput, cmd.Type))
	}
}

package gateway

import (
	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/transport/httpdto"

	"github.com/google/uuid"
)

// Command types accepted from the UI.
const (
	CmdSelect    = "select"
	CmdSend      = "send"
	CmdRetry     = "retry"
	CmdEdit      = "edit"
	CmdDelete    = "delete"
	CmdReact     = "react"
	CmdTyping    = "typing"
	CmdMarkRead  = "mark_read"
	CmdArchive   = "archive"
	CmdCreate    = "create"
	CmdRefresh   = "refresh"
	CmdSearch    = "search"
	CmdMedia     = "media"
	CmdForward   = "forward"
	CmdPin       = "pin"
	CmdTranslate = "translate"
	CmdSummarize = "summarize"
	CmdPing      = "ping"
)

// Frame types sent to the UI.
const (
	FrameView   = "view"
	FrameResult = "result"
	FramePong   = "pong"
)

// Command is one inbound request. ID is echoed on its result frame.
type Command struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	ConversationID       uuid.UUID     `json:"conversation_id"`
	TargetConversationID uuid.UUID     `json:"target_conversation_id"`
	MessageID            uuid.UUID     `json:"message_id"`
	DraftID              uuid.UUID     `json:"draft_id"`
	PinnedMessageID      uuid.NullUUID `json:"pinned_message_id"`

	Content     string              `json:"content,omitempty"`
	MessageType message.Type        `json:"message_type,omitempty"`
	Attachment  *message.Attachment `json:"attachment,omitempty"`
	ReplyToID   uuid.NullUUID       `json:"reply_to_id"`
	Emoji       string              `json:"emoji,omitempty"`
	Stop        bool                `json:"stop,omitempty"`

	Query string            `json:"query,omitempty"`
	Media message.MediaKind `json:"media,omitempty"`

	Kind            conversation.Kind `json:"kind,omitempty"`
	Title           string            `json:"title,omitempty"`
	ParticipantIDs  []uuid.UUID       `json:"participant_ids,omitempty"`
	ExternalPartyID uuid.UUID         `json:"external_party_id"`

	Text string `json:"text,omitempty"`
	Lang string `json:"lang,omitempty"`
}

// Frame is one outbound message.
type Frame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	httpdto.Response[any]
}

func viewFrame(v any) Frame {
	return Frame{Type: FrameView, Response: httpdto.NewSuccessResponse[any](v)}
}

func resultFrame(id string, v any, err error) Frame {
	if err != nil {
		return Frame{Type: FrameResult, ID: id, Response: httpdto.FromError(err)}
	}
	return Frame{Type: FrameResult, ID: id, Response: httpdto.NewSuccessResponse[any](v)}
}

package message

import (
	"bytes"
	"time"

	"chatcore/internal/domain/principal"

	"github.com/google/uuid"
)

// Type is the kind of payload a message carries.
type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeVideo  Type = "video"
	TypeAudio  Type = "audio"
	TypeFile   Type = "file"
	TypeSystem Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeFile, TypeSystem:
		return true
	}
	return false
}

// Message represents the chat_messages table
type Message struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_chat_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID        uuid.UUID      `gorm:"type:uuid;not null" json:"sender_id"`
	SenderKind      principal.Kind `gorm:"type:varchar(20);not null" json:"sender_kind"`
	ClientMessageID uuid.NullUUID  `gorm:"type:uuid;uniqueIndex" json:"client_message_id"`
	Content         string         `gorm:"type:text;not null;default:''" json:"content"`
	Type            Type           `gorm:"column:message_type;type:varchar(20);not null" json:"message_type"`
	FileURL         *string        `gorm:"type:text" json:"file_url,omitempty"`
	FileName        *string        `gorm:"type:text" json:"file_name,omitempty"`
	FileSize        *int64         `json:"file_size,omitempty"`
	FileType        *string        `gorm:"type:varchar(255)" json:"file_type,omitempty"`
	FileSource      *string        `gorm:"type:varchar(20)" json:"file_source,omitempty"`
	ReplyToID       uuid.NullUUID  `gorm:"type:uuid" json:"reply_to_id"`
	ForwardedFromID uuid.NullUUID  `gorm:"type:uuid" json:"forwarded_from_id"`
	IsEdited        bool           `gorm:"not null;default:false" json:"is_edited"`
	EditedAt        *time.Time     `json:"edited_at,omitempty"`
	IsDeleted       bool           `gorm:"not null;default:false;index" json:"is_deleted"`
	Reactions       Reactions      `gorm:"type:jsonb;serializer:json;not null" json:"reactions"`
	CreatedAt       time.Time      `gorm:"not null;index:idx_chat_messages_conversation_created,priority:2" json:"created_at"`
}

func (m Message) Sender() principal.Ref {
	return principal.Ref{ID: m.SenderID, Kind: m.SenderKind}
}

// Before reports whether m sorts before o in display order: creation time
// ascending, ties broken by identifier.
func (m Message) Before(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return bytes.Compare(m.ID[:], o.ID[:]) < 0
}

// Attachment returns the file metadata of the message, nil for plain text.
func (m Message) Attachment() *Attachment {
	if m.FileURL == nil {
		return nil
	}
	a := &Attachment{URL: *m.FileURL}
	if m.FileName != nil {
		a.Name = *m.FileName
	}
	if m.FileSize != nil {
		a.Size = *m.FileSize
	}
	if m.FileType != nil {
		a.MimeType = *m.FileType
	}
	if m.FileSource != nil {
		a.Source = Source(*m.FileSource)
	}
	return a
}

// SetAttachment copies the descriptor into the file columns.
func (m *Message) SetAttachment(a *Attachment) {
	if a == nil {
		m.FileURL, m.FileName, m.FileSize, m.FileType, m.FileSource = nil, nil, nil, nil, nil
		return
	}
	url, name, mime, source, size := a.URL, a.Name, a.MimeType, string(a.Source), a.Size
	m.FileURL = &url
	m.FileName = &name
	m.FileType = &mime
	m.FileSize = &size
	if source != "" {
		m.FileSource = &source
	}
}

// Preview is the text shown for m in a conversation list.
func (m Message) Preview() string {
	if m.Content != "" {
		return m.Content
	}
	if a := m.Attachment(); a != nil && a.Name != "" {
		return "📎 " + a.Name
	}
	return string(m.Type)
}

func (Message) TableName() string {
	return "chat_messages"
}

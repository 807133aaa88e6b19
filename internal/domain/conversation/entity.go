package conversation

import (
	"time"

	"chatcore/internal/domain/principal"

	"github.com/google/uuid"
)

// Kind is the audience of a conversation.
type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"
	KindGroup    Kind = "group"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInternal, KindExternal, KindGroup:
		return true
	}
	return false
}

// Conversation represents the chat_conversations table
type Conversation struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Title           *string       `gorm:"type:text" json:"title,omitempty"`
	Kind            Kind          `gorm:"type:varchar(20);not null" json:"kind"`
	ExternalPartyID uuid.NullUUID `gorm:"type:uuid;index" json:"external_party_id"`
	CreatedBy       uuid.UUID     `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
	IsArchived      bool          `gorm:"not null;default:false" json:"is_archived"`
	LastMessage     *string       `gorm:"type:text" json:"last_message,omitempty"`
	LastMessageAt   *time.Time    `json:"last_message_at,omitempty"`
	PinnedMessageID uuid.NullUUID `gorm:"type:uuid" json:"pinned_message_id"`

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// LastActivity orders conversations that never received a message by creation time.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// Participant represents the chat_participants table. A principal appears at
// most once per conversation.
type Participant struct {
	ConversationID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	PrincipalID    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"principal_id"`
	PrincipalKind  principal.Kind `gorm:"type:varchar(20);not null" json:"principal_kind"`
	IsAdmin        bool           `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt       time.Time      `gorm:"not null" json:"joined_at"`
	LastReadAt     *time.Time     `json:"last_read_at,omitempty"`
}

func (p Participant) Principal() principal.Ref {
	return principal.Ref{ID: p.PrincipalID, Kind: p.PrincipalKind}
}

// Summary is a conversation as listed for one principal.
type Summary struct {
	Conversation
	UnreadCount       int        `json:"unread_count"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`
	ExternalPartyName string     `json:"external_party_name,omitempty"`
}

// CreateOptions carries the optional inputs of conversation creation.
type CreateOptions struct {
	Title           string
	ParticipantIDs  []uuid.UUID
	ExternalPartyID uuid.UUID
}

func (Conversation) TableName() string {
	return "chat_conversations"
}

func (Participant) TableName() string {
	return "chat_participants"
}

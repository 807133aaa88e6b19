package repository

import (
	"context"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/outbox"
	"chatcore/internal/domain/principal"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	// ListForPrincipal returns the non-archived conversations the principal
	// participates in, with unread counts, most recently active first.
	ListForPrincipal(ctx context.Context, who principal.Ref) ([]conversation.Summary, error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Create(ctx context.Context, c *conversation.Conversation) error
	AddParticipants(ctx context.Context, ps []conversation.Participant) error
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SetPinnedMessage(ctx context.Context, id uuid.UUID, messageID uuid.NullUUID) error
	// MarkRead advances the participant's read cursor to at. The cursor never
	// moves backwards.
	MarkRead(ctx context.Context, conversationID uuid.UUID, who principal.Ref, at time.Time) error
}

type MessageRepository interface {
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	// Create persists m. Retrying with the same client message id returns the
	// row written by the first attempt.
	Create(ctx context.Context, m *message.Message) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	UpdateReactions(ctx context.Context, id uuid.UUID, reactions message.Reactions) error

	Search(ctx context.Context, conversationID uuid.UUID, query string, limit int) ([]message.Message, error)
	ListMedia(ctx context.Context, conversationID uuid.UUID, kind message.MediaKind, limit int) ([]message.Message, error)
	RecentText(ctx context.Context, conversationID uuid.UUID, limit int) ([]message.Message, error)
}

type DirectoryRepository interface {
	GetProfiles(ctx context.Context, ids []uuid.UUID) ([]principal.Profile, error)
	GetExternalParties(ctx context.Context, ids []uuid.UUID) ([]principal.ExternalParty, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, tx *gorm.DB, ev *outbox.Event) error
	GetPending(ctx context.Context, limit int) ([]outbox.Event, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error
	IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error
}

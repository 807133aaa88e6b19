package repository

import (
	"context"
	"errors"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/principal"
	"chatcore/internal/events"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

type summaryRow struct {
	conversation.Conversation `gorm:"embedded"`
	ParticipantLastReadAt     *time.Time
	ExternalPartyName         *string
	UnreadCount               int
}

const listForPrincipalSQL = `
SELECT c.*,
       p.last_read_at AS participant_last_read_at,
       ep.name AS external_party_name,
       (SELECT COUNT(*) FROM chat_messages m
         WHERE m.conversation_id = c.id
           AND m.is_deleted = false
           AND NOT (m.sender_id = p.principal_id AND m.sender_kind = p.principal_kind)
           AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)) AS unread_count
FROM chat_conversations c
JOIN chat_participants p
  ON p.conversation_id = c.id AND p.principal_id = ? AND p.principal_kind = ?
LEFT JOIN external_parties ep ON ep.id = c.external_party_id
WHERE c.is_archived = false
ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id ASC`

func (r *PostgresConversationRepository) ListForPrincipal(ctx context.Context, who principal.Ref) ([]conversation.Summary, error) {
	var rows []summaryRow
	if err := r.db.WithContext(ctx).Raw(listForPrincipalSQL, who.ID, who.Kind).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var participants []conversation.Participant
	if err := r.db.WithContext(ctx).
		Where("conversation_id IN ?", ids).
		Order("joined_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	byConv := make(map[uuid.UUID][]conversation.Participant, len(rows))
	for _, p := range participants {
		byConv[p.ConversationID] = append(byConv[p.ConversationID], p)
	}

	out := make([]conversation.Summary, len(rows))
	for i, row := range rows {
		c := row.Conversation
		c.Participants = byConv[c.ID]
		s := conversation.Summary{
			Conversation: c,
			UnreadCount:  row.UnreadCount,
			LastReadAt:   row.ParticipantLastReadAt,
		}
		if row.ExternalPartyName != nil {
			s.ExternalPartyName = *row.ExternalPartyName
		}
		out[i] = s
	}
	return out, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(c).Error; err != nil {
			if isUniqueViolation(err) {
				return chat_errors.ErrAlreadyExists
			}
			return err
		}
		return enqueue(tx, &events.ConversationChanged{ConversationID: c.ID, Op: events.OpInsert}, c.CreatedAt)
	})
}

func (r *PostgresConversationRepository) AddParticipants(ctx context.Context, ps []conversation.Participant) error {
	if len(ps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ps).Error; err != nil {
			if isUniqueViolation(err) {
				return chat_errors.ErrAlreadyExists
			}
			return err
		}
		return enqueue(tx, &events.ConversationChanged{ConversationID: ps[0].ConversationID, Op: events.OpUpdate}, time.Now())
	})
}

func (r *PostgresConversationRepository) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var ps []conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Find(&ps).Error
	if err != nil {
		return nil, err
	}
	return ps, nil
}

func (r *PostgresConversationRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	return r.update(ctx, id, map[string]interface{}{"is_archived": archived})
}

func (r *PostgresConversationRepository) SetPinnedMessage(ctx context.Context, id uuid.UUID, messageID uuid.NullUUID) error {
	return r.update(ctx, id, map[string]interface{}{"pinned_message_id": messageID})
}

func (r *PostgresConversationRepository) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	now := time.Now()
	fields["updated_at"] = now
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&conversation.Conversation{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotFound
		}
		return enqueue(tx, &events.ConversationChanged{ConversationID: id, Op: events.OpUpdate}, now)
	})
}

func (r *PostgresConversationRepository) MarkRead(ctx context.Context, conversationID uuid.UUID, who principal.Ref, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&conversation.Participant{}).
			Where("conversation_id = ? AND principal_id = ? AND principal_kind = ?", conversationID, who.ID, who.Kind).
			Update("last_read_at", gorm.Expr("GREATEST(COALESCE(last_read_at, ?), ?)", at, at))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotFound
		}
		return enqueue(tx, &events.CursorMoved{ConversationID: conversationID, Principal: who, LastReadAt: at}, at)
	})
}

package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/events"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	var msgs []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = false", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, chat_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Reactions == nil {
		m.Reactions = message.Reactions{}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		res := tx.Model(&conversation.Conversation{}).
			Where("id = ? AND (last_message_at IS NULL OR last_message_at <= ?)", m.ConversationID, m.CreatedAt).
			Updates(map[string]interface{}{
				"last_message":    m.Preview(),
				"last_message_at": m.CreatedAt,
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if err := enqueue(tx, &events.MessageInserted{Message: *m}, m.CreatedAt); err != nil {
			return err
		}
		return enqueue(tx, &events.ConversationChanged{ConversationID: m.ConversationID, Op: events.OpUpdate}, m.CreatedAt)
	})
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}
	if !m.ClientMessageID.Valid {
		return chat_errors.ErrAlreadyExists
	}
	// An earlier attempt with the same draft already landed.
	var existing message.Message
	if lookupErr := r.db.WithContext(ctx).
		Where("client_message_id = ?", m.ClientMessageID).
		First(&existing).Error; lookupErr != nil {
		return chat_errors.ErrAlreadyExists
	}
	*m = existing
	return nil
}

func (r *PostgresMessageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	return r.mutate(ctx, id, map[string]interface{}{
		"content":   content,
		"is_edited": true,
		"edited_at": editedAt,
	})
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.mutate(ctx, id, map[string]interface{}{"is_deleted": true})
}

func (r *PostgresMessageRepository) UpdateReactions(ctx context.Context, id uuid.UUID, reactions message.Reactions) error {
	if reactions == nil {
		reactions = message.Reactions{}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m message.Message
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return chat_errors.ErrNotFound
			}
			return err
		}
		m.Reactions = reactions
		if err := tx.Model(&m).Select("reactions").Updates(&m).Error; err != nil {
			return err
		}
		return enqueue(tx, &events.MessageUpdated{Message: m}, time.Now())
	})
}

// mutate applies fields and emits the updated row.
func (r *PostgresMessageRepository) mutate(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&message.Message{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat_errors.ErrNotFound
		}
		var m message.Message
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		return enqueue(tx, &events.MessageUpdated{Message: m}, time.Now())
	})
}

func (r *PostgresMessageRepository) Search(ctx context.Context, conversationID uuid.UUID, query string, limit int) ([]message.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var msgs []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = false", conversationID).
		Where("content ILIKE ?", "%"+escapeLike(query)+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *PostgresMessageRepository) ListMedia(ctx context.Context, conversationID uuid.UUID, kind message.MediaKind, limit int) ([]message.Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = false AND file_url IS NOT NULL", conversationID)
	switch kind {
	case message.MediaImages:
		q = q.Where("message_type = ?", message.TypeImage)
	case message.MediaFiles:
		q = q.Where("message_type <> ?", message.TypeImage)
	}
	var msgs []message.Message
	if err := q.Order("created_at DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *PostgresMessageRepository) RecentText(ctx context.Context, conversationID uuid.UUID, limit int) ([]message.Message, error) {
	var msgs []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_deleted = false AND message_type = ?", conversationID, message.TypeText).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// oldest first for transcripts
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

package repository

import (
	"fmt"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/outbox"
	"chatcore/internal/domain/principal"

	"gorm.io/gorm"
)

// InitSchema runs the auto-migration and the indexes gorm cannot express.
func InitSchema(db *gorm.DB) error {
	// 1. Tables
	if err := db.AutoMigrate(
		&principal.Profile{},
		&principal.ExternalParty{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
		&outbox.Event{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	// 2. Partial indexes
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_media
			ON chat_messages (conversation_id, created_at DESC)
			WHERE file_url IS NOT NULL AND is_deleted = false;`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_events_pending
			ON outbox_events (created_at)
			WHERE status = 'PENDING';`,
		`CREATE INDEX IF NOT EXISTS idx_chat_participants_principal
			ON chat_participants (principal_id, principal_kind);`,
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

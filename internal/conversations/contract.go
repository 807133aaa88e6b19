//go:generate mockgen -destination=mock_contract_test.go -package=${GOPACKAGE} -source=contract.go
package conversations

import (
	"context"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/principal"

	"github.com/google/uuid"
)

type Repository interface {
	ListForPrincipal(ctx context.Context, who principal.Ref) ([]conversation.Summary, error)
	Create(ctx context.Context, c *conversation.Conversation) error
	AddParticipants(ctx context.Context, ps []conversation.Participant) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SetPinnedMessage(ctx context.Context, id uuid.UUID, messageID uuid.NullUUID) error
}

// UnreadTracker owns unread counts; the store seeds it from listings.
type UnreadTracker interface {
	Seed(conversationID uuid.UUID, lastReadAt *time.Time, unread int)
	Forget(conversationID uuid.UUID)
	Unread(conversationID uuid.UUID) int
}

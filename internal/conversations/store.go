// Package conversations keeps the conversation list of the current principal.
package conversations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"
	"chatcore/internal/loop"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store must only be used from the loop, except Create which blocks and
// touches no state.
type Store struct {
	sched   loop.Scheduler
	repo    Repository
	unread  UnreadTracker
	self    principal.Ref
	log     *logger.Logger
	clock   func() time.Time
	items   []conversation.Summary
	loaded  bool
	err     error
	running bool
	again   bool
}

func NewStore(sched loop.Scheduler, repo Repository, unread UnreadTracker, self principal.Ref, log *logger.Logger) *Store {
	return &Store{
		sched:  sched,
		repo:   repo,
		unread: unread,
		self:   self,
		log:    log,
		clock:  time.Now,
	}
}

// Refresh re-runs the listing. Calls made while one is running coalesce into
// a single follow-up.
func (s *Store) Refresh() {
	if s.running {
		s.again = true
		return
	}
	s.running = true
	who := s.self
	s.sched.Go(func(ctx context.Context) func() {
		list, err := s.repo.ListForPrincipal(ctx, who)
		return func() {
			s.running = false
			s.apply(list, err)
			if s.again {
				s.again = false
				s.Refresh()
			}
		}
	})
}

func (s *Store) apply(list []conversation.Summary, err error) {
	s.loaded = true
	if err != nil {
		s.log.Warn("failed to list conversations", zap.Error(err))
		s.err = err
		s.items = nil
		return
	}
	s.err = nil

	listed := make(map[uuid.UUID]bool, len(list))
	for _, c := range list {
		listed[c.ID] = true
		s.unread.Seed(c.ID, c.LastReadAt, c.UnreadCount)
	}
	for _, c := range s.items {
		if !listed[c.ID] {
			s.unread.Forget(c.ID)
		}
	}
	s.items = list
	s.sort()
}

func (s *Store) sort() {
	sort.SliceStable(s.items, func(i, j int) bool {
		a, b := s.items[i].LastActivity(), s.items[j].LastActivity()
		if !a.Equal(b) {
			return a.After(b)
		}
		return s.items[i].ID.String() < s.items[j].ID.String()
	})
}

// List returns the conversations with their current unread counts.
func (s *Store) List() []conversation.Summary {
	out := make([]conversation.Summary, len(s.items))
	for i, c := range s.items {
		c.UnreadCount = s.unread.Unread(c.ID)
		out[i] = c
	}
	return out
}

// Err is the error of the last listing, nil once one succeeds.
func (s *Store) Err() error { return s.err }

func (s *Store) Loaded() bool { return s.loaded }

func (s *Store) Get(id uuid.UUID) (conversation.Summary, bool) {
	for _, c := range s.items {
		if c.ID == id {
			c.UnreadCount = s.unread.Unread(c.ID)
			return c, true
		}
	}
	return conversation.Summary{}, false
}

// TotalUnread sums the unread counts of listed conversations.
func (s *Store) TotalUnread() int {
	total := 0
	for _, c := range s.items {
		total += s.unread.Unread(c.ID)
	}
	return total
}

// ApplyMessage keeps the last message summary in step with new messages.
// Older messages never move it back.
func (s *Store) ApplyMessage(m message.Message) {
	for i := range s.items {
		c := &s.items[i]
		if c.ID != m.ConversationID {
			continue
		}
		if c.LastMessageAt != nil && m.CreatedAt.Before(*c.LastMessageAt) {
			return
		}
		preview := m.Preview()
		at := m.CreatedAt
		c.LastMessage = &preview
		c.LastMessageAt = &at
		s.sort()
		return
	}
}

// MarkArchived drops the conversation from the list and persists the flag.
// History is kept.
func (s *Store) MarkArchived(id uuid.UUID) error {
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return chat_errors.ErrNotFound
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)

	s.sched.Go(func(ctx context.Context) func() {
		err := s.repo.SetArchived(ctx, id, true)
		if err == nil {
			return nil
		}
		return func() {
			s.log.Warn("failed to archive conversation", zap.String("conversation_id", id.String()), zap.Error(err))
			s.Refresh()
		}
	})
	return nil
}

// Pin sets or clears the pinned message of a listed conversation.
func (s *Store) Pin(id uuid.UUID, messageID uuid.NullUUID) error {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		s.items[i].PinnedMessageID = messageID
		s.sched.Go(func(ctx context.Context) func() {
			err := s.repo.SetPinnedMessage(ctx, id, messageID)
			if err == nil {
				return nil
			}
			return func() {
				s.log.Warn("failed to pin message", zap.String("conversation_id", id.String()), zap.Error(err))
				s.Refresh()
			}
		})
		return nil
	}
	return chat_errors.ErrNotFound
}

// Create writes the conversation row and then its participants: the creator
// as admin, everyone else as member. The two writes are not atomic. When the
// second fails the row stays behind and ErrPartialCreate is returned.
func (s *Store) Create(ctx context.Context, kind conversation.Kind, opts conversation.CreateOptions) (*conversation.Conversation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", chat_errors.ErrInvalidInput, kind)
	}
	if kind == conversation.KindExternal && opts.ExternalPartyID == uuid.Nil {
		return nil, fmt.Errorf("%w: external conversation needs an external party", chat_errors.ErrInvalidInput)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := s.clock()
	c := &conversation.Conversation{
		ID:        id,
		Kind:      kind,
		CreatedBy: s.self.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if title := strings.TrimSpace(opts.Title); title != "" {
		c.Title = &title
	}
	if opts.ExternalPartyID != uuid.Nil {
		c.ExternalPartyID = uuid.NullUUID{UUID: opts.ExternalPartyID, Valid: true}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	ps := []conversation.Participant{{
		ConversationID: id,
		PrincipalID:    s.self.ID,
		PrincipalKind:  s.self.Kind,
		IsAdmin:        true,
		JoinedAt:       now,
	}}
	seen := map[uuid.UUID]bool{s.self.ID: true}
	for _, pid := range opts.ParticipantIDs {
		if pid == uuid.Nil || seen[pid] {
			continue
		}
		seen[pid] = true
		ps = append(ps, conversation.Participant{
			ConversationID: id,
			PrincipalID:    pid,
			PrincipalKind:  principal.KindUser,
			JoinedAt:       now,
		})
	}

	if err := s.repo.AddParticipants(ctx, ps); err != nil {
		s.log.Warn("conversation created without participants",
			zap.String("conversation_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", chat_errors.ErrPartialCreate, err)
	}
	c.Participants = ps
	return c, nil
}

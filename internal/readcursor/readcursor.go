// Package readcursor tracks read cursors and the unread counts derived from
// them.
package readcursor

import (
	"context"
	"sort"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"
	"chatcore/internal/events"
	"chatcore/internal/loop"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the durable side of read cursors.
type Store interface {
	MarkRead(ctx context.Context, conversationID uuid.UUID, who principal.Ref, at time.Time) error
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
}

// Cursors maps a participant to their last_read_at; nil means never read.
type Cursors map[principal.Ref]*time.Time

type convState struct {
	lastRead *time.Time
	unread   int
}

// Manager owns the current principal's cursor and unread count per
// conversation, and the cursors of the other participants of the attached
// conversation. It must only be used from the loop.
type Manager struct {
	sched loop.Scheduler
	store Store
	self  principal.Ref
	log   *logger.Logger

	convs    map[uuid.UUID]*convState
	attached uuid.UUID
	cursors  Cursors
}

func NewManager(sched loop.Scheduler, store Store, self principal.Ref, log *logger.Logger) *Manager {
	return &Manager{
		sched: sched,
		store: store,
		self:  self,
		log:   log,
		convs: make(map[uuid.UUID]*convState),
	}
}

func (m *Manager) state(id uuid.UUID) *convState {
	st, ok := m.convs[id]
	if !ok {
		st = &convState{}
		m.convs[id] = st
	}
	return st
}

// Seed installs server computed values. A seed older than a cursor this
// session already advanced is ignored.
func (m *Manager) Seed(conversationID uuid.UUID, lastReadAt *time.Time, unread int) {
	st := m.state(conversationID)
	if st.lastRead != nil && (lastReadAt == nil || st.lastRead.After(*lastReadAt)) {
		return
	}
	st.lastRead = copyTime(lastReadAt)
	st.unread = unread
}

// Forget drops the state of a conversation that is no longer listed.
func (m *Manager) Forget(conversationID uuid.UUID) {
	delete(m.convs, conversationID)
}

func (m *Manager) Unread(conversationID uuid.UUID) int {
	if st, ok := m.convs[conversationID]; ok {
		return st.unread
	}
	return 0
}

// TotalUnread sums the unread counts of every known conversation.
func (m *Manager) TotalUnread() int {
	total := 0
	for _, st := range m.convs {
		total += st.unread
	}
	return total
}

func (m *Manager) LastRead(conversationID uuid.UUID) *time.Time {
	if st, ok := m.convs[conversationID]; ok {
		return copyTime(st.lastRead)
	}
	return nil
}

// Observe counts msg as unread when it is from someone else and newer than
// the cursor.
func (m *Manager) Observe(msg message.Message) {
	if msg.Sender() == m.self || msg.IsDeleted {
		return
	}
	st := m.state(msg.ConversationID)
	if st.lastRead == nil || msg.CreatedAt.After(*st.lastRead) {
		st.unread++
	}
}

// MarkRead moves the cursor to now and zeroes the unread count. The durable
// write is fire-and-forget.
func (m *Manager) MarkRead(conversationID uuid.UUID) {
	now := m.sched.Now()
	st := m.state(conversationID)
	if st.lastRead == nil || now.After(*st.lastRead) {
		st.lastRead = &now
	}
	st.unread = 0
	if conversationID == m.attached {
		m.advance(m.self, st.lastRead)
	}

	self := m.self
	m.sched.Go(func(ctx context.Context) func() {
		err := m.store.MarkRead(ctx, conversationID, self, now)
		if err == nil {
			return nil
		}
		return func() {
			m.log.Warn("failed to persist read cursor",
				zap.String("conversation_id", conversationID.String()),
				zap.Error(err))
		}
	})
}

// Attach loads the participant cursors of the conversation being viewed.
func (m *Manager) Attach(conversationID uuid.UUID) {
	m.attached = conversationID
	m.cursors = make(Cursors)
	m.sched.Go(func(ctx context.Context) func() {
		ps, err := m.store.ListParticipants(ctx, conversationID)
		return func() {
			if m.attached != conversationID {
				return
			}
			if err != nil {
				m.log.Warn("failed to load participant cursors",
					zap.String("conversation_id", conversationID.String()),
					zap.Error(err))
				return
			}
			for _, p := range ps {
				m.advance(p.Principal(), p.LastReadAt)
			}
		}
	})
}

func (m *Manager) Detach() {
	m.attached = uuid.Nil
	m.cursors = nil
}

// ApplyMoved handles a cursor movement from any session.
func (m *Manager) ApplyMoved(ev *events.CursorMoved) {
	at := ev.LastReadAt
	if ev.Principal == m.self {
		st := m.state(ev.ConversationID)
		if st.lastRead == nil || at.After(*st.lastRead) {
			st.lastRead = &at
			// read up to now from another session
			st.unread = 0
		}
	}
	if ev.ConversationID == m.attached {
		m.advance(ev.Principal, &at)
	}
}

func (m *Manager) advance(who principal.Ref, at *time.Time) {
	if m.cursors == nil {
		return
	}
	cur, ok := m.cursors[who]
	if !ok || cur == nil || (at != nil && at.After(*cur)) {
		m.cursors[who] = copyTime(at)
	}
}

// ReadersOf returns who has read msg in the attached conversation.
func (m *Manager) ReadersOf(msg message.Message) []principal.Ref {
	if msg.ConversationID != m.attached {
		return nil
	}
	return ReadersOf(msg, m.cursors)
}

// ReadersOf returns every participant whose cursor is at or past the
// message, excluding its sender and participants who never read. Sorted by
// kind then id.
func ReadersOf(msg message.Message, cursors Cursors) []principal.Ref {
	sender := msg.Sender()
	var out []principal.Ref
	for who, at := range cursors {
		if who == sender || at == nil {
			continue
		}
		if !at.Before(msg.CreatedAt) {
			out = append(out, who)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

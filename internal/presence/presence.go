// Package presence keeps the live set of principals viewing a conversation.
package presence

import (
	"context"
	"sort"
	"time"

	"chatcore/internal/domain/principal"
	"chatcore/internal/events"
	"chatcore/internal/loop"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport announces this session on a conversation scope. Membership
// changes come back as PresenceSync snapshots.
type Transport interface {
	Join(ctx context.Context, conversationID uuid.UUID, sessionID string, who principal.Ref) error
	Leave(ctx context.Context, conversationID uuid.UUID, sessionID string) error
	Heartbeat(ctx context.Context, conversationID uuid.UUID, sessionID string, who principal.Ref) error
}

// Tracker must only be used from the loop.
type Tracker struct {
	sched     loop.Scheduler
	transport Transport
	self      principal.Ref
	sessionID string
	log       *logger.Logger

	heartbeatEvery time.Duration
	lastBeat       time.Time

	scope  uuid.UUID
	online map[principal.Ref]time.Time
}

func NewTracker(sched loop.Scheduler, transport Transport, self principal.Ref, sessionID string, heartbeatEvery time.Duration, log *logger.Logger) *Tracker {
	return &Tracker{
		sched:          sched,
		transport:      transport,
		self:           self,
		sessionID:      sessionID,
		heartbeatEvery: heartbeatEvery,
		log:            log,
	}
}

// Attach announces this session on the conversation scope, leaving the
// previous one first.
func (t *Tracker) Attach(conversationID uuid.UUID) {
	if t.scope != uuid.Nil {
		t.Detach()
	}
	t.scope = conversationID
	t.online = make(map[principal.Ref]time.Time)
	t.lastBeat = t.sched.Now()
	t.announce(conversationID)
}

// Reannounce joins the current scope again after a transport reconnect.
func (t *Tracker) Reannounce() {
	if t.scope == uuid.Nil {
		return
	}
	t.lastBeat = t.sched.Now()
	t.announce(t.scope)
}

func (t *Tracker) announce(conversationID uuid.UUID) {
	who, sessionID := t.self, t.sessionID
	t.sched.Go(func(ctx context.Context) func() {
		err := t.transport.Join(ctx, conversationID, sessionID, who)
		if err == nil {
			return nil
		}
		return func() {
			t.log.Warn("failed to announce presence", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		}
	})
}

// Detach removes this session from its scope and clears the view.
func (t *Tracker) Detach() {
	old := t.scope
	t.scope = uuid.Nil
	t.online = nil
	if old == uuid.Nil {
		return
	}
	sessionID := t.sessionID
	t.sched.Go(func(ctx context.Context) func() {
		err := t.transport.Leave(ctx, old, sessionID)
		if err == nil {
			return nil
		}
		return func() {
			t.log.Warn("failed to leave presence", zap.String("conversation_id", old.String()), zap.Error(err))
		}
	})
}

// Apply replaces the view wholesale with the snapshot.
func (t *Tracker) Apply(ev *events.PresenceSync) {
	if ev.ConversationID != t.scope || t.scope == uuid.Nil {
		return
	}
	online := make(map[principal.Ref]time.Time, len(ev.Entries))
	for _, e := range ev.Entries {
		if seen, ok := online[e.Principal]; !ok || e.LastSeen.After(seen) {
			online[e.Principal] = e.LastSeen
		}
	}
	t.online = online
}

// Tick sends the transport heartbeat when due.
func (t *Tracker) Tick(now time.Time) {
	if t.scope == uuid.Nil || now.Sub(t.lastBeat) < t.heartbeatEvery {
		return
	}
	t.lastBeat = now
	scope, sessionID, who := t.scope, t.sessionID, t.self
	t.sched.Go(func(ctx context.Context) func() {
		err := t.transport.Heartbeat(ctx, scope, sessionID, who)
		if err == nil {
			return nil
		}
		return func() {
			t.log.Debug("presence heartbeat failed", zap.Error(err))
		}
	})
}

func (t *Tracker) Scope() uuid.UUID {
	return t.scope
}

// Online returns the principals present, sorted.
func (t *Tracker) Online() []principal.Ref {
	out := make([]principal.Ref, 0, len(t.online))
	for who := range t.online {
		out = append(out, who)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func (t *Tracker) IsOnline(who principal.Ref) bool {
	_, ok := t.online[who]
	return ok
}

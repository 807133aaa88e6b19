// Package session wires the per-connection components together on one event
// loop: history, conversation list, read cursors, presence and typing.
package session

import (
	"context"
	"time"

	"chatcore/internal/conversations"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/principal"
	"chatcore/internal/events"
	"chatcore/internal/loop"
	"chatcore/internal/messages"
	"chatcore/internal/metrics"
	"chatcore/internal/presence"
	"chatcore/internal/readcursor"
	realtime "chatcore/internal/redis"
	"chatcore/internal/typing"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SearchLimit = 50
	MediaLimit  = 100
)

// MessageStore is the durable message log plus its read-only queries.
type MessageStore interface {
	messages.Store
	Search(ctx context.Context, conversationID uuid.UUID, query string, limit int) ([]message.Message, error)
	ListMedia(ctx context.Context, conversationID uuid.UUID, kind message.MediaKind, limit int) ([]message.Message, error)
	RecentText(ctx context.Context, conversationID uuid.UUID, limit int) ([]message.Message, error)
}

// Subscriber delivers realtime events per channel. Callbacks run on the
// transport goroutine.
type Subscriber interface {
	Subscribe(channel string, onEvent func(events.Event), onReconnect func()) (realtime.Subscription, error)
}

type Assistant interface {
	Translate(ctx context.Context, conversationID uuid.UUID, text, lang string) string
	Summarize(ctx context.Context, conversationID uuid.UUID, transcript string) string
}

type Deps struct {
	Messages      MessageStore
	Conversations conversations.Repository
	Cursors       readcursor.Store
	Directory     messages.Directory
	Presence      presence.Transport
	Typing        typing.Broadcaster
	Subscriber    Subscriber
	Assistant     Assistant
}

type Config struct {
	HeartbeatEvery    time.Duration
	TypingStopAfter   time.Duration
	TypingExpireAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatEvery:    10 * time.Second,
		TypingStopAfter:   typing.DefaultStopAfter,
		TypingExpireAfter: typing.DefaultExpireAfter,
	}
}

// Reply receives the outcome of an asynchronous command on the loop.
type Reply func(value interface{}, err error)

// Session must only be used from its loop. Commands and transport callbacks
// are posted onto it.
type Session struct {
	sched loop.Scheduler
	deps  Deps
	self  principal.Principal
	id    string
	log   *logger.Logger

	sync     *messages.Synchronizer
	list     *conversations.Store
	cursors  *readcursor.Manager
	presence *presence.Tracker
	typing   *typing.Bus

	active  uuid.UUID
	global  realtime.Subscription
	scoped  []realtime.Subscription
	started bool
	closed  bool
}

func New(sched loop.Scheduler, deps Deps, self principal.Principal, sessionID string, cfg Config, log *logger.Logger) *Session {
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = DefaultConfig().HeartbeatEvery
	}
	log = log.With(zap.String(string(logger.SessionIdKey), sessionID), zap.String(string(logger.PrincipalIdKey), self.Ref.String()))
	s := &Session{
		sched: sched,
		deps:  deps,
		self:  self,
		id:    sessionID,
		log:   log,
	}
	s.cursors = readcursor.NewManager(sched, deps.Cursors, self.Ref, log)
	s.list = conversations.NewStore(sched, deps.Conversations, s.cursors, self.Ref, log)
	s.presence = presence.NewTracker(sched, deps.Presence, self.Ref, sessionID, cfg.HeartbeatEvery, log)
	s.typing = typing.NewBus(sched, deps.Typing, self, cfg.TypingStopAfter, cfg.TypingExpireAfter, log)
	s.sync = messages.NewSynchronizer(sched, deps.Messages, deps.Directory, self, messages.Hooks{
		Loaded:         s.onLoaded,
		RemoteInserted: s.onRemoteInserted,
		Applied:        s.list.ApplyMessage,
	}, log)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Self() principal.Principal { return s.self }

// Start subscribes to list invalidations and loads the conversation list.
// The list subscription is the one that reports reconnects.
func (s *Session) Start() error {
	if s.started {
		return nil
	}
	sub, err := s.deps.Subscriber.Subscribe(events.ChannelConversations, s.deliver, s.reconnected)
	if err != nil {
		return err
	}
	s.global = sub
	s.started = true
	metrics.ActiveSessions.Inc()
	s.list.Refresh()
	return nil
}

// Close leaves the active conversation and drops every subscription.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.leave()
	if s.global != nil {
		s.global.Close()
		s.global = nil
	}
	if s.started {
		metrics.ActiveSessions.Dec()
	}
}

// Tick runs the periodic work: expiring typing entries and presence
// heartbeats.
func (s *Session) Tick(now time.Time) {
	s.typing.Sweep(now)
	s.presence.Tick(now)
}

func (s *Session) Active() uuid.UUID { return s.active }

// Select switches the active conversation. Everything scoped to the previous
// one is torn down before the new scope is attached.
func (s *Session) Select(conversationID uuid.UUID) error {
	if s.closed {
		return chat_errors.ErrTransportClosed
	}
	if conversationID == s.active {
		return nil
	}
	s.leave()
	if conversationID == uuid.Nil {
		return nil
	}

	for _, ch := range []string{
		events.ConversationChannel(conversationID),
		events.PresenceChannel(conversationID),
		events.TypingChannel(conversationID),
	} {
		sub, err := s.deps.Subscriber.Subscribe(ch, s.deliver, nil)
		if err != nil {
			s.leave()
			return err
		}
		s.scoped = append(s.scoped, sub)
	}

	s.active = conversationID
	s.cursors.Attach(conversationID)
	s.presence.Attach(conversationID)
	s.typing.Attach(conversationID)
	s.sync.Load(conversationID)
	return nil
}

func (s *Session) leave() {
	for _, sub := range s.scoped {
		sub.Close()
	}
	s.scoped = nil
	if s.active == uuid.Nil {
		return
	}
	s.typing.Detach()
	s.presence.Detach()
	s.cursors.Detach()
	s.sync.Close()
	s.active = uuid.Nil
}

// deliver runs on the transport goroutine and hands the event to the loop.
func (s *Session) deliver(ev events.Event) {
	s.sched.Post(func() { s.route(ev) })
}

func (s *Session) reconnected() {
	s.sched.Post(func() {
		if s.closed {
			return
		}
		metrics.Reconnects.Inc()
		s.log.Info("realtime transport reconnected, reloading")
		s.list.Refresh()
		s.presence.Reannounce()
		if s.active != uuid.Nil {
			s.cursors.Attach(s.active)
			s.sync.Reload()
		}
	})
}

func (s *Session) route(ev events.Event) {
	if s.closed {
		return
	}
	metrics.RemoteEvents.WithLabelValues(string(ev.Type())).Inc()
	switch e := ev.(type) {
	case *events.MessageInserted:
		s.sync.ApplyRemoteInsert(e.Message)
	case *events.MessageUpdated:
		s.sync.ApplyRemoteUpdate(e.Message)
	case *events.CursorMoved:
		s.cursors.ApplyMoved(e)
	case *events.ConversationChanged:
		s.list.Refresh()
	case *events.PresenceSync:
		s.presence.Apply(e)
	case *events.TypingBroadcast:
		s.typing.Receive(e)
	default:
		s.log.Debug("ignoring event", zap.String("type", string(ev.Type())))
	}
}

func (s *Session) onLoaded(conversationID uuid.UUID) {
	if conversationID == s.active {
		s.cursors.MarkRead(conversationID)
	}
}

// onRemoteInserted counts the message and, since the conversation is on
// screen, immediately reads it.
func (s *Session) onRemoteInserted(m message.Message) {
	s.cursors.Observe(m)
	if m.ConversationID == s.active {
		s.cursors.MarkRead(m.ConversationID)
	}
}

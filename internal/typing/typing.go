// Package typing broadcasts and collects short lived typing signals.
package typing

import (
	"context"
	"sort"
	"strings"
	"time"

	"chatcore/internal/domain/principal"
	"chatcore/internal/events"
	"chatcore/internal/loop"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultStopAfter   = 3 * time.Second
	DefaultExpireAfter = 4 * time.Second
	// renewEvery bounds how often a continuous typist re-broadcasts.
	renewEvery = time.Second
)

// Broadcaster sends a typing event on the conversation's ephemeral channel.
type Broadcaster interface {
	PublishEvent(ctx context.Context, ev events.Event) error
}

// Entry is another principal currently typing.
type Entry struct {
	Principal   principal.Ref `json:"principal"`
	DisplayName string        `json:"display_name"`
	At          time.Time     `json:"at"`
}

// Bus must only be used from the loop.
type Bus struct {
	sched loop.Scheduler
	out   Broadcaster
	self  principal.Principal
	log   *logger.Logger

	stopAfter   time.Duration
	expireAfter time.Duration

	scope     uuid.UUID
	entries   map[principal.Ref]Entry
	typing    bool
	stopTimer loop.Timer
	renew     *rate.Limiter
}

func NewBus(sched loop.Scheduler, out Broadcaster, self principal.Principal, stopAfter, expireAfter time.Duration, log *logger.Logger) *Bus {
	if stopAfter <= 0 {
		stopAfter = DefaultStopAfter
	}
	if expireAfter <= 0 {
		expireAfter = DefaultExpireAfter
	}
	return &Bus{
		sched:       sched,
		out:         out,
		self:        self,
		log:         log,
		stopAfter:   stopAfter,
		expireAfter: expireAfter,
		renew:       rate.NewLimiter(rate.Every(renewEvery), 1),
	}
}

func (b *Bus) Attach(conversationID uuid.UUID) {
	if b.scope != uuid.Nil {
		b.Detach()
	}
	b.scope = conversationID
	b.entries = make(map[principal.Ref]Entry)
}

// Detach stops any pending signal of ours and forgets received entries.
func (b *Bus) Detach() {
	if b.stopTimer != nil {
		b.stopTimer.Stop()
		b.stopTimer = nil
	}
	if b.typing {
		b.typing = false
		b.broadcast(b.scope, false)
	}
	b.scope = uuid.Nil
	b.entries = nil
}

// SignalTyping announces a keystroke and re-arms the automatic stop.
func (b *Bus) SignalTyping(conversationID uuid.UUID) {
	if conversationID != b.scope || b.scope == uuid.Nil {
		return
	}
	renew := b.renew.AllowN(b.sched.Now(), 1)
	if !b.typing || renew {
		b.typing = true
		b.broadcast(conversationID, true)
	}

	if b.stopTimer != nil {
		b.stopTimer.Stop()
	}
	b.stopTimer = b.sched.AfterFunc(b.stopAfter, func() {
		b.stopTimer = nil
		if !b.typing || b.scope != conversationID {
			return
		}
		b.typing = false
		b.broadcast(conversationID, false)
	})
}

// StopTyping broadcasts the stop right away, e.g. once a message is sent.
func (b *Bus) StopTyping() {
	if b.stopTimer != nil {
		b.stopTimer.Stop()
		b.stopTimer = nil
	}
	if b.typing {
		b.typing = false
		b.broadcast(b.scope, false)
	}
}

func (b *Bus) broadcast(conversationID uuid.UUID, typing bool) {
	ev := &events.TypingBroadcast{
		ConversationID: conversationID,
		Principal:      b.self.Ref,
		DisplayName:    b.self.DisplayName,
		Typing:         typing,
		At:             b.sched.Now(),
	}
	b.sched.Go(func(ctx context.Context) func() {
		err := b.out.PublishEvent(ctx, ev)
		if err == nil {
			return nil
		}
		return func() {
			b.log.Debug("typing broadcast failed", zap.Error(err))
		}
	})
}

// Receive applies a broadcast from the attached scope. Our own signals are
// dropped.
func (b *Bus) Receive(ev *events.TypingBroadcast) {
	if ev.ConversationID != b.scope || b.scope == uuid.Nil || ev.Principal == b.self.Ref {
		return
	}
	if !ev.Typing {
		delete(b.entries, ev.Principal)
		return
	}
	name := ev.DisplayName
	if name == "" {
		name = principal.DefaultName(ev.Principal.Kind)
	}
	b.entries[ev.Principal] = Entry{Principal: ev.Principal, DisplayName: name, At: b.sched.Now()}
}

// Sweep evicts entries not renewed within the expiry window.
func (b *Bus) Sweep(now time.Time) {
	for who, e := range b.entries {
		if now.Sub(e.At) > b.expireAfter {
			delete(b.entries, who)
		}
	}
}

// Entries returns the live entries, oldest signal first.
func (b *Bus) Entries() []Entry {
	now := b.sched.Now()
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if now.Sub(e.At) > b.expireAfter {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Principal.String() < out[j].Principal.String()
	})
	return out
}

// Indicator renders the entries: "" when nobody types, "<name> is typing"
// for one, "<a>, <b> are typing" for more.
func Indicator(entries []Entry) string {
	switch len(entries) {
	case 0:
		return ""
	case 1:
		return entries[0].DisplayName + " is typing"
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.DisplayName
	}
	return strings.Join(names, ", ") + " are typing"
}

package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatcore/internal/events"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscription is a registered channel handler.
type Subscription interface {
	Close()
}

type handler struct {
	onEvent     func(events.Event)
	onReconnect func()
}

// Hub holds the single pattern subscription of the process and fans decoded
// events out to the handlers registered per channel.
type Hub struct {
	client *goredis.Client
	log    *logger.Logger

	mu       sync.RWMutex
	handlers map[string]map[uint64]*handler
	nextID   uint64

	closed bool
}

func NewHub(client *goredis.Client, log *logger.Logger) *Hub {
	return &Hub{
		client:   client,
		log:      log,
		handlers: make(map[string]map[uint64]*handler),
	}
}

// Run receives until ctx is cancelled. go-redis reconnects and resubscribes
// on its own; the first subscribe confirmation after a receive error is
// reported to every handler as a reconnect.
func (h *Hub) Run(ctx context.Context) error {
	ps := h.client.PSubscribe(ctx, events.ChannelPattern)
	defer ps.Close()

	lost := false
	backoff := 100 * time.Millisecond
	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, goredis.ErrClosed) {
				return chat_errors.ErrTransportClosed
			}
			if !lost {
				h.log.Warn("realtime subscription lost", zap.Error(err))
			}
			lost = true
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = 100 * time.Millisecond

		switch m := msg.(type) {
		case *goredis.Subscription:
			if lost {
				lost = false
				h.log.Info("realtime subscription restored", zap.String("pattern", m.Channel))
				h.notifyReconnect()
			}
		case *goredis.Message:
			h.dispatch(m.Channel, []byte(m.Payload))
		}
	}
}

// Subscribe registers callbacks for one channel.
func (h *Hub) Subscribe(channel string, onEvent func(events.Event), onReconnect func()) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, chat_errors.ErrTransportClosed
	}
	h.nextID++
	id := h.nextID
	if h.handlers[channel] == nil {
		h.handlers[channel] = make(map[uint64]*handler)
	}
	h.handlers[channel][id] = &handler{onEvent: onEvent, onReconnect: onReconnect}
	return &subscription{hub: h, channel: channel, id: id}, nil
}

// Close drops every handler; later Subscribe calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.handlers = make(map[string]map[uint64]*handler)
}

func (h *Hub) dispatch(channel string, payload []byte) {
	h.mu.RLock()
	hs := make([]*handler, 0, len(h.handlers[channel]))
	for _, hd := range h.handlers[channel] {
		hs = append(hs, hd)
	}
	h.mu.RUnlock()
	if len(hs) == 0 {
		return
	}

	ev, err := events.Decode(payload)
	if err != nil {
		h.log.Warn("dropping undecodable event", zap.String("channel", channel), zap.Error(err))
		return
	}
	for _, hd := range hs {
		if hd.onEvent != nil {
			hd.onEvent(ev)
		}
	}
}

func (h *Hub) notifyReconnect() {
	h.mu.RLock()
	var hs []*handler
	for _, byID := range h.handlers {
		for _, hd := range byID {
			hs = append(hs, hd)
		}
	}
	h.mu.RUnlock()
	for _, hd := range hs {
		if hd.onReconnect != nil {
			hd.onReconnect()
		}
	}
}

type subscription struct {
	hub     *Hub
	channel string
	id      uint64
	once    sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if byID, ok := s.hub.handlers[s.channel]; ok {
			delete(byID, s.id)
			if len(byID) == 0 {
				delete(s.hub.handlers, s.channel)
			}
		}
	})
}

package gateway

import (
	"context"
	"sync"
	"time"

	"chatcore/internal/domain/principal"

	"go.uber.org/zap"
)

const maxConnectionsPerPrincipal = 10

// ConnectionLimiter bounds new connections per principal in a sliding
// one minute window.
type ConnectionLimiter struct {
	perMinute int
	seen      map[principal.Ref][]time.Time
	mu        sync.Mutex
}

func NewConnectionLimiter(perMinute int) *ConnectionLimiter {
	return &ConnectionLimiter{
		perMinute: perMinute,
		seen:      make(map[principal.Ref][]time.Time),
	}
}

func (l *ConnectionLimiter) Allow(who principal.Ref, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := now.Add(-time.Minute)
	valid := l.seen[who][:0]
	for _, t := range l.seen[who] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= l.perMinute {
		l.seen[who] = valid
		return false
	}
	l.seen[who] = append(valid, now)
	return true
}

func (l *ConnectionLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-10 * time.Minute)
	for who, times := range l.seen {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.seen, who)
		}
	}
}

// Hub tracks live connections per principal.
type Hub struct {
	clients    map[principal.Ref]map[string]*Client
	register   chan *Client
	unregister chan *Client
	limiter    *ConnectionLimiter
	log        *Logger
	mu         sync.RWMutex
}

func NewHub(limiter *ConnectionLimiter, log *Logger) *Hub {
	return &Hub{
		clients:    make(map[principal.Ref]map[string]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		limiter:    limiter,
		log:        log,
	}
}

// Run serves registrations until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	cleanup := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case now := <-cleanup.C:
			h.limiter.cleanup(now)
		case <-ctx.Done():
			h.closeAll()
			return nil
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if !h.limiter.Allow(client.who.Ref, time.Now()) {
		h.log.Warn("connection rate limit exceeded", client.who.Ref, client.clientID)
		client.conn.Close()
		return
	}

	h.mu.Lock()
	byID := h.clients[client.who.Ref]
	if byID == nil {
		byID = make(map[string]*Client)
		h.clients[client.who.Ref] = byID
	}
	var evicted *Client
	if len(byID) >= maxConnectionsPerPrincipal {
		for _, c := range byID {
			if evicted == nil || c.connectedAt.Before(evicted.connectedAt) {
				evicted = c
			}
		}
		delete(byID, evicted.clientID)
	}
	byID[client.clientID] = client
	h.mu.Unlock()

	if evicted != nil {
		h.log.Warn("max connections reached, evicting oldest", evicted.who.Ref, evicted.clientID)
		evicted.close()
		evicted.conn.Close()
	}
	h.log.Info("client connected", client.who.Ref, client.clientID)
	client.start()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	if byID, ok := h.clients[client.who.Ref]; ok {
		if _, ok := byID[client.clientID]; ok {
			delete(byID, client.clientID)
			if len(byID) == 0 {
				delete(h.clients, client.who.Ref)
			}
		}
	}
	h.mu.Unlock()

	client.close()
	h.log.Info("client disconnected", client.who.Ref, client.clientID,
		zap.Duration("connected_for", time.Since(client.connectedAt)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	var all []*Client
	for _, byID := range h.clients {
		for _, c := range byID {
			all = append(all, c)
		}
	}
	h.clients = make(map[principal.Ref]map[string]*Client)
	h.mu.Unlock()

	for _, c := range all {
		c.close()
		c.conn.Close()
	}
}

// Count is the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, byID := range h.clients {
		n += len(byID)
	}
	return n
}

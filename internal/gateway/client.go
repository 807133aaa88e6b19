package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"chatcore/internal/domain/principal"
	"chatcore/internal/loop"
	realtime "chatcore/internal/redis"
	chat_errors "chatcore/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
	// closeGrace lets the session's leave writes finish before its loop
	// context is cancelled.
	closeGrace = 2 * time.Second
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// RateLimits are per connection, per minute.
type RateLimits struct {
	MaxTypingEvents int
	MaxReadReceipts int
	MaxCommands     int
	MaxPings        int
}

var DefaultRateLimits = RateLimits{
	MaxTypingEvents: 60,
	MaxReadReceipts: 120,
	MaxCommands:     240,
	MaxPings:        60,
}

type commandLimiter struct {
	typing   *rate.Limiter
	read     *rate.Limiter
	commands *rate.Limiter
	ping     *rate.Limiter
}

func perMinute(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(n)/60), n)
}

func newCommandLimiter(l RateLimits) *commandLimiter {
	return &commandLimiter{
		typing:   perMinute(l.MaxTypingEvents),
		read:     perMinute(l.MaxReadReceipts),
		commands: perMinute(l.MaxCommands),
		ping:     perMinute(l.MaxPings),
	}
}

func (c *commandLimiter) Allow(cmd string) bool {
	switch cmd {
	case CmdTyping:
		return c.typing.Allow()
	case CmdMarkRead:
		return c.read.Allow()
	case CmdPing:
		return c.ping.Allow()
	}
	return c.commands.Allow()
}

// MessageLimiter bounds durable message writes per principal across every
// connection.
type MessageLimiter interface {
	AllowMessage(ctx context.Context, principalKey string) (*realtime.RateLimitResult, error)
}

// Client is one websocket connection and the session behind it.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	who      principal.Principal
	clientID string
	loop     *loop.Loop
	sess     Session
	messages MessageLimiter
	commands *commandLimiter
	log      *Logger

	mu           sync.Mutex
	closed       bool
	stopLoop     context.CancelFunc
	lastView     []byte
	connectedAt  time.Time
	lastActivity atomic.Int64
}

func newClient(hub *Hub, conn *websocket.Conn, who principal.Principal, clientID string, lp *loop.Loop, sess Session, limiter MessageLimiter, log *Logger) *Client {
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		who:         who,
		clientID:    clientID,
		loop:        lp,
		sess:        sess,
		messages:    limiter,
		commands:    newCommandLimiter(DefaultRateLimits),
		log:         log,
		connectedAt: time.Now(),
	}
	c.lastActivity.Store(c.connectedAt.UnixNano())
	return c
}

// start runs the loop and both pumps. The session starts on its loop.
func (c *Client) start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopLoop = cancel
	c.loop.OnIdle(c.pushView)
	c.loop.OnTick(c.sess.Tick)
	go c.loop.Run(ctx)

	c.loop.Post(func() {
		if err := c.sess.Start(); err != nil {
			c.log.Error("session start failed", c.who.Ref, c.clientID, err)
			c.conn.Close()
		}
	})
	go c.writePump()
	go c.readPump()
}

// close stops output, tears the session down on its loop and stops the loop
// shortly after. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.loop.Post(c.sess.Close)
	if c.stopLoop != nil {
		time.AfterFunc(closeGrace, c.stopLoop)
	}
}

func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.log.Warn("send buffer full, dropping connection", c.who.Ref, c.clientID)
		c.conn.Close()
	}
}

func (c *Client) write(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		c.log.Error("failed to encode frame", c.who.Ref, c.clientID, err, zap.String("frame", f.Type))
		return
	}
	c.enqueue(payload)
}

// pushView runs on the loop whenever its queue drains, so a burst of updates
// yields one view. Unchanged views are not resent.
func (c *Client) pushView() {
	payload, err := json.Marshal(viewFrame(c.sess.View()))
	if err != nil {
		c.log.Error("failed to encode view", c.who.Ref, c.clientID, err)
		return
	}
	if bytes.Equal(payload, c.lastView) {
		return
	}
	c.lastView = payload
	c.enqueue(payload)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket unexpected close", c.who.Ref, c.clientID, err)
			}
			break
		}

		raw = bytes.TrimSpace(bytes.Replace(raw, newline, space, -1))
		c.lastActivity.Store(time.Now().UnixNano())
		c.handleMessage(raw)
	}
}

// handleMessage runs on the read goroutine: decoding and rate checks block
// here, never on the loop.
func (c *Client) handleMessage(raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.write(resultFrame("", nil, chat_errors.ErrInvalidInput))
		return
	}

	if !c.commands.Allow(cmd.Type) {
		c.log.Warn("rate limit exceeded", c.who.Ref, c.clientID, zap.String("command", cmd.Type))
		c.write(resultFrame(cmd.ID, nil, chat_errors.ErrRateLimited))
		return
	}

	if cmd.Type == CmdPing {
		c.write(Frame{Type: FramePong, ID: cmd.ID})
		return
	}

	if (cmd.Type == CmdSend || cmd.Type == CmdForward) && c.messages != nil {
		res, err := c.messages.AllowMessage(context.Background(), c.who.Ref.String())
		if err != nil {
			c.log.Warn("message rate check failed", c.who.Ref, c.clientID, zap.Error(err))
		} else if !res.Allowed {
			c.write(resultFrame(cmd.ID, nil, chat_errors.ErrRateLimited))
			return
		}
	}

	c.loop.Post(func() {
		dispatch(c.sess, cmd, c.write)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			idle := time.Since(time.Unix(0, c.lastActivity.Load()))
			if idle > pongWait*2 {
				c.log.Info("client idle timeout", c.who.Ref, c.clientID)
				return
			}
		}
	}
}

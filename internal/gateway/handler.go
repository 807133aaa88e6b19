package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"chatcore/internal/domain/principal"
	"chatcore/internal/loop"
	"chatcore/internal/transport/httpdto"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Authenticator interface {
	Parse(token string) (principal.Ref, error)
}

type Resolver interface {
	Resolve(ctx context.Context, refs []principal.Ref) (map[principal.Ref]principal.Principal, error)
}

// Handler upgrades /v1/ws requests into sessions.
type Handler struct {
	hub        *Hub
	auth       Authenticator
	dir        Resolver
	newSession SessionFactory
	limiter    MessageLimiter
	tick       time.Duration
	base       *logger.Logger
	log        *Logger
}

func NewHandler(hub *Hub, auth Authenticator, dir Resolver, newSession SessionFactory, limiter MessageLimiter, tick time.Duration, l *logger.Logger) *Handler {
	return &Handler{
		hub:        hub,
		auth:       auth,
		dir:        dir,
		newSession: newSession,
		limiter:    limiter,
		tick:       tick,
		base:       l,
		log:        NewLogger(l),
	}
}

func (h *Handler) Handle(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing token", "UNAUTHORIZED"))
		return
	}

	ref, err := h.auth.Parse(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid token", "UNAUTHORIZED"))
		return
	}

	who := principal.Principal{Ref: ref, DisplayName: principal.DefaultName(ref.Kind)}
	if h.dir != nil {
		names, err := h.dir.Resolve(c.Request.Context(), []principal.Ref{ref})
		if err != nil {
			h.log.Warn("failed to resolve principal", ref, "", zap.Error(err))
		} else if p, ok := names[ref]; ok {
			who = p
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", ref, "", err)
		return
	}

	clientID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.SessionIdKey, clientID)
	lp := loop.New(h.base.Ctx(ctx), h.tick)
	sess := h.newSession(lp, who, clientID)
	if sess == nil {
		h.log.Error("session unavailable", ref, clientID, chat_errors.ErrServiceUnavailable)
		conn.Close()
		return
	}

	h.hub.register <- newClient(h.hub, conn, who, clientID, lp, sess, h.limiter, h.log)
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}

package gateway

import (
	"chatcore/internal/domain/principal"
	"chatcore/pkg/logger"

	"go.uber.org/zap"
)

// Logger writes gateway events with the connection they belong to.
type Logger struct {
	logger *logger.Logger
}

func NewLogger(l *logger.Logger) *Logger {
	return &Logger{logger: l.With(zap.String("component", "gateway"))}
}

func (l *Logger) fields(event string, who principal.Ref, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String(string(logger.PrincipalIdKey), who.String()),
		zap.String("client_id", clientID),
	}, extra...)
}

func (l *Logger) Info(event string, who principal.Ref, clientID string, fields ...zap.Field) {
	l.logger.Info("gateway_event", l.fields(event, who, clientID, fields)...)
}

func (l *Logger) Warn(event string, who principal.Ref, clientID string, fields ...zap.Field) {
	l.logger.Warn("gateway_warning", l.fields(event, who, clientID, fields)...)
}

func (l *Logger) Error(event string, who principal.Ref, clientID string, err error, fields ...zap.Field) {
	l.logger.Error("gateway_error", l.fields(event, who, clientID, append(fields, zap.Error(err)))...)
}

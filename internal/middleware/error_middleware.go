package middleware

import (
	"net/http"

	"chatcore/internal/transport/httpdto"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorCodeHeader repeats the envelope code so clients that only see
// headers (websocket upgrade failures) can still branch on it.
const ErrorCodeHeader = "X-Error-Code"

const codeInternal = "INTERNAL_ERROR"

// ErrorHandler renders the last error a handler attached. Sentinel errors
// keep their message; anything unmapped is reported as a bare internal error
// so driver and query text never reaches the client.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		code, status := httpdto.Code(err), httpdto.Status(err)

		if l != nil {
			log := l.Ctx(c.Request.Context()).With(
				zap.String("code", code),
				zap.Int("status", status),
				zap.String("route", c.FullPath()),
			)
			if status >= http.StatusInternalServerError {
				log.Error("handler failed", zap.Error(err), zap.Int("attached", len(c.Errors)))
			} else {
				log.Warn("handler rejected request", zap.Error(err))
			}
		}

		if c.Writer.Written() {
			return
		}
		message := err.Error()
		if code == codeInternal {
			message = "internal error"
		}
		c.Header(ErrorCodeHeader, code)
		c.AbortWithStatusJSON(status, httpdto.NewErrorResponse(message, code))
	}
}

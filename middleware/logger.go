package middleware

import (
	"time"

	"momo/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader 响应头中回传的请求 ID，与审计记录的 request_id 一致
const RequestIDHeader = "X-Request-ID"

// RequestLogger 为每个请求生成请求 ID，并把请求范围的 logger 放入 context
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := uuid.NewString()
		c.Header(RequestIDHeader, id)

		reqLog := logger.WithFields(log, map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"client": c.ClientIP(),
		})
		ctx := logger.WithContext(c.Request.Context(), reqLog)
		c.Request = c.Request.WithContext(logger.WithRequestID(ctx, id))

		c.Next()

		status := c.Writer.Status()
		ev := reqLog.Info()
		switch {
		case status >= 500:
			ev = reqLog.Error()
		case status >= 400:
			ev = reqLog.Warn()
		}
		ev.Str("request_id", id).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP 请求")
	}
}

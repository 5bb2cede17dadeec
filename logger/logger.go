package logger

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

type requestIDKey struct{}

// New 创建日志，format 为 json 时输出 JSON 行，其余输出控制台格式
// level 无法识别时使用 info
func New(w io.Writer, format, level string) zerolog.Logger {
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Nop 丢弃所有输出
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// WithContext 保存请求范围的 logger
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext 取请求范围的 logger，没有时返回 fallback
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return fallback
	}
	if log, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return log
	}
	return fallback
}

// WithRequestID 保存请求 ID，审计记录与日志共用
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID 取请求 ID，没有时返回空串
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithFields 附加结构化字段，值为空串或 nil 的字段跳过
func WithFields(log zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	c := log.With()
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
			c = c.Str(k, val)
		default:
			c = c.Interface(k, v)
		}
	}
	return c.Logger()
}

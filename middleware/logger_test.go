package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"momo/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := &bytes.Buffer{}

	var seenID string
	router := gin.New()
	router.Use(RequestLogger(logger.New(buf, "json", "debug")))
	router.GET("/items/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		seenID = logger.RequestID(ctx)
		log := logger.FromContext(ctx, logger.Nop())
		log.Info().Msg("handler")
		c.Status(404)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/items/7", nil))

	require.NotEmpty(t, seenID)
	assert.Equal(t, seenID, w.Header().Get(RequestIDHeader))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var handlerLine, accessLine map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &handlerLine))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &accessLine))

	assert.Equal(t, "handler", handlerLine["message"])
	assert.Equal(t, "/items/:id", handlerLine["path"])
	assert.Equal(t, "GET", handlerLine["method"])

	assert.Equal(t, "warn", accessLine["level"])
	assert.Equal(t, seenID, accessLine["request_id"])
	assert.Equal(t, float64(404), accessLine["status"])
}

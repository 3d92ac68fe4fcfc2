package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestMaskingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil))).With(slog.String("bot_token", "123:abc"))

	log.Info("connect",
		slog.String("password", "hunter2"),
		slog.String("user", "alice"),
		slog.Group("db", slog.String("dsn", "postgres://secret"), slog.Int("pool", 5)),
	)

	line := decodeLine(t, &buf)
	assert.Equal(t, maskedValue, line["bot_token"])
	assert.Equal(t, maskedValue, line["password"])
	assert.Equal(t, "alice", line["user"])

	db, ok := line["db"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, maskedValue, db["dsn"])
	assert.EqualValues(t, 5, db["pool"])
}

func TestFanoutHandler(t *testing.T) {
	var all, errorsOnly bytes.Buffer
	h := NewFanoutHandler(
		slog.NewJSONHandler(&all, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorsOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h)

	log.Info("info")
	assert.NotEmpty(t, all.String())
	assert.Empty(t, errorsOnly.String())

	log.Error("boom")
	assert.Contains(t, errorsOnly.String(), "boom")
}

func TestParseLevelAndSetLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))

	SetLevel("error")
	t.Cleanup(func() { SetLevel("info") })
	assert.Equal(t, slog.LevelError, level.Level())
}

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "")
	assert.NotEmpty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))

	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}

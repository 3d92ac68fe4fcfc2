package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChecker_Check(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewChecker(testLogger())
	checker.AddCheck("redis", NewRedisChecker(client))
	checker.AddCheck("ignored", nil)

	report := checker.Check(context.Background())
	assert.True(t, report.Healthy())
	assert.Equal(t, map[string]string{"redis": StatusOK}, report.Components)

	checker.AddCheck("db", NewDBChecker(nil))
	mr.Close()

	report = checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "database is not configured", report.Components["db"])
	assert.NotEqual(t, StatusOK, report.Components["redis"])
}

func TestChecker_Handler(t *testing.T) {
	checker := NewChecker(testLogger())
	checker.AddCheck("ok", CheckFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("broken", CheckFunc(func(context.Context) error { return errors.New("down") }))

	rec = httptest.NewRecorder()
	checker.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "down", report.Components["broken"])
}

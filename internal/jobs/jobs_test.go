package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStateCleanupTask(t *testing.T) {
	task, err := NewStateCleanupTask(72 * time.Hour)
	require.NoError(t, err)

	assert.Equal(t, TaskTypeStateCleanup, task.Type())

	var payload StateCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, 72*time.Hour, payload.MaxAge)
}

func TestManager_EnqueueStateCleanupDeduplicates(t *testing.T) {
	mr := miniredis.RunT(t)

	m := NewManager(asynq.RedisClientOpt{Addr: mr.Addr()}, testLogger())
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	require.NoError(t, m.EnqueueStateCleanup(ctx, time.Hour))
	require.NoError(t, m.EnqueueStateCleanup(ctx, time.Hour))
}

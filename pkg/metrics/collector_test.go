package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-dialogs/internal/dialog"
	"github.com/Proton-105/himera-dialogs/internal/poll"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Gauge != nil {
		return out.GetGauge().GetValue()
	}
	return out.GetCounter().GetValue()
}

func TestStateCollector_Collect(t *testing.T) {
	ctx := context.Background()
	dialogs := state.NewMemoryStore[dialog.State]()
	polls := state.NewMemoryStore[poll.State]()

	for _, name := range []string{"menu", "menu", "signup"} {
		_, err := dialogs.Create(ctx, &dialog.State{ChatID: 1, Name: name})
		require.NoError(t, err)
	}
	_, err := polls.Create(ctx, &poll.State{ChatID: 1, Name: "vote"})
	require.NoError(t, err)

	require.NoError(t, NewStateCollector(dialogs, polls, time.Second, nil).Collect(ctx))

	assert.Equal(t, 2.0, value(t, activeDialogs.WithLabelValues("menu")))
	assert.Equal(t, 1.0, value(t, activeDialogs.WithLabelValues("signup")))
	assert.Equal(t, 1.0, value(t, activePolls))
}

func TestRecorders(t *testing.T) {
	before := value(t, commandMatchesTotal.WithLabelValues("none"))
	RecordCommandMatch("")
	assert.Equal(t, before+1, value(t, commandMatchesTotal.WithLabelValues("none")))

	before = value(t, updatesTotal.WithLabelValues("callback", "ok"))
	RecordUpdate("callback", "ok", time.Millisecond)
	assert.Equal(t, before+1, value(t, updatesTotal.WithLabelValues("callback", "ok")))

	before = value(t, errorsTotal.WithLabelValues("unknown", "unknown"))
	RecordError("", "")
	assert.Equal(t, before+1, value(t, errorsTotal.WithLabelValues("unknown", "unknown")))
}

package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/himera-dialogs/internal/command"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
	apperrors "github.com/Proton-105/himera-dialogs/internal/errors"
	"github.com/Proton-105/himera-dialogs/internal/poll"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

const defaultCollectInterval = 10 * time.Second

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of handled updates labeled by kind and status",
		},
		[]string{"kind", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	throttledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_throttled_callbacks_total",
			Help: "Total number of repeated callbacks dropped by the throttle",
		},
	)
	dialogTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_transitions_total",
			Help: "Total number of executed dialog phases",
		},
		[]string{"dialog", "phase"},
	)
	commandMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_matches_total",
			Help: "Total number of parsed commands labeled by controller",
		},
		[]string{"controller"},
	)
	pollActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_actions_total",
			Help: "Total number of executed poll actions",
		},
		[]string{"poll", "action"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	activeDialogs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dialogs_active",
			Help: "Number of stored conversations per dialog",
		},
		[]string{"dialog"},
	)
	activePolls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polls_active",
			Help: "Number of running polls",
		},
	)
)

func init() {
	dialog.RegisterTransitionRecorder(RecordTransition)
	command.RegisterMatchRecorder(RecordCommandMatch)
	poll.RegisterActionRecorder(RecordPollAction)
	apperrors.RegisterErrorRecorder(RecordError)
}

// RecordUpdate counts a handled update and its duration.
func RecordUpdate(kind, status string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	updatesTotal.WithLabelValues(kind, status).Inc()
	updateDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordThrottled() {
	throttledTotal.Inc()
}

// RecordTransition tracks executed dialog phases.
func RecordTransition(dialogName, phase string) {
	if phase == "" {
		phase = "unknown"
	}

	dialogTransitionsTotal.WithLabelValues(dialogName, phase).Inc()
}

// RecordCommandMatch tracks parser results; an empty controller means no schema matched.
func RecordCommandMatch(controller string) {
	if controller == "" {
		controller = "none"
	}

	commandMatchesTotal.WithLabelValues(controller).Inc()
}

func RecordPollAction(pollName, action string) {
	pollActionsTotal.WithLabelValues(pollName, action).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}

// StateCollector periodically counts stored conversations and polls.
type StateCollector struct {
	dialogs  state.Store[dialog.State]
	polls    state.Store[poll.State]
	interval time.Duration
	log      *slog.Logger
}

// NewStateCollector builds a collector over the given stores. Either store may be nil.
func NewStateCollector(dialogs state.Store[dialog.State], polls state.Store[poll.State], interval time.Duration, log *slog.Logger) *StateCollector {
	if interval <= 0 {
		interval = defaultCollectInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &StateCollector{dialogs: dialogs, polls: polls, interval: interval, log: log}
}

// Run refreshes the gauges every interval until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Collect(ctx); err != nil {
			c.log.Warn("failed to collect state metrics", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect refreshes the gauges once.
func (c *StateCollector) Collect(ctx context.Context) error {
	if c.dialogs != nil {
		states, err := c.dialogs.FindMany(ctx, nil)
		if err != nil {
			return err
		}

		counts := make(map[string]int, len(states))
		for _, st := range states {
			counts[st.Name]++
		}

		activeDialogs.Reset()
		for name, count := range counts {
			activeDialogs.WithLabelValues(name).Set(float64(count))
		}
	}

	if c.polls != nil {
		polls, err := c.polls.FindMany(ctx, nil)
		if err != nil {
			return err
		}
		activePolls.Set(float64(len(polls)))
	}

	return nil
}

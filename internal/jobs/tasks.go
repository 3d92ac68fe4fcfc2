package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeStateCleanup = "state:cleanup"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues weights the queues served by the worker.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// StateCleanupPayload asks for removal of conversations idle longer than MaxAge.
type StateCleanupPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

func NewStateCleanupTask(maxAge time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(StateCleanupPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}

	// A single cleanup per window is enough even with several replicas.
	return asynq.NewTask(TaskTypeStateCleanup, payload,
		asynq.Queue(QueueLow),
		asynq.Unique(time.Minute),
		asynq.MaxRetry(2),
	), nil
}

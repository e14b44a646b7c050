package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tracker counts task completions across all pool workers and emits one
// progress log line per decile. The counter has no effect on results;
// the lock keeps the decile modulo from missing its boundary under
// concurrent increments.
type Tracker struct {
	mu        sync.Mutex
	completed int
	total     int
	started   time.Time
	log       *zap.Logger
}

func NewTracker(total int, log *zap.Logger) *Tracker {
	return &Tracker{
		total:   total,
		started: time.Now(),
		log:     log,
	}
}

// Observe records one completed task, success or failure. The increment
// and the maybe-log decision are a single synchronized operation.
func (t *Tracker) Observe() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed++
	step := t.total / 10
	if step < 1 {
		step = 1
	}
	if t.completed%step == 0 {
		t.log.Info("analysis progress",
			zap.Int("completed", t.completed),
			zap.Int("total", t.total),
			zap.Float64("percent", float64(t.completed)/float64(t.total)*100),
			zap.Duration("elapsed", time.Since(t.started)),
		)
	}
}

// Completed returns the current completion count.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

package engine

import (
	"context"
	"sync"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"go.uber.org/zap"
)

// Pool runs frame inference on a fixed number of parallel workers. Each
// worker obtains its analyzer handle from the factory exactly once before
// consuming any task; the handle is read-only for the worker's lifetime.
//
// Completions arrive unordered: arrival order reflects worker speed, not
// frame index. Callers restore frame order after draining; the pool never
// assumes it.
type Pool struct {
	workers int
	factory port.AnalyzerFactory
	log     *zap.Logger
	tally   failureTally
}

func NewPool(workers int, factory port.AnalyzerFactory, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, factory: factory, log: log}
}

// Workers returns the configured pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Run feeds the full task set to the pool and returns the unordered
// completion stream. The channel carries exactly one Completion per task
// and is closed once all workers are done. Every completion, success or
// failure, drives one tracker update.
func (p *Pool) Run(ctx context.Context, tasks []entity.FrameTask, tracker *Tracker) <-chan entity.Completion {
	taskCh := make(chan entity.FrameTask, p.workers)
	completions := make(chan entity.Completion, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, taskCh, completions, tracker)
		}(i)
	}

	go func() {
		for _, task := range tasks {
			taskCh <- task
		}
		close(taskCh)
	}()

	go func() {
		wg.Wait()
		close(completions)
	}()

	return completions
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan entity.FrameTask, completions chan<- entity.Completion, tracker *Tracker) {
	log := p.log.With(zap.Int("worker_id", id))

	analyzer, err := p.factory.New(ctx)
	if err != nil {
		// The worker stays in the pool and converts its share of tasks
		// to failures, so the completion stream still carries one entry
		// per task.
		log.Error("analyzer init failed", zap.Error(err))
		analyzer = nil
	}

	for task := range tasks {
		var c entity.Completion
		if analyzer == nil {
			p.tally.inc(entity.FailureInferenceError, task.Backend)
			c = entity.Completion{Failure: &entity.InferenceFailure{
				FrameNumber: task.FrameNumber,
				Reason:      entity.FailureInferenceError,
				Backend:     task.Backend,
			}}
		} else {
			c = inferFrame(ctx, analyzer, task, &p.tally, log)
		}
		completions <- c
		tracker.Observe()
	}
}

// Failures snapshots the per-class failure tally accumulated so far.
func (p *Pool) Failures() map[entity.FailureKey]int {
	return p.tally.snapshot()
}

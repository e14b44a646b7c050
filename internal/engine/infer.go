package engine

import (
	"context"
	"sync"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"go.uber.org/zap"
)

// failureTally counts inference failures per (reason, backend) class.
// Used only for the end-of-run summary, never for control flow.
type failureTally struct {
	mu     sync.Mutex
	counts map[entity.FailureKey]int
}

func (ft *failureTally) inc(reason entity.FailureReason, backend string) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.counts == nil {
		ft.counts = make(map[entity.FailureKey]int)
	}
	ft.counts[entity.FailureKey{Reason: reason, Backend: backend}]++
}

func (ft *failureTally) snapshot() map[entity.FailureKey]int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	out := make(map[entity.FailureKey]int, len(ft.counts))
	for k, v := range ft.counts {
		out[k] = v
	}
	return out
}

// inferFrame analyses a single frame with the worker's analyzer handle.
// Every outcome is a Completion value; no error crosses the pool
// boundary.
func inferFrame(ctx context.Context, analyzer port.EmotionAnalyzer, task entity.FrameTask, tally *failureTally, log *zap.Logger) entity.Completion {
	if task.Frame.Empty() {
		// Cheap reject: no model call for absent or zero-sized frames.
		tally.inc(entity.FailureInvalidFrame, task.Backend)
		log.Warn("invalid frame", zap.Int("frame", task.FrameNumber))
		return entity.Completion{Failure: &entity.InferenceFailure{
			FrameNumber: task.FrameNumber,
			Reason:      entity.FailureInvalidFrame,
			Backend:     task.Backend,
		}}
	}

	analysis, err := analyzer.Analyze(ctx, task.Frame)
	if err != nil {
		tally.inc(entity.FailureInferenceError, task.Backend)
		log.Error("frame analysis failed",
			zap.Int("frame", task.FrameNumber),
			zap.String("backend", task.Backend),
			zap.Error(err),
		)
		return entity.Completion{Failure: &entity.InferenceFailure{
			FrameNumber: task.FrameNumber,
			Reason:      entity.FailureInferenceError,
			Backend:     task.Backend,
		}}
	}

	return entity.Completion{Result: &entity.InferenceResult{
		FrameNumber:    task.FrameNumber,
		Scores:         analysis.Scores,
		FaceConfidence: analysis.FaceConfidence,
		Region:         analysis.Region,
		Candidate:      dominantCandidate(analysis.Scores),
	}}
}

// dominantCandidate is the argmax of the raw score mapping, iterating
// entity.EmotionNames so ties resolve to the earliest category. Returns
// "" for an empty mapping.
func dominantCandidate(scores map[string]float64) string {
	best := ""
	bestScore := 0.0
	for _, name := range entity.EmotionNames {
		score, ok := scores[name]
		if !ok {
			continue
		}
		if best == "" || score > bestScore {
			best = name
			bestScore = score
		}
	}
	return best
}

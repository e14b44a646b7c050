// Package engine implements the frame analysis core: stride sampling,
// the fixed worker pool with its unordered completion stream, progress
// tracking and per-video result aggregation.
package engine

import (
	"fmt"
	"time"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"go.uber.org/zap"
)

// readLogInterval is how many decoded frames pass between read-progress
// log lines. Observability only, not part of the sampling contract.
const readLogInterval = 1000

// SampleResult is everything the sampler learned about one video.
type SampleResult struct {
	Tasks          []entity.FrameTask
	DecodedFrames  int
	ReportedFrames int
	FrameRate      float64
	Duration       time.Duration
}

// SampleFrames advances through every decoded frame of the stream and
// retains those whose zero-based index is divisible by frameStep. The
// stream is consumed fully; it is not restartable.
func SampleFrames(stream port.FrameStream, frameStep int, backend string, log *zap.Logger) (*SampleResult, error) {
	if frameStep < 1 {
		return nil, fmt.Errorf("frame step must be >= 1, got %d", frameStep)
	}

	start := time.Now()
	res := &SampleResult{
		ReportedFrames: stream.TotalFrames(),
		FrameRate:      stream.FrameRate(),
	}

	frameNumber := 0
	for {
		frame, ok := stream.Next()
		if !ok {
			break
		}
		if frameNumber%frameStep == 0 {
			res.Tasks = append(res.Tasks, entity.FrameTask{
				Frame:       frame,
				FrameNumber: frameNumber,
				Backend:     backend,
			})
		}
		frameNumber++
		if frameNumber%readLogInterval == 0 {
			log.Info("reading frames",
				zap.Int("frame", frameNumber),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
	}
	res.DecodedFrames = frameNumber
	res.Duration = time.Since(start)

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("decode frames: %w", err)
	}
	return res, nil
}

package port

import (
	"context"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
)

// VideoOpener opens a video source for decoding. An open failure aborts
// only that video; the batch continues with the next source.
type VideoOpener interface {
	Open(ctx context.Context, path string) (FrameStream, error)
}

// FrameStream is a finite, non-restartable sequence of decoded frames.
//
// Next returns the next frame and true, or a zero frame and false once
// the stream is exhausted. Err reports a decode error after Next returned
// false; an exhausted healthy stream reports nil.
type FrameStream interface {
	Next() (entity.Frame, bool)
	Err() error
	// TotalFrames is the container-reported frame count, which may differ
	// from the number of frames actually decoded.
	TotalFrames() int
	FrameRate() float64
	Close() error
}

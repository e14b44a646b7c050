// Package video decodes video files with OpenCV and exposes them as
// frame streams. Frames are re-encoded to JPEG buffers at the boundary so
// no gocv.Mat leaves this package.
package video

import (
	"context"
	"fmt"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"gocv.io/x/gocv"
)

type Opener struct{}

func NewOpener() *Opener {
	return &Opener{}
}

// Open starts decoding the given file. Failure to open is distinguishable
// from "opened but empty": the former returns an error here, the latter a
// stream whose first Next returns false with a nil Err.
func (o *Opener) Open(_ context.Context, path string) (port.FrameStream, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("open video %s: capture not opened", path)
	}

	return &stream{
		cap:         cap,
		totalFrames: int(cap.Get(gocv.VideoCaptureFrameCount)),
		frameRate:   cap.Get(gocv.VideoCaptureFPS),
		mat:         gocv.NewMat(),
	}, nil
}

type stream struct {
	cap         *gocv.VideoCapture
	totalFrames int
	frameRate   float64
	mat         gocv.Mat
	err         error
	done        bool
}

func (s *stream) Next() (entity.Frame, bool) {
	if s.done {
		return entity.Frame{}, false
	}
	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		s.done = true
		return entity.Frame{}, false
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.mat)
	if err != nil {
		s.done = true
		s.err = fmt.Errorf("encode frame: %w", err)
		return entity.Frame{}, false
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return entity.Frame{
		Data:   data,
		Width:  s.mat.Cols(),
		Height: s.mat.Rows(),
	}, true
}

func (s *stream) Err() error {
	return s.err
}

func (s *stream) TotalFrames() int {
	return s.totalFrames
}

func (s *stream) FrameRate() float64 {
	return s.frameRate
}

func (s *stream) Close() error {
	s.mat.Close()
	return s.cap.Close()
}

package entity

// Frame is one decoded video frame, re-encoded as a JPEG buffer so the
// pipeline never depends on the decoder's native pixel representation.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Empty reports whether the frame has no usable pixels.
func (f Frame) Empty() bool {
	return len(f.Data) == 0 || f.Width <= 0 || f.Height <= 0
}

// FrameTask pairs a sampled frame with its position in the source video.
// It is created by the sampler, consumed exactly once by a pool worker and
// discarded after inference.
type FrameTask struct {
	Frame       Frame
	FrameNumber int
	Backend     string
}

// Region is the detected face bounding box. A zero Region means the model
// reported no detection area.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// IsZero reports whether no detection region was returned.
func (r Region) IsZero() bool {
	return r == Region{}
}

// FailureReason classifies why a frame produced no inference result.
type FailureReason string

const (
	FailureInvalidFrame   FailureReason = "invalid_frame"
	FailureInferenceError FailureReason = "inference_error"
)

// InferenceResult is the outcome of analysing one frame. Exactly one of
// InferenceResult or InferenceFailure exists per sampled frame. Immutable
// once produced.
type InferenceResult struct {
	FrameNumber    int
	Scores         map[string]float64
	FaceConfidence float64
	Region         Region
	// Candidate is the argmax of Scores before thresholding. The label
	// reported downstream is recomputed by the aggregator; this field is
	// kept only as an intermediate for debugging.
	Candidate string
}

// InferenceFailure records a frame that yielded no result.
type InferenceFailure struct {
	FrameNumber int
	Reason      FailureReason
	Backend     string
}

// Completion is one entry on the pool's unordered completion stream:
// either Result or Failure is set, never both.
type Completion struct {
	Result  *InferenceResult
	Failure *InferenceFailure
}

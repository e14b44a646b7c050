package port

import (
	"context"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
)

// FaceAnalysis is the raw model output for one frame: the per-category
// emotion scores, the face-detection confidence and the detection region.
// A confidence of 0 with empty scores is a valid "no face" outcome, not
// an error.
type FaceAnalysis struct {
	Scores         map[string]float64
	FaceConfidence float64
	Region         entity.Region
}

// EmotionAnalyzer is the inference model boundary. Implementations must
// not fail when no face is found; detection enforcement is disabled.
type EmotionAnalyzer interface {
	Analyze(ctx context.Context, frame entity.Frame) (*FaceAnalysis, error)
	Backend() string
}

// AnalyzerFactory builds one analyzer handle per pool worker. The handle
// is constructed once at pool start, amortizing model load across the
// worker's lifetime, and is treated as read-only thereafter.
type AnalyzerFactory interface {
	New(ctx context.Context) (EmotionAnalyzer, error)
}

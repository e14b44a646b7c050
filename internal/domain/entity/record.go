package entity

import "sort"

// EmotionNames is the fixed category set, in the order used everywhere:
// column order in exports and iteration order for the dominant-emotion
// argmax. Ties resolve to the earliest name in this slice.
var EmotionNames = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

// Sentinel labels standing in for "no qualifying result".
const (
	LabelNoFace     = "no face detected"
	LabelNoDominant = "no dominant emotion detected"
)

// VideoRecord is one row of a per-video table: one successfully inferred
// frame after confidence gating. Emotions holds the gated per-category
// scores keyed by EmotionNames; RawScores keeps what the model reported.
type VideoRecord struct {
	FrameNumber     int
	DominantEmotion string
	Emotions        map[string]float64
	FaceConfidence  float64
	Region          Region
	RawScores       map[string]float64
	Source          string
}

// VideoTable is all records for one source, sorted ascending by frame
// number before export.
type VideoTable struct {
	Source  string
	Records []VideoRecord
}

// SortByFrame restores frame order lost on the unordered completion
// stream.
func (t *VideoTable) SortByFrame() {
	sort.Slice(t.Records, func(i, j int) bool {
		return t.Records[i].FrameNumber < t.Records[j].FrameNumber
	})
}

// CombinedTable is the batch-level union of per-video tables, sorted by
// (source, frame number).
type CombinedTable struct {
	Records []VideoRecord
}

// Append concatenates a per-video table. No record is dropped or
// duplicated; callers sort once after the last append.
func (c *CombinedTable) Append(t VideoTable) {
	c.Records = append(c.Records, t.Records...)
}

// Sort orders the combined table by source first, then frame number.
func (c *CombinedTable) Sort() {
	sort.Slice(c.Records, func(i, j int) bool {
		if c.Records[i].Source != c.Records[j].Source {
			return c.Records[i].Source < c.Records[j].Source
		}
		return c.Records[i].FrameNumber < c.Records[j].FrameNumber
	})
}

package engine

import (
	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
)

// Aggregator turns the unordered inference results for one video into an
// ordered, thresholded table. Two independent gates apply per row:
// face-detection confidence decides whether a face exists at all, and the
// emotion-score threshold decides whether any single emotion is
// confidently dominant.
type Aggregator struct {
	FaceConfidenceThreshold float64
	EmotionScoreThreshold   float64
}

// BuildTable applies the gating policy to every result, derives the final
// dominant-emotion label and sorts rows ascending by frame number.
// Failures contribute no row; a sampled-but-failed frame is a documented
// gap in the time series, not an error.
func (a Aggregator) BuildTable(source string, results []entity.InferenceResult) entity.VideoTable {
	table := entity.VideoTable{
		Source:  source,
		Records: make([]entity.VideoRecord, 0, len(results)),
	}
	for _, r := range results {
		table.Records = append(table.Records, a.buildRecord(source, r))
	}
	table.SortByFrame()
	return table
}

func (a Aggregator) buildRecord(source string, r entity.InferenceResult) entity.VideoRecord {
	faceFound := r.FaceConfidence >= a.FaceConfidenceThreshold

	emotions := make(map[string]float64, len(entity.EmotionNames))
	for _, name := range entity.EmotionNames {
		if faceFound {
			emotions[name] = r.Scores[name]
		} else {
			emotions[name] = 0
		}
	}

	label := entity.LabelNoFace
	if faceFound {
		label = a.dominantLabel(r.Scores)
	}

	return entity.VideoRecord{
		FrameNumber:     r.FrameNumber,
		DominantEmotion: label,
		Emotions:        emotions,
		FaceConfidence:  r.FaceConfidence,
		Region:          r.Region,
		RawScores:       r.Scores,
		Source:          source,
	}
}

// dominantLabel recomputes the label from the raw score mapping: the
// argmax category if its score clears the emotion-score threshold, else
// the no-dominant sentinel. The candidate computed at inference time is
// deliberately ignored here.
func (a Aggregator) dominantLabel(scores map[string]float64) string {
	best := dominantCandidate(scores)
	if best == "" || scores[best] < a.EmotionScoreThreshold {
		return entity.LabelNoDominant
	}
	return best
}

// LabelCounts histograms the dominant-emotion labels of a table,
// including both sentinel values.
func LabelCounts(table entity.VideoTable) map[string]int {
	counts := make(map[string]int)
	for _, rec := range table.Records {
		counts[rec.DominantEmotion]++
	}
	return counts
}

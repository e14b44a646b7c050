package engine

import (
	"testing"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAggregator() Aggregator {
	return Aggregator{FaceConfidenceThreshold: 0.8, EmotionScoreThreshold: 50}
}

func result(frame int, confidence float64, scores map[string]float64) entity.InferenceResult {
	return entity.InferenceResult{
		FrameNumber:    frame,
		Scores:         scores,
		FaceConfidence: confidence,
	}
}

func TestBuildTableRestoresFrameOrder(t *testing.T) {
	agg := testAggregator()
	// Completion order reflects worker speed, not frame index.
	table := agg.BuildTable("clip", []entity.InferenceResult{
		result(8, 0.9, map[string]float64{"happy": 80}),
		result(0, 0.9, map[string]float64{"happy": 80}),
		result(4, 0.9, map[string]float64{"happy": 80}),
	})

	require.Len(t, table.Records, 3)
	for i := 1; i < len(table.Records); i++ {
		assert.Greater(t, table.Records[i].FrameNumber, table.Records[i-1].FrameNumber)
	}
	assert.Equal(t, "clip", table.Source)
}

func TestBuildTableFaceConfidenceGate(t *testing.T) {
	agg := testAggregator()
	table := agg.BuildTable("clip", []entity.InferenceResult{
		result(0, 0.3, map[string]float64{"happy": 99, "angry": 40}),
	})

	rec := table.Records[0]
	assert.Equal(t, entity.LabelNoFace, rec.DominantEmotion)
	for _, name := range entity.EmotionNames {
		assert.Zero(t, rec.Emotions[name], name)
	}
	// The raw mapping is preserved untouched alongside the gated columns.
	assert.Equal(t, 99.0, rec.RawScores["happy"])
}

func TestBuildTableDominanceGate(t *testing.T) {
	agg := testAggregator()
	table := agg.BuildTable("clip", []entity.InferenceResult{
		result(0, 0.9, map[string]float64{"happy": 80, "sad": 10}),
		result(1, 0.9, map[string]float64{"happy": 30, "sad": 30}),
		result(2, 0.9, map[string]float64{}),
	})

	assert.Equal(t, "happy", table.Records[0].DominantEmotion)
	assert.Equal(t, entity.LabelNoDominant, table.Records[1].DominantEmotion)
	assert.Equal(t, entity.LabelNoDominant, table.Records[2].DominantEmotion)
	// Columns above the face gate keep their raw values either way.
	assert.Equal(t, 30.0, table.Records[1].Emotions["happy"])
}

func TestBuildTableTieBreakIsCategoryOrder(t *testing.T) {
	agg := testAggregator()
	table := agg.BuildTable("clip", []entity.InferenceResult{
		result(0, 0.9, map[string]float64{"surprise": 60, "fear": 60}),
	})
	// fear precedes surprise in the fixed category order.
	assert.Equal(t, "fear", table.Records[0].DominantEmotion)
}

func TestBuildTableExactlyAtThresholds(t *testing.T) {
	agg := testAggregator()
	table := agg.BuildTable("clip", []entity.InferenceResult{
		result(0, 0.8, map[string]float64{"neutral": 50}),
	})
	// Both gates are inclusive at the threshold.
	assert.Equal(t, "neutral", table.Records[0].DominantEmotion)
	assert.Equal(t, 50.0, table.Records[0].Emotions["neutral"])
}

// Mirrors the stride=2, 10-frame scenario: 5 sampled frames, 2 confident
// inferences, 3 below the face gate.
func TestBuildTableMixedConfidenceRun(t *testing.T) {
	agg := testAggregator()
	table := agg.BuildTable("clip", []entity.InferenceResult{
		result(0, 0.95, map[string]float64{"happy": 88}),
		result(2, 0.1, map[string]float64{"sad": 70}),
		result(4, 0.2, map[string]float64{"sad": 70}),
		result(6, 0.91, map[string]float64{"angry": 75}),
		result(8, 0.0, nil),
	})

	require.Len(t, table.Records, 5)

	counts := LabelCounts(table)
	assert.Equal(t, 1, counts["happy"])
	assert.Equal(t, 1, counts["angry"])
	assert.Equal(t, 3, counts[entity.LabelNoFace])

	for _, rec := range table.Records {
		if rec.DominantEmotion == entity.LabelNoFace {
			for _, name := range entity.EmotionNames {
				assert.Zero(t, rec.Emotions[name])
			}
		}
	}
}

func TestSentinelFailuresSumsBothLabels(t *testing.T) {
	stats := entity.RunStatistics{LabelCounts: map[string]int{
		"happy":                4,
		entity.LabelNoFace:     2,
		entity.LabelNoDominant: 3,
	}}
	assert.Equal(t, 5, stats.SentinelFailures())
}

// Package export writes analysis tables to CSV and Excel. Both formats
// are rendered from the same row strings so column order and cell content
// never drift between them.
package export

import (
	"encoding/json"
	"strconv"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
)

// videoHeader is the per-video column order. combinedHeader moves source
// to the second column; everything else is shared.
func videoHeader() []string {
	h := []string{"frame_number", "dominant_emotion"}
	h = append(h, entity.EmotionNames...)
	return append(h, "face_confidence", "region", "raw_output", "source")
}

func combinedHeader() []string {
	h := []string{"frame_number", "source", "dominant_emotion"}
	h = append(h, entity.EmotionNames...)
	return append(h, "face_confidence", "region", "raw_output")
}

func videoRow(r entity.VideoRecord) []string {
	row := []string{strconv.Itoa(r.FrameNumber), r.DominantEmotion}
	row = appendCommon(row, r)
	return append(row, r.Source)
}

func combinedRow(r entity.VideoRecord) []string {
	row := []string{strconv.Itoa(r.FrameNumber), r.Source, r.DominantEmotion}
	return appendCommon(row, r)
}

func appendCommon(row []string, r entity.VideoRecord) []string {
	for _, name := range entity.EmotionNames {
		row = append(row, formatScore(r.Emotions[name]))
	}
	row = append(row, formatScore(r.FaceConfidence))
	row = append(row, formatRegion(r.Region))
	return append(row, formatScores(r.RawScores))
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRegion(r entity.Region) string {
	if r.IsZero() {
		return ""
	}
	b, _ := json.Marshal(r)
	return string(b)
}

// formatScores renders the raw mapping as JSON; map keys marshal in
// sorted order, keeping the cell deterministic.
func formatScores(scores map[string]float64) string {
	if len(scores) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(scores)
	return string(b)
}

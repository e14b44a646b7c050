package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() entity.VideoTable {
	return entity.VideoTable{
		Source: "clip",
		Records: []entity.VideoRecord{
			{
				FrameNumber:     0,
				DominantEmotion: "happy",
				Emotions: map[string]float64{
					"angry": 1.5, "disgust": 0, "fear": 0.25,
					"happy": 88.5, "sad": 2, "surprise": 0, "neutral": 7.75,
				},
				FaceConfidence: 0.95,
				Region:         entity.Region{X: 10, Y: 20, W: 64, H: 64},
				RawScores:      map[string]float64{"happy": 88.5, "neutral": 7.75},
				Source:         "clip",
			},
			{
				FrameNumber:     2,
				DominantEmotion: entity.LabelNoFace,
				Emotions:        map[string]float64{},
				FaceConfidence:  0.1,
				Source:          "clip",
			},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func readExcel(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	return rows
}

func TestExportVideoLayout(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir)
	require.NoError(t, err)

	files, err := exporter.ExportVideo(context.Background(), sampleTable())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "CSV", "clip_emotional_analysis.csv"), files.CSVPath)
	assert.Equal(t, filepath.Join(dir, "Excel", "clip_emotional_analysis.xlsx"), files.ExcelPath)

	rows := readCSV(t, files.CSVPath)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"frame_number", "dominant_emotion",
		"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral",
		"face_confidence", "region", "raw_output", "source",
	}, rows[0])

	confident := rows[1]
	assert.Equal(t, "0", confident[0])
	assert.Equal(t, "happy", confident[1])
	assert.Equal(t, "88.5", confident[5])
	assert.Equal(t, "0.95", confident[9])
	assert.Equal(t, `{"x":10,"y":20,"w":64,"h":64}`, confident[10])
	assert.Equal(t, `{"happy":88.5,"neutral":7.75}`, confident[11])
	assert.Equal(t, "clip", confident[12])

	gated := rows[2]
	assert.Equal(t, entity.LabelNoFace, gated[1])
	assert.Equal(t, "0", gated[5])
	assert.Equal(t, "", gated[10], "zero region renders empty")
	assert.Equal(t, "{}", gated[11])
}

func TestExportCombinedMovesSourceColumn(t *testing.T) {
	exporter, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	var combined entity.CombinedTable
	combined.Append(sampleTable())

	files, err := exporter.ExportCombined(context.Background(), combined)
	require.NoError(t, err)
	assert.Contains(t, files.CSVPath, "combined_emotional_analysis.csv")

	rows := readCSV(t, files.CSVPath)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"frame_number", "source", "dominant_emotion",
		"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral",
		"face_confidence", "region", "raw_output",
	}, rows[0])
	assert.Equal(t, "clip", rows[1][1])
	// No trailing source column in the combined layout.
	assert.Len(t, rows[1], len(rows[0]))
}

func TestExportFormatsAgree(t *testing.T) {
	exporter, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	files, err := exporter.ExportVideo(context.Background(), sampleTable())
	require.NoError(t, err)

	csvRows := readCSV(t, files.CSVPath)
	excelRows := readExcel(t, files.ExcelPath)
	require.Len(t, excelRows, len(csvRows))
	for i := range csvRows {
		// GetRows drops trailing empty cells; pad before comparing.
		row := excelRows[i]
		for len(row) < len(csvRows[i]) {
			row = append(row, "")
		}
		assert.Equal(t, csvRows[i], row, "row %d", i)
	}
}

func TestExportExcelHonoursCancellation(t *testing.T) {
	exporter, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = exporter.ExportCombined(ctx, entity.CombinedTable{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExportEmptyTableWritesHeaderOnly(t *testing.T) {
	exporter, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	files, err := exporter.ExportVideo(context.Background(), entity.VideoTable{Source: "empty"})
	require.NoError(t, err)

	rows := readCSV(t, files.CSVPath)
	require.Len(t, rows, 1)
	assert.Equal(t, "frame_number", rows[0][0])
}

package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"github.com/xuri/excelize/v2"
)

const combinedBaseName = "combined_emotional_analysis"

// Exporter writes per-video and combined tables under
// <analysisDir>/CSV and <analysisDir>/Excel.
type Exporter struct {
	csvDir   string
	excelDir string
}

func NewExporter(analysisDir string) (*Exporter, error) {
	e := &Exporter{
		csvDir:   filepath.Join(analysisDir, "CSV"),
		excelDir: filepath.Join(analysisDir, "Excel"),
	}
	for _, dir := range []string{e.csvDir, e.excelDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create export dir: %w", err)
		}
	}
	return e, nil
}

func (e *Exporter) ExportVideo(ctx context.Context, table entity.VideoTable) (*port.ExportedFiles, error) {
	rows := make([][]string, 0, len(table.Records)+1)
	rows = append(rows, videoHeader())
	for _, rec := range table.Records {
		rows = append(rows, videoRow(rec))
	}
	return e.write(ctx, table.Source+"_emotional_analysis", rows)
}

func (e *Exporter) ExportCombined(ctx context.Context, table entity.CombinedTable) (*port.ExportedFiles, error) {
	rows := make([][]string, 0, len(table.Records)+1)
	rows = append(rows, combinedHeader())
	for _, rec := range table.Records {
		rows = append(rows, combinedRow(rec))
	}
	return e.write(ctx, combinedBaseName, rows)
}

func (e *Exporter) write(ctx context.Context, baseName string, rows [][]string) (*port.ExportedFiles, error) {
	files := &port.ExportedFiles{
		CSVPath:   filepath.Join(e.csvDir, baseName+".csv"),
		ExcelPath: filepath.Join(e.excelDir, baseName+".xlsx"),
	}
	if err := writeCSV(files.CSVPath, rows); err != nil {
		return nil, err
	}
	if err := writeExcel(ctx, files.ExcelPath, rows); err != nil {
		return nil, err
	}
	return files, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return w.Error()
}

func writeExcel(ctx context.Context, path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, row := range rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("excel cell: %w", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("excel row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save excel: %w", err)
	}
	return nil
}

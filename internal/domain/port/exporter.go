package port

import (
	"context"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
)

// ExportedFiles are the paths the exporter wrote for one table.
type ExportedFiles struct {
	CSVPath   string
	ExcelPath string
}

// TableExporter writes a table to both the delimited and the spreadsheet
// format from the identical in-memory data, byte-for-byte consistent in
// column order.
type TableExporter interface {
	ExportVideo(ctx context.Context, table entity.VideoTable) (*ExportedFiles, error)
	ExportCombined(ctx context.Context, table entity.CombinedTable) (*ExportedFiles, error)
}

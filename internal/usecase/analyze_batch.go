package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"github.com/emovid/emovid-analysis-service/internal/infra/metrics"
	"go.uber.org/zap"
)

// videoExtensions is the fixed set of recognized video file extensions.
var videoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

// BatchResult is everything one batch run produced. An empty directory
// yields a result with zero videos and no error.
type BatchResult struct {
	Combined      entity.CombinedTable
	CombinedFiles *port.ExportedFiles
	PerVideo      []entity.RunStatistics
	Stats         entity.BatchStatistics
}

// AnalyzeBatchUseCase discovers all videos in a directory and runs the
// per-video pipeline on each sequentially. A video that fails to open or
// yields zero usable results is skipped without aborting the batch.
type AnalyzeBatchUseCase struct {
	video    *AnalyzeVideoUseCase
	exporter port.TableExporter
	logger   *zap.Logger

	// OnVideoDone, when set, runs after each discovered video finishes,
	// successfully or not. Used by the CLI for batch progress.
	OnVideoDone func(path string)
}

func NewAnalyzeBatchUseCase(video *AnalyzeVideoUseCase, exporter port.TableExporter, logger *zap.Logger) *AnalyzeBatchUseCase {
	return &AnalyzeBatchUseCase{video: video, exporter: exporter, logger: logger}
}

// Execute runs the whole batch at the given frame step.
func (uc *AnalyzeBatchUseCase) Execute(ctx context.Context, videoDir string, frameStep int) (*BatchResult, error) {
	start := time.Now()

	videos, err := DiscoverVideos(videoDir)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		uc.logger.Info("no video files found", zap.String("dir", videoDir))
		return &BatchResult{Stats: entity.BatchStatistics{TotalDuration: time.Since(start)}}, nil
	}

	names := make([]string, len(videos))
	for i, v := range videos {
		names[i] = filepath.Base(v)
	}
	uc.logger.Info("found video files", zap.Int("count", len(videos)), zap.Strings("files", names))

	res := &BatchResult{Stats: entity.BatchStatistics{VideosFound: len(videos)}}
	for _, video := range videos {
		uc.logger.Info("processing video", zap.String("path", video))

		analysis, err := uc.video.Execute(ctx, video, frameStep)
		if uc.OnVideoDone != nil {
			uc.OnVideoDone(video)
		}
		if err != nil {
			// Fatal to this video only; the batch continues.
			uc.logger.Warn("skipping video", zap.String("path", video), zap.Error(err))
			metrics.VideosProcessedTotal.WithLabelValues("skipped").Inc()
			res.Stats.VideosSkipped++
			continue
		}

		res.Combined.Append(analysis.Table)
		res.PerVideo = append(res.PerVideo, analysis.Stats)
		res.Stats.VideosAnalysed++
	}

	if len(res.Combined.Records) > 0 {
		res.Combined.Sort()
		files, err := uc.exporter.ExportCombined(ctx, res.Combined)
		if err != nil {
			return nil, err
		}
		res.CombinedFiles = files
		uc.logger.Info("combined analysis saved",
			zap.String("csv", files.CSVPath),
			zap.String("excel", files.ExcelPath),
		)
	} else {
		uc.logger.Info("no analysis data to combine")
	}

	res.Stats.CombinedRows = len(res.Combined.Records)
	res.Stats.TotalDuration = time.Since(start)
	uc.logger.Info("finished processing all videos",
		zap.Int("found", res.Stats.VideosFound),
		zap.Int("analysed", res.Stats.VideosAnalysed),
		zap.Int("skipped", res.Stats.VideosSkipped),
		zap.Int("combined_rows", res.Stats.CombinedRows),
		zap.Duration("total", res.Stats.TotalDuration),
	)
	return res, nil
}

// DiscoverVideos lists the recognized video files in dir, sorted by name.
func DiscoverVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var videos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			videos = append(videos, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(videos)
	return videos, nil
}

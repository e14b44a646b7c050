package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"github.com/emovid/emovid-analysis-service/internal/engine"
	"github.com/emovid/emovid-analysis-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrVideoOpen marks a source that could not be opened. Fatal to that
	// video only; a batch continues with the next source.
	ErrVideoOpen = errors.New("video open failed")
	// ErrNoResults marks a video that yielded zero inference results.
	ErrNoResults = errors.New("no analysis results")
)

// VideoAnalysis is everything one per-video run produced.
type VideoAnalysis struct {
	Table entity.VideoTable
	Stats entity.RunStatistics
	Files *port.ExportedFiles
}

type AnalyzeVideoConfig struct {
	PoolSize                int
	DetectorBackend         string
	FaceConfidenceThreshold float64
	EmotionScoreThreshold   float64
}

// AnalyzeVideoUseCase drives the full per-video pipeline: open, sample,
// dispatch to the pool, drain the unordered completion stream, aggregate
// and export.
type AnalyzeVideoUseCase struct {
	opener   port.VideoOpener
	factory  port.AnalyzerFactory
	exporter port.TableExporter
	logger   *zap.Logger
	cfg      AnalyzeVideoConfig
}

func NewAnalyzeVideoUseCase(
	opener port.VideoOpener,
	factory port.AnalyzerFactory,
	exporter port.TableExporter,
	logger *zap.Logger,
	cfg AnalyzeVideoConfig,
) *AnalyzeVideoUseCase {
	return &AnalyzeVideoUseCase{
		opener:   opener,
		factory:  factory,
		exporter: exporter,
		logger:   logger,
		cfg:      cfg,
	}
}

// Execute analyses one video at the given frame step. The source
// identifier is the file name without extension.
func (uc *AnalyzeVideoUseCase) Execute(ctx context.Context, videoPath string, frameStep int) (*VideoAnalysis, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AnalyzeVideoUseCase.Execute")
	defer span.End()

	source := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	span.SetAttributes(
		attribute.String("video.source", source),
		attribute.Int("video.frame_step", frameStep),
	)
	log := uc.logger.With(zap.String("source", source))

	start := time.Now()
	log.Info("started processing video", zap.String("path", videoPath))

	// Sampling
	ctx2, spanSample := tracer.Start(ctx, "sample_frames")
	sample, err := uc.sample(ctx2, videoPath, frameStep, log)
	spanSample.End()
	if err != nil {
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("sample").Observe(sample.Duration.Seconds())

	log.Info("frames sampled",
		zap.Int("decoded_frames", sample.DecodedFrames),
		zap.Int("frame_step", frameStep),
		zap.Int("tasks", len(sample.Tasks)),
	)

	// Inference
	analysisStart := time.Now()
	_, spanInfer := tracer.Start(ctx, "run_inference")
	results, failed := uc.runPool(ctx, sample.Tasks, log)
	spanInfer.End()
	analysisDuration := time.Since(analysisStart)
	metrics.StageDuration.WithLabelValues("inference").Observe(analysisDuration.Seconds())
	metrics.FramesAnalysedTotal.Add(float64(len(results)))

	if len(results) == 0 {
		log.Error("no analysis results to process")
		return nil, fmt.Errorf("%w: %s", ErrNoResults, source)
	}

	// Aggregation
	aggregator := engine.Aggregator{
		FaceConfidenceThreshold: uc.cfg.FaceConfidenceThreshold,
		EmotionScoreThreshold:   uc.cfg.EmotionScoreThreshold,
	}
	table := aggregator.BuildTable(source, results)

	stats := entity.RunStatistics{
		Source:           source,
		DecodedFrames:    sample.DecodedFrames,
		ReportedFrames:   sample.ReportedFrames,
		FrameRate:        sample.FrameRate,
		SampledFrames:    len(sample.Tasks),
		AnalysedFrames:   len(results),
		FailedFrames:     len(sample.Tasks) - len(results),
		LabelCounts:      engine.LabelCounts(table),
		FailuresByClass:  failed,
		SamplingDuration: sample.Duration,
		AnalysisDuration: analysisDuration,
		TotalDuration:    time.Since(start),
	}

	// Export
	ctx3, spanExport := tracer.Start(ctx, "export_table")
	exportStart := time.Now()
	files, err := uc.exporter.ExportVideo(ctx3, table)
	spanExport.End()
	if err != nil {
		return nil, fmt.Errorf("export video table: %w", err)
	}
	metrics.StageDuration.WithLabelValues("export").Observe(time.Since(exportStart).Seconds())

	uc.logSummary(log, stats)
	metrics.VideosProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())

	return &VideoAnalysis{Table: table, Stats: stats, Files: files}, nil
}

func (uc *AnalyzeVideoUseCase) sample(ctx context.Context, videoPath string, frameStep int, log *zap.Logger) (*engine.SampleResult, error) {
	stream, err := uc.opener.Open(ctx, videoPath)
	if err != nil {
		log.Error("could not open video", zap.String("path", videoPath), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrVideoOpen, err)
	}
	defer stream.Close()

	return engine.SampleFrames(stream, frameStep, uc.cfg.DetectorBackend, log)
}

// runPool dispatches all tasks to a fixed worker pool and drains the
// unordered completion stream. The sort back into frame order happens in
// the aggregator, never here.
func (uc *AnalyzeVideoUseCase) runPool(ctx context.Context, tasks []entity.FrameTask, log *zap.Logger) ([]entity.InferenceResult, map[entity.FailureKey]int) {
	pool := engine.NewPool(uc.cfg.PoolSize, uc.factory, log)
	tracker := engine.NewTracker(len(tasks), log)
	log.Info("dispatching frames", zap.Int("workers", pool.Workers()))

	metrics.ActiveWorkers.Add(float64(pool.Workers()))
	defer metrics.ActiveWorkers.Sub(float64(pool.Workers()))

	results := make([]entity.InferenceResult, 0, len(tasks))
	for completion := range pool.Run(ctx, tasks, tracker) {
		if completion.Result != nil {
			results = append(results, *completion.Result)
		}
	}

	failures := pool.Failures()
	for key, count := range failures {
		metrics.FrameFailuresTotal.WithLabelValues(string(key.Reason)).Add(float64(count))
	}
	return results, failures
}

func (uc *AnalyzeVideoUseCase) logSummary(log *zap.Logger, stats entity.RunStatistics) {
	for label, count := range stats.LabelCounts {
		log.Info("emotion analysis result", zap.String("label", label), zap.Int("frames", count))
	}
	log.Info("video analysis completed",
		zap.Int("decoded_frames", stats.DecodedFrames),
		zap.Int("reported_frames", stats.ReportedFrames),
		zap.Float64("frame_rate", stats.FrameRate),
		zap.Int("sampled_frames", stats.SampledFrames),
		zap.Int("analysed_frames", stats.AnalysedFrames),
		zap.Int("failed_frames", stats.FailedFrames),
		zap.Int("sentinel_failures", stats.SentinelFailures()),
		zap.Duration("sampling", stats.SamplingDuration),
		zap.Duration("analysis", stats.AnalysisDuration),
		zap.Duration("total", stats.TotalDuration),
	)
	for key, count := range stats.FailuresByClass {
		log.Info("frame failures",
			zap.String("reason", string(key.Reason)),
			zap.String("backend", key.Backend),
			zap.Int("count", count),
		)
	}
}

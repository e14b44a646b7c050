package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
	"github.com/emovid/emovid-analysis-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProcessMessageUseCase handles one queued analysis job: download the
// video, run the per-video pipeline, upload the result tables and record
// the job. Infrastructure failures are retried with backoff; a video that
// cannot be opened or yields no results is a permanent failure, never
// retried.
type ProcessMessageUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	analyzer  *AnalyzeVideoUseCase
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	frameStep int
	maxRetry  int
}

type ProcessMessageConfig struct {
	TempDir          string
	DefaultFrameStep int
	MaxRetries       int
}

func NewProcessMessageUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	analyzer *AnalyzeVideoUseCase,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessMessageConfig,
) *ProcessMessageUseCase {
	return &ProcessMessageUseCase{
		repo:      repo,
		storage:   storage,
		analyzer:  analyzer,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		frameStep: cfg.DefaultFrameStep,
		maxRetry:  cfg.MaxRetries,
	}
}

func (uc *ProcessMessageUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessMessageUseCase.Execute")
	defer span.End()

	var msg entity.AnalysisJobMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewAnalysisJob(msg.UserID, msg.VideoKey, uc.effectiveStep(msg), uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	return uc.processJob(ctx, job, msg, rawMsg, log)
}

func (uc *ProcessMessageUseCase) processJob(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.AnalysisJobMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download the source video
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, filepath.Base(msg.VideoKey))
	err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath)
	spanDl.End()
	if err != nil {
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}

	// Analyse
	analysis, err := uc.analyzer.Execute(ctx, videoPath, uc.effectiveStep(msg))
	if err != nil {
		log.Error("video analysis failed", zap.Error(err))
		if errors.Is(err, ErrVideoOpen) || errors.Is(err, ErrNoResults) {
			// The video itself is unusable; retrying cannot change that.
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "analyse_video: "+err.Error())
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "analyse_video: "+err.Error(), log)
	}

	// Upload result tables
	ctx3, spanUp := tracer.Start(ctx, "upload_results")
	csvKey := fmt.Sprintf("%s/analysis_%s.csv", msg.UserID, job.ID.String())
	excelKey := fmt.Sprintf("%s/analysis_%s.xlsx", msg.UserID, job.ID.String())
	err = uc.storage.UploadResult(ctx3, csvKey, analysis.Files.CSVPath)
	if err == nil {
		err = uc.storage.UploadResult(ctx3, excelKey, analysis.Files.ExcelPath)
	}
	spanUp.End()
	if err != nil {
		log.Error("result upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_results: "+err.Error(), log)
	}

	job.MarkCompleted(csvKey, excelKey, analysis.Stats)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("sampled_frames", analysis.Stats.SampledFrames),
		zap.Int("analysed_frames", analysis.Stats.AnalysedFrames),
		zap.Int("failed_frames", analysis.Stats.FailedFrames),
		zap.String("csv_key", csvKey),
	)

	return nil
}

func (uc *ProcessMessageUseCase) effectiveStep(msg entity.AnalysisJobMessage) int {
	if msg.FrameStep >= 1 {
		return msg.FrameStep
	}
	return uc.frameStep
}

func (uc *ProcessMessageUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.AnalysisJobMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessMessageUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.AnalysisJob,
	msg entity.AnalysisJobMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.VideosProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *ProcessMessageUseCase) publishStatus(ctx context.Context, job *entity.AnalysisJob, log *zap.Logger) {
	statusMsg := entity.AnalysisStatusMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		Status:         job.Status,
		VideoKey:       job.VideoKey,
		ResultCSVKey:   job.ResultCSVKey,
		ResultExcelKey: job.ResultExcelKey,
		SampledFrames:  job.SampledFrames,
		AnalysedFrames: job.AnalysedFrames,
		FailedFrames:   job.FailedFrames,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

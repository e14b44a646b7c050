package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// AnalysisJob tracks one queued video analysis through its lifecycle.
type AnalysisJob struct {
	ID             uuid.UUID
	UserID         string
	VideoKey       string
	ResultCSVKey   string
	ResultExcelKey string
	Status         JobStatus
	FrameStep      int
	SampledFrames  int
	AnalysedFrames int
	FailedFrames   int
	VideoDuration  float64
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewAnalysisJob(userID, videoKey string, frameStep, maxAttempts int) *AnalysisJob {
	now := time.Now().UTC()
	return &AnalysisJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FrameStep:   frameStep,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *AnalysisJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *AnalysisJob) MarkCompleted(csvKey, excelKey string, stats RunStatistics) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ResultCSVKey = csvKey
	j.ResultExcelKey = excelKey
	j.SampledFrames = stats.SampledFrames
	j.AnalysedFrames = stats.AnalysedFrames
	j.FailedFrames = stats.FailedFrames
	j.VideoDuration = stats.TotalDuration.Seconds()
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *AnalysisJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *AnalysisJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

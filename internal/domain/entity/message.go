package entity

import "github.com/google/uuid"

// AnalysisJobMessage is the inbound message from the analysis.jobs queue.
type AnalysisJobMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FrameStep int       `json:"frame_step"`
	UserEmail string    `json:"user_email"`
}

// AnalysisStatusMessage is the outbound message published to the
// analysis.status queue.
type AnalysisStatusMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	UserID         string    `json:"user_id"`
	Status         JobStatus `json:"status"`
	VideoKey       string    `json:"video_key"`
	ResultCSVKey   string    `json:"result_csv_key,omitempty"`
	ResultExcelKey string    `json:"result_excel_key,omitempty"`
	SampledFrames  int       `json:"sampled_frames,omitempty"`
	AnalysedFrames int       `json:"analysed_frames,omitempty"`
	FailedFrames   int       `json:"failed_frames,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"max_attempts"`
}

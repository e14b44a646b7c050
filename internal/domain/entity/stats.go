package entity

import "time"

// FailureKey identifies one failure class in the per-run tally.
type FailureKey struct {
	Reason  FailureReason
	Backend string
}

// RunStatistics summarises one per-video run. Derived, read-only.
type RunStatistics struct {
	Source           string
	DecodedFrames    int
	ReportedFrames   int
	FrameRate        float64
	SampledFrames    int
	AnalysedFrames   int
	FailedFrames     int
	LabelCounts      map[string]int
	FailuresByClass  map[FailureKey]int
	SamplingDuration time.Duration
	AnalysisDuration time.Duration
	TotalDuration    time.Duration
}

// SentinelFailures is the combined count of rows carrying either sentinel
// label, reported alongside the per-label histogram.
func (s RunStatistics) SentinelFailures() int {
	return s.LabelCounts[LabelNoFace] + s.LabelCounts[LabelNoDominant]
}

// BatchStatistics summarises a whole batch run.
type BatchStatistics struct {
	VideosFound    int
	VideosAnalysed int
	VideosSkipped  int
	CombinedRows   int
	TotalDuration  time.Duration
}

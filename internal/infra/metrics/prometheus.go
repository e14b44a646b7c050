package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VideosProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emovid_videos_processed_total",
		Help: "Total number of videos processed, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emovid_stage_duration_seconds",
		Help:    "Duration of the per-video pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesAnalysedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emovid_frames_analysed_total",
		Help: "Total number of frames successfully analysed",
	})

	FrameFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emovid_frame_failures_total",
		Help: "Total number of frames that produced no result, by reason",
	}, []string{"reason"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emovid_active_workers",
		Help: "Number of pool workers currently running inference",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emovid_retry_total",
		Help: "Total number of job retries",
	}, []string{"attempt"})
)

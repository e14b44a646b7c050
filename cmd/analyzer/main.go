// Command analyzer runs the emotion analysis pipeline over a local
// directory of videos and writes the per-video and combined tables.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/emovid/emovid-analysis-service/internal/infra/config"
	"github.com/emovid/emovid-analysis-service/internal/infra/deepface"
	"github.com/emovid/emovid-analysis-service/internal/infra/export"
	"github.com/emovid/emovid-analysis-service/internal/infra/video"
	"github.com/emovid/emovid-analysis-service/internal/usecase"
	"github.com/emovid/emovid-analysis-service/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	frameStep int
	videoDir  string
	outputDir string
)

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Video emotion analysis tool",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyse every video in the input directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.Context())
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&frameStep, "frame-step", 0, "Analyse every n-th frame (default from FRAME_STEP)")
	analyzeCmd.Flags().StringVarP(&videoDir, "input", "i", "", "Directory with videos to analyse (default from VIDEO_DIR)")
	analyzeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for analysis sheets (default from ANALYSIS_DIR)")
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAnalyze(ctx context.Context) error {
	// .env is optional; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if frameStep >= 1 {
		cfg.FrameStep = frameStep
	}
	if videoDir != "" {
		cfg.VideoDir = videoDir
	}
	if outputDir != "" {
		cfg.AnalysisDir = outputDir
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	exporter, err := export.NewExporter(cfg.AnalysisDir)
	if err != nil {
		return fmt.Errorf("create exporter: %w", err)
	}

	analyzeVideo := usecase.NewAnalyzeVideoUseCase(
		video.NewOpener(),
		deepface.NewFactory(cfg.DeepFaceURL, cfg.DetectorBackend),
		exporter,
		log,
		usecase.AnalyzeVideoConfig{
			PoolSize:                cfg.EffectivePoolSize(),
			DetectorBackend:         cfg.DetectorBackend,
			FaceConfidenceThreshold: cfg.FaceConfidenceThreshold,
			EmotionScoreThreshold:   cfg.EmotionScoreThreshold,
		},
	)
	batch := usecase.NewAnalyzeBatchUseCase(analyzeVideo, exporter, log)

	videos, err := usecase.DiscoverVideos(cfg.VideoDir)
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}

	var bar *progressbar.ProgressBar
	if len(videos) > 0 {
		bar = progressbar.NewOptions(len(videos),
			progressbar.OptionSetDescription("Analysing videos"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
		batch.OnVideoDone = func(string) { bar.Add(1) }
	}

	res, err := batch.Execute(ctx, cfg.VideoDir, cfg.FrameStep)
	if err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if res.CombinedFiles != nil {
		fmt.Printf("Combined analysis saved to:\n  CSV: %s\n  Excel: %s\n",
			res.CombinedFiles.CSVPath, res.CombinedFiles.ExcelPath)
	} else {
		fmt.Println("No analysis data to combine.")
	}
	fmt.Printf("Processed %d of %d video(s) with %d worker(s) in %s.\n",
		res.Stats.VideosAnalysed, res.Stats.VideosFound,
		cfg.EffectivePoolSize(), res.Stats.TotalDuration.Round(time.Second))

	log.Info("batch finished",
		zap.Int("analysed", res.Stats.VideosAnalysed),
		zap.Int("skipped", res.Stats.VideosSkipped),
	)
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rmreedy/docpipe/internal/config"
	"github.com/rmreedy/docpipe/internal/gcp"
	"github.com/rmreedy/docpipe/internal/ocr"
	"github.com/rmreedy/docpipe/internal/pdf"
	"github.com/rmreedy/docpipe/internal/pipeline"
	"github.com/rmreedy/docpipe/internal/services"
)

var stageOrder = []string{"collect", "rename", "enhance", "extract", "correct", "publish", "verify"}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := rootCommand().Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		dir        string
		stageNames []string
		noConfirm  bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "docpipe",
		Short: "Staged legal-PDF processing pipeline",
		Long: `docpipe walks a project directory of scanned legal PDFs through a fixed
sequence of stages: collect, rename, enhance, extract, correct, publish,
and verify. Each stage consumes the previous stage's directory and
produces its own, so runs are resumable per file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("directory not found: %s", dir)
			}
			cfg := config.Load(dir)
			cfg.GateStages = !noConfirm
			if timeout > 0 {
				cfg.PromptTimeout = timeout
			}

			stages, err := buildStages(cfg, stageNames)
			if err != nil {
				return err
			}

			prompter := pipeline.Prompter(pipeline.AlwaysYes{})
			if cfg.GateStages {
				prompter = pipeline.NewConsolePrompter(os.Stdin, os.Stdout, cfg.PromptTimeout)
			}

			color.Cyan("docpipe: %d stage(s) on %s", len(stages), dir)
			o := pipeline.NewOrchestrator(stages, prompter, cfg.GateStages, slog.Default())
			reports := o.Run(cmd.Context())
			printSummary(reports)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "project directory to process (required)")
	cmd.Flags().StringSliceVar(&stageNames, "stage", []string{"all"},
		"stages to run, in pipeline order: collect,rename,enhance,extract,correct,publish,verify or all")
	cmd.Flags().BoolVar(&noConfirm, "yes", false, "disable per-stage confirmation prompts")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "confirmation prompt deadline (default 30s)")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func buildStages(cfg *config.Config, names []string) ([]pipeline.Stage, error) {
	selected := make(map[string]bool)
	for _, n := range names {
		if n == "all" {
			for _, s := range stageOrder {
				selected[s] = true
			}
			continue
		}
		found := false
		for _, s := range stageOrder {
			if s == n {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown stage %q", n)
		}
		selected[n] = true
	}

	tool := pdf.Tool{}
	engine := ocr.NewEngine(cfg.OCRCommand, cfg.GhostscriptCommand)

	dialAnalyzer := func(ctx context.Context) (services.MetadataAnalyzer, error) {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
		}
		return gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexRegion, cfg.GeminiModel, cfg.MaxOutputTokens)
	}
	dialCorrector := func(ctx context.Context) (services.Corrector, error) {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
		}
		return gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexRegion, cfg.GeminiModel, cfg.MaxOutputTokens)
	}
	dialReader := func(ctx context.Context) (services.PageReader, error) {
		return gcp.NewPageExtractor(ctx, cfg.ExtractBatchSize)
	}
	dialStore := func(ctx context.Context) (services.ObjectStore, error) {
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET environment variable must be set")
		}
		return gcp.NewDocStore(ctx, cfg.Bucket)
	}

	byName := map[string]pipeline.Stage{
		"collect": services.NewCollectStage(cfg),
		"rename":  services.NewRenameStage(cfg, tool, dialAnalyzer),
		"enhance": services.NewEnhanceStage(cfg, tool, engine),
		"extract": services.NewExtractStage(cfg, tool, dialReader),
		"correct": services.NewCorrectStage(cfg, dialCorrector),
		"publish": services.NewPublishStage(cfg, dialStore),
		"verify":  services.NewVerifyStage(cfg, tool),
	}

	var stages []pipeline.Stage
	for _, name := range stageOrder {
		if selected[name] {
			stages = append(stages, &interruptibleStage{inner: byName[name]})
		}
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no stages selected")
	}
	return stages, nil
}

// interruptibleStage gives each stage its own SIGINT scope, so an interrupt
// aborts the running stage but still lets the orchestrator offer to
// continue with the next one.
type interruptibleStage struct {
	inner pipeline.Stage
}

func (s *interruptibleStage) Name() string { return s.inner.Name() }

func (s *interruptibleStage) Run(ctx context.Context) (pipeline.Report, error) {
	stageCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.inner.Run(stageCtx)
}

func printSummary(reports map[string]pipeline.Report) {
	fmt.Println()
	color.Cyan("Pipeline summary")
	for _, name := range stageOrder {
		report, ok := reports[name]
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-8s ok=%d partial=%d skipped=%d failed=%d warnings=%d",
			name,
			report.Count(pipeline.StatusOK),
			report.Count(pipeline.StatusPartial),
			report.Count(pipeline.StatusSkipped),
			report.Count(pipeline.StatusFailed),
			report.Count(pipeline.StatusWarning),
		)
		if report.Count(pipeline.StatusFailed) > 0 {
			color.Red(line)
		} else if report.Count(pipeline.StatusWarning) > 0 {
			color.Yellow(line)
		} else {
			color.Green(line)
		}
	}
}

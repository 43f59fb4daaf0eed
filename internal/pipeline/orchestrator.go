package pipeline

import (
	"context"
	"errors"
	"log/slog"
)

// Stage is one ordered step of the pipeline. Per-file failures are absorbed
// into the returned Report; only stage-level errors (a collaborator failing
// to initialize, an interrupted run) are returned.
type Stage interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

// Orchestrator runs the configured stages strictly in order, optionally
// gating each behind a time-boxed confirmation.
type Orchestrator struct {
	stages   []Stage
	prompter Prompter
	gate     bool
	logger   *slog.Logger
}

func NewOrchestrator(stages []Stage, prompter Prompter, gate bool, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{stages: stages, prompter: prompter, gate: gate, logger: logger}
}

// Run attempts every configured stage. A declined gate skips that stage; a
// stage-level error or interrupt stops the pipeline only if the operator
// declines to continue (the prompt defaults to continuing). The returned
// map holds each attempted stage's report.
func (o *Orchestrator) Run(ctx context.Context) map[string]Report {
	reports := make(map[string]Report, len(o.stages))

	for _, stage := range o.stages {
		logCtx := o.logger.With("stage", stage.Name())

		if o.gate {
			if !o.prompter.Confirm("Run stage " + stage.Name() + "?") {
				logCtx.Info("Stage skipped by operator.")
				continue
			}
		}

		logCtx.Info("Stage starting.")
		report, err := stage.Run(ctx)
		reports[stage.Name()] = report

		if err != nil {
			if errors.Is(err, context.Canceled) {
				logCtx.Warn("Stage interrupted.")
			} else {
				logCtx.Error("Stage failed.", "error", err)
			}
			if !o.prompter.Confirm("Continue to next stage?") {
				logCtx.Info("Pipeline stopped by operator.")
				break
			}
			continue
		}

		logCtx.Info("Stage complete.",
			"ok", report.Count(StatusOK),
			"partial", report.Count(StatusPartial),
			"skipped", report.Count(StatusSkipped),
			"failed", report.Count(StatusFailed),
			"warnings", report.Count(StatusWarning),
		)
	}
	return reports
}

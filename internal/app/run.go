package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/executor"
	"github.com/vk/pipegrid/internal/preflight"
	"github.com/vk/pipegrid/internal/proc"
	"github.com/vk/pipegrid/internal/report"
	"github.com/vk/pipegrid/internal/resolve"
)

// Run executes one orchestration run end to end. Per-stage failures land in
// the persisted report and surface as a single non-nil error at the end;
// pre-run failures (malformed definition, graph errors, pre-flight) abort
// before any stage is attempted.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger
	logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx)
		defer a.closeHealthcheckServer()
	}

	loader, err := loaderFor(a.config.PipelinePath)
	if err != nil {
		return err
	}
	pipeline, err := loader.Load(ctx, a.config.PipelinePath)
	if err != nil {
		return err
	}
	logger.Debug("Pipeline definition loaded.", "stages", len(pipeline.Stages))

	graph, err := dag.Build(pipeline.Stages)
	if err != nil {
		return err
	}
	if err := graph.Validate(); err != nil {
		return err
	}
	logger.Debug("Dependency graph built and validated.", "stage_count", graph.Len())

	overrides, err := parseOverrides(a.config.Overrides)
	if err != nil {
		return err
	}

	var prior *report.RunReport
	if a.config.ResumeFrom != "" {
		prior, err = report.Load(a.config.ResumeFrom)
		if err != nil {
			return err
		}
	}
	selection, err := selectStages(ctx, graph, a.config, prior)
	if err != nil {
		return err
	}

	if err := preflight.Check(ctx, pipeline.Preflight); err != nil {
		a.persistAborted(ctx, prior)
		return fmt.Errorf("run aborted: %w", err)
	}

	resolved := resolve.Pipeline(ctx, pipeline, overrides)

	rep := report.New(a.config.PipelinePath)
	runDir := filepath.Join(a.config.WorkDir, rep.RunID)
	logger.Info("🚀 Starting pipeline run.", "run_id", rep.RunID, "selected_stages", len(selection), "workdir", runDir)

	exec := executor.New(graph, resolved, selection, &proc.Runner{GracePeriod: a.config.GracePeriod}, executor.Options{
		MemoryBudgetGB: a.config.MemoryBudgetGB,
		Workers:        a.config.Workers,
		WorkDir:        runDir,
	})
	if err := exec.Run(ctx, rep); err != nil {
		return err
	}
	rep.Finalize(false)

	final := rep
	if prior != nil {
		final = report.Merge(prior, rep)
	}
	if a.config.ReportPath != "" {
		if err := final.Save(a.config.ReportPath); err != nil {
			return err
		}
		logger.Info("Run report persisted.", "path", a.config.ReportPath)
	}

	a.printSummary(final)
	logger.Info("🏁 Run finished.", "overall", final.Overall)

	if final.Overall != report.OverallSuccess {
		return fmt.Errorf("pipeline run finished with status %s", final.Overall)
	}
	return nil
}

// persistAborted writes a report with no attempted stages, so an aborted
// run leaves an auditable record when a report path is configured. On a
// resumption run the prior report's results are carried over, keeping
// earlier succeeded stages resumable after the abort.
func (a *App) persistAborted(ctx context.Context, prior *report.RunReport) {
	if a.config.ReportPath == "" {
		return
	}
	rep := report.New(a.config.PipelinePath)
	rep.Finalize(true)
	if prior != nil {
		rep = report.Merge(prior, rep)
	}
	if err := rep.Save(a.config.ReportPath); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to persist aborted run report.", "error", err)
	}
}

// selectStages computes the set of stages this run executes.
func selectStages(ctx context.Context, graph *dag.Graph, cfg *Config, prior *report.RunReport) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	switch {
	case cfg.Stage != "":
		if !graph.Contains(cfg.Stage) {
			return nil, fmt.Errorf("unknown stage %q requested", cfg.Stage)
		}
		selection := append(graph.TransitiveDependencies(cfg.Stage), cfg.Stage)
		logger.Info("Single-stage selection.", "target", cfg.Stage, "stages", len(selection))
		return selection, nil

	case prior != nil:
		var selection []string
		for _, name := range prior.RerunStages() {
			if !graph.Contains(name) {
				logger.Warn("Stage from prior report no longer in definition; dropping.", "stage", name)
				continue
			}
			selection = append(selection, name)
		}
		logger.Info("Resumption selection: non-succeeded stages of prior run.",
			"prior_run", prior.RunID, "stages", len(selection))
		return selection, nil

	default:
		return graph.Names(), nil
	}
}

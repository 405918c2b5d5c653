package executor

import (
	"context"
	"path/filepath"
	"time"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/dag"
	"github.com/vk/pipegrid/internal/proc"
	"github.com/vk/pipegrid/internal/report"
	"github.com/vk/pipegrid/internal/resolve"
)

// Launcher abstracts the stage subprocess launch so the scheduling logic
// can be exercised without real processes. *proc.Runner is the production
// implementation.
type Launcher interface {
	Run(ctx context.Context, rs *resolve.Stage, workDir string) (proc.Outcome, error)
}

// Options configures a run.
type Options struct {
	// MemoryBudgetGB caps the summed memory hints of concurrently running
	// stages. Zero means unconstrained.
	MemoryBudgetGB float64
	// Workers caps the number of concurrently running stages. Zero means
	// unconstrained.
	Workers int
	// WorkDir is the run's root directory; each stage executes in
	// WorkDir/<stage name>/.
	WorkDir string
}

// stageState is the scheduler-internal lifecycle of one stage. Only the
// scheduler loop reads or writes it.
type stageState int

const (
	statePending stageState = iota
	stateRunning
	stateSucceeded
	stateFailed
	stateSkipped
)

// completion is the message a worker sends back when its stage ends.
type completion struct {
	stage    string
	outcome  proc.Outcome
	err      error
	started  time.Time
	finished time.Time
}

// Executor schedules and runs the selected stages of one pipeline run.
type Executor struct {
	graph    *dag.Graph
	order    []string
	stages   map[string]*resolve.Stage
	selected map[string]struct{}
	launcher Launcher
	opts     Options

	states    map[string]stageState
	weight    float64
	running   int
	cancelled bool
	done      chan completion
}

// New creates an executor over a validated graph. selected names the stages
// to actually execute; dependencies outside the selection are treated as
// already satisfied (they succeeded in a prior run, or the selection was
// built from a target's transitive dependency closure).
func New(graph *dag.Graph, resolved []*resolve.Stage, selected []string, launcher Launcher, opts Options) *Executor {
	e := &Executor{
		graph:    graph,
		order:    graph.TopoOrder(),
		stages:   make(map[string]*resolve.Stage, len(resolved)),
		selected: make(map[string]struct{}, len(selected)),
		launcher: launcher,
		opts:     opts,
		states:   make(map[string]stageState, len(selected)),
		done:     make(chan completion),
	}
	for _, rs := range resolved {
		e.stages[rs.Spec.Name] = rs
	}
	for _, name := range selected {
		e.selected[name] = struct{}{}
		e.states[name] = statePending
	}
	return e
}

// Run executes the selection to completion or cancellation, appending one
// result per selected stage to rep. The returned error reports only
// orchestrator-internal trouble; stage failures land in the report.
func (e *Executor) Run(ctx context.Context, rep *report.RunReport) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting pipeline execution.",
		"stages", len(e.selected), "budget_gb", e.opts.MemoryBudgetGB, "workers", e.opts.Workers)

	// Stages that can never run are failed up front so their dependents
	// skip immediately and the budget invariant holds trivially for them.
	for _, name := range e.order {
		if !e.isSelected(name) || e.states[name] != statePending {
			continue
		}
		rs := e.stages[name]
		if rs.Err != nil {
			e.failBeforeLaunch(rep, name, rs.Err)
			continue
		}
		if e.opts.MemoryBudgetGB > 0 && rs.MemoryGB > e.opts.MemoryBudgetGB {
			e.failBeforeLaunch(rep, name, &BudgetExceededError{
				Stage:    name,
				MemoryGB: rs.MemoryGB,
				BudgetGB: e.opts.MemoryBudgetGB,
			})
		}
	}

loop:
	for {
		e.admit(ctx)
		if e.running == 0 {
			// Nothing running and nothing admissible. Skip propagation
			// retires every stage blocked on a terminal dependency, so
			// remaining pending stages are impossible here; exit either way
			// rather than spin.
			break
		}

		select {
		case msg := <-e.done:
			e.complete(ctx, rep, msg)
		case <-ctx.Done():
			e.cancelled = true
			logger.Warn("Cancellation requested; no further stages will be admitted.",
				"running", e.running)
			break loop
		}
	}

	if e.cancelled {
		// Workers observe ctx themselves; drain their completions so the
		// report never leaves a running stage unaccounted for.
		for e.running > 0 {
			e.complete(ctx, rep, <-e.done)
		}
		for _, name := range e.order {
			if e.isSelected(name) && e.states[name] == statePending {
				e.states[name] = stateSkipped
				rep.Append(report.StageResult{
					Stage:    name,
					Status:   report.StatusSkipped,
					ExitCode: -1,
					Reason:   "run cancelled before stage became ready",
				})
			}
		}
	}

	logger.Info("Pipeline execution finished.")
	return nil
}

// admit launches every ready stage that fits the remaining budget, scanning
// in topological order so earlier-declared stages win ties and nothing is
// starved while budget exists.
func (e *Executor) admit(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, name := range e.order {
		if !e.isSelected(name) || e.states[name] != statePending || !e.depsSatisfied(name) {
			continue
		}
		rs := e.stages[name]
		if e.opts.Workers > 0 && e.running >= e.opts.Workers {
			return
		}
		if e.opts.MemoryBudgetGB > 0 && e.weight+rs.MemoryGB > e.opts.MemoryBudgetGB {
			// Does not fit right now; later ready stages may still fit.
			continue
		}

		e.states[name] = stateRunning
		e.running++
		e.weight += rs.MemoryGB
		logger.Info("▶️ Stage admitted.", "stage", name, "memory_gb", rs.MemoryGB, "in_flight_gb", e.weight)

		go func(name string, rs *resolve.Stage) {
			started := time.Now()
			outcome, err := e.launcher.Run(ctx, rs, filepath.Join(e.opts.WorkDir, name))
			e.done <- completion{
				stage:    name,
				outcome:  outcome,
				err:      err,
				started:  started,
				finished: time.Now(),
			}
		}(name, rs)
	}
}

// complete releases the stage's budget share, records its result, and
// propagates a failure to the transitive dependents.
func (e *Executor) complete(ctx context.Context, rep *report.RunReport, msg completion) {
	logger := ctxlog.FromContext(ctx)
	rs := e.stages[msg.stage]
	e.running--
	e.weight -= rs.MemoryGB

	res := report.StageResult{
		Stage:      msg.stage,
		ExitCode:   msg.outcome.ExitCode,
		StartedAt:  msg.started,
		FinishedAt: msg.finished,
		LogPath:    msg.outcome.LogPath,
	}
	if msg.err == nil {
		e.states[msg.stage] = stateSucceeded
		res.Status = report.StatusSucceeded
		logger.Info("✅ Stage succeeded.", "stage", msg.stage, "duration", msg.finished.Sub(msg.started).Round(time.Millisecond))
	} else {
		e.states[msg.stage] = stateFailed
		res.Status = report.StatusFailed
		res.Reason = msg.err.Error()
		logger.Error("Stage failed.", "stage", msg.stage, "error", msg.err, "exit_code", msg.outcome.ExitCode)
	}
	rep.Append(res)

	// On a cancelled run the post-drain sweep owns the remaining pending
	// stages, so every not-yet-started stage carries the cancellation
	// reason rather than an upstream-failure one.
	if msg.err != nil && !e.cancelled {
		e.skipDependents(ctx, rep, msg.stage)
	}
}

// failBeforeLaunch records a pre-launch failure (missing global bundle,
// impossible budget) and skips the stage's dependents.
func (e *Executor) failBeforeLaunch(rep *report.RunReport, name string, err error) {
	e.states[name] = stateFailed
	rep.Append(report.StageResult{
		Stage:    name,
		Status:   report.StatusFailed,
		ExitCode: -1,
		Reason:   err.Error(),
	})
	for _, dep := range e.graph.TransitiveDependents(name) {
		if e.isSelected(dep) && e.states[dep] == statePending {
			e.states[dep] = stateSkipped
			rep.Append(report.StageResult{
				Stage:    dep,
				Status:   report.StatusSkipped,
				ExitCode: -1,
				Reason:   "upstream stage " + name + " failed",
			})
		}
	}
}

// skipDependents marks every pending stage downstream of failed as skipped.
func (e *Executor) skipDependents(ctx context.Context, rep *report.RunReport, failed string) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range e.graph.TransitiveDependents(failed) {
		if !e.isSelected(dep) || e.states[dep] != statePending {
			continue
		}
		e.states[dep] = stateSkipped
		logger.Warn("Skipping stage: upstream failure.", "stage", dep, "failed_upstream", failed)
		rep.Append(report.StageResult{
			Stage:    dep,
			Status:   report.StatusSkipped,
			ExitCode: -1,
			Reason:   "upstream stage " + failed + " failed",
		})
	}
}

func (e *Executor) isSelected(name string) bool {
	_, ok := e.selected[name]
	return ok
}

// depsSatisfied reports whether every direct dependency of the stage has
// succeeded. Dependencies outside the selection are satisfied by
// definition; failed or skipped ones can never satisfy, but by then skip
// propagation has already retired the stage.
func (e *Executor) depsSatisfied(name string) bool {
	for _, dep := range e.graph.Dependencies(name) {
		if !e.isSelected(dep) {
			continue
		}
		if e.states[dep] != stateSucceeded {
			return false
		}
	}
	return true
}

// Package report models the persisted outcome record of one orchestration
// run: one immutable result per stage plus the overall run status. The
// persisted form is what a resumption run selects its stages from.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of a single stage.
type Status string

const (
	// StatusSucceeded means the stage process exited zero.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the stage process exited nonzero, crashed, timed
	// out, or could not be launched at all.
	StatusFailed Status = "failed"
	// StatusSkipped means a stage in the transitive dependency closure
	// failed, so this stage was never attempted.
	StatusSkipped Status = "skipped"
)

// Overall is the aggregate status of a run.
type Overall string

const (
	// OverallSuccess means every stage succeeded.
	OverallSuccess Overall = "success"
	// OverallPartialFailure means at least one stage failed or was skipped
	// while independent branches ran to completion.
	OverallPartialFailure Overall = "partial_failure"
	// OverallAborted means the orchestrator could not proceed at all, e.g.
	// a pre-flight failure before any stage ran.
	OverallAborted Overall = "aborted"
)

// StageResult is the outcome of one stage. It is never mutated after being
// appended to a report.
type StageResult struct {
	Stage      string    `json:"stage"`
	Status     Status    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	LogPath    string    `json:"log_path,omitempty"`
}

// RunReport aggregates the stage results of one run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Pipeline   string        `json:"pipeline"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
	Overall    Overall       `json:"overall"`
	Stages     []StageResult `json:"stages"`
}

// New creates an empty report for the given pipeline definition path.
func New(pipeline string) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		Pipeline:  pipeline,
		StartedAt: time.Now(),
	}
}

// Append adds a stage result. Results are re-ordered at Finalize time; the
// append order carries no meaning.
func (r *RunReport) Append(res StageResult) {
	r.Stages = append(r.Stages, res)
}

// Result returns the recorded result for a stage, if any.
func (r *RunReport) Result(stage string) (StageResult, bool) {
	for _, res := range r.Stages {
		if res.Stage == stage {
			return res, true
		}
	}
	return StageResult{}, false
}

// Finalize stamps the end time, orders the listing by completion time with
// stage name as tie-break (never-attempted stages sort last), and computes
// the overall status. Aborted overrides the computed status.
func (r *RunReport) Finalize(aborted bool) {
	r.FinishedAt = time.Now()
	sort.SliceStable(r.Stages, func(i, j int) bool {
		a, b := r.Stages[i], r.Stages[j]
		if a.FinishedAt.IsZero() != b.FinishedAt.IsZero() {
			return !a.FinishedAt.IsZero()
		}
		if !a.FinishedAt.Equal(b.FinishedAt) {
			return a.FinishedAt.Before(b.FinishedAt)
		}
		return a.Stage < b.Stage
	})

	r.Overall = OverallSuccess
	for _, res := range r.Stages {
		if res.Status != StatusSucceeded {
			r.Overall = OverallPartialFailure
			break
		}
	}
	if aborted {
		r.Overall = OverallAborted
	}
}

// RerunStages returns the names of all stages that did not succeed, in
// listing order. This is the selection set for a resumption run.
func (r *RunReport) RerunStages() []string {
	var out []string
	for _, res := range r.Stages {
		if res.Status != StatusSucceeded {
			out = append(out, res.Stage)
		}
	}
	return out
}

// Merge overlays the results of a resumption run onto a prior report. The
// prior run's succeeded results are kept untouched; every stage that
// appears in next replaces its previous entry. The merged report carries
// the resumption run's identity and a recomputed overall status.
func Merge(prev, next *RunReport) *RunReport {
	merged := &RunReport{
		RunID:      next.RunID,
		Pipeline:   next.Pipeline,
		StartedAt:  next.StartedAt,
		FinishedAt: next.FinishedAt,
	}
	replaced := make(map[string]StageResult, len(next.Stages))
	for _, res := range next.Stages {
		replaced[res.Stage] = res
	}
	for _, res := range prev.Stages {
		if nr, ok := replaced[res.Stage]; ok {
			merged.Stages = append(merged.Stages, nr)
			delete(replaced, res.Stage)
			continue
		}
		merged.Stages = append(merged.Stages, res)
	}
	for _, res := range next.Stages {
		if _, ok := replaced[res.Stage]; ok {
			merged.Stages = append(merged.Stages, res)
		}
	}

	merged.Overall = OverallSuccess
	for _, res := range merged.Stages {
		if res.Status != StatusSucceeded {
			merged.Overall = OverallPartialFailure
			break
		}
	}
	if next.Overall == OverallAborted {
		merged.Overall = OverallAborted
	}
	return merged
}

package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath points at the pipeline definition (.hcl, .yml or .yaml).
	PipelinePath string

	// Stage, when set, limits the run to the named stage plus its
	// transitive dependencies.
	Stage string
	// ResumeFrom, when set, limits the run to the non-succeeded stages of
	// the referenced prior run report.
	ResumeFrom string
	// Overrides are raw key=value run-time option overrides.
	Overrides []string

	// MemoryBudgetGB caps the summed memory hints of concurrently running
	// stages. Zero disables budgeting.
	MemoryBudgetGB float64
	// Workers caps the number of concurrently running stages.
	Workers int
	// WorkDir is where per-run working directories are created.
	WorkDir string
	// ReportPath is where the run report is persisted.
	ReportPath string
	// GracePeriod is the SIGTERM-to-SIGKILL window on cancellation.
	GracePeriod time.Duration

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Stage != "" && cfg.ResumeFrom != "" {
		return nil, errors.New("a single-stage run and a resumption run are mutually exclusive")
	}
	if cfg.MemoryBudgetGB < 0 {
		return nil, errors.New("memory budget cannot be negative")
	}
	if cfg.Workers < 0 {
		return nil, errors.New("worker count cannot be negative")
	}
	return &cfg, nil
}

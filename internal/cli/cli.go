// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vk/pipegrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("pipegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pipegrid - a dependency-aware orchestrator for multi-stage scientific pipelines.

Usage:
  pipegrid [options] PIPELINE_PATH

Arguments:
  PIPELINE_PATH
    Path to a pipeline definition file (.hcl, .yml or .yaml).

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline definition file.")
	pFlag := flagSet.String("p", "", "Path to the pipeline definition file (shorthand).")
	stageFlag := flagSet.String("stage", "", "Run only this stage plus its transitive dependencies.")
	resumeFlag := flagSet.String("resume", "", "Re-run only the non-succeeded stages of a prior run report.")
	var setFlags stringList
	flagSet.Var(&setFlags, "set", "Run-time option override key=value. Repeatable.")
	budgetFlag := flagSet.Float64("memory-budget-gb", 0, "Total memory budget for concurrently running stages. 0 is unconstrained.")
	workersFlag := flagSet.Int("workers", 4, "Maximum number of concurrently running stages. 0 is unconstrained.")
	workdirFlag := flagSet.String("workdir", "runs", "Directory for per-run stage working directories.")
	reportFlag := flagSet.String("report", "run-report.json", "Path the run report is persisted to. Empty disables persistence.")
	graceFlag := flagSet.Duration("grace-period", 10*time.Second, "SIGTERM-to-SIGKILL window for cancelled or timed-out stages.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		PipelinePath:    path,
		Stage:           *stageFlag,
		ResumeFrom:      *resumeFlag,
		Overrides:       setFlags,
		MemoryBudgetGB:  *budgetFlag,
		Workers:         *workersFlag,
		WorkDir:         *workdirFlag,
		ReportPath:      *reportFlag,
		GracePeriod:     *graceFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

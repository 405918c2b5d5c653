package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/resolve"
)

// LogFileName is the file, inside a stage's working directory, that
// receives the subprocess's combined stdout and stderr.
const LogFileName = "output.log"

// Runner launches stage subprocesses in isolated working directories.
type Runner struct {
	// GracePeriod is how long a cancelled or timed-out stage gets between
	// SIGTERM and SIGKILL.
	GracePeriod time.Duration
}

// Outcome describes how a stage subprocess ended.
type Outcome struct {
	// ExitCode is the process exit status; -1 when the process never
	// started or was killed by a signal.
	ExitCode int
	// LogPath points at the captured stdio.
	LogPath string
	// TimedOut is set when the stage's wall-clock timeout expired.
	TimedOut bool
	// Cancelled is set when the run itself was aborted.
	Cancelled bool
}

// Run executes the stage in workDir, blocking until the process exits, the
// stage's timeout fires, or ctx is cancelled. A nil error means exit status
// zero.
func (r *Runner) Run(ctx context.Context, rs *resolve.Stage, workDir string) (Outcome, error) {
	logger := ctxlog.FromContext(ctx).With("stage", rs.Spec.Name)

	out := Outcome{ExitCode: -1}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return out, fmt.Errorf("creating stage working directory: %w", err)
	}
	out.LogPath = filepath.Join(workDir, LogFileName)
	logFile, err := os.Create(out.LogPath)
	if err != nil {
		return out, fmt.Errorf("creating stage log file: %w", err)
	}
	defer logFile.Close()

	runCtx := ctx
	var cancel context.CancelFunc
	if rs.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, rs.Timeout)
		defer cancel()
	}

	argv := Argv(rs)
	logger.Debug("Launching stage process.", "argv", argv, "workdir", workDir)

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// On cancellation the process gets SIGTERM first, then SIGKILL once the
	// grace period runs out.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.GracePeriod

	runErr := cmd.Run()
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr == nil {
		return out, nil
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		out.TimedOut = true
		return out, fmt.Errorf("stage timed out after %s", rs.Timeout)
	case ctx.Err() != nil:
		out.Cancelled = true
		return out, fmt.Errorf("stage cancelled: %w", context.Cause(ctx))
	default:
		return out, fmt.Errorf("stage process failed: %w", runErr)
	}
}

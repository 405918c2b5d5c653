// Package preflight runs the pre-run dependency gate: before any stage is
// admitted, every declared package is import-probed with the configured
// interpreter. Version policy and deeper environment introspection belong
// to the probed environment itself; the orchestrator only gates on the
// probe's exit status.
package preflight

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// Check probes every declared package. A nil spec disables the gate. Any
// failed probe aborts the run before a single stage is attempted.
func Check(ctx context.Context, spec *config.Preflight) error {
	if spec == nil || len(spec.Packages) == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	logger.Info("Running pre-flight dependency check.", "exec", spec.Exec, "packages", len(spec.Packages))

	var missing []string
	for _, pkg := range spec.Packages {
		if err := probe(ctx, spec.Exec, pkg); err != nil {
			logger.Error("Pre-flight probe failed.", "package", pkg, "error", err)
			missing = append(missing, pkg)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("pre-flight check failed for: %s", strings.Join(missing, ", "))
	}
	logger.Info("Pre-flight check passed.")
	return nil
}

func probe(ctx context.Context, interpreter, pkg string) error {
	cmd := exec.CommandContext(ctx, interpreter, "-c", "import "+pkg)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return err
	}
	return nil
}

// lastLine keeps the final line of an interpreter traceback, which carries
// the actual ImportError.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

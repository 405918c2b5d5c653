// Package resolve joins each stage spec with its fully merged option set and
// resolved global bundle paths, producing the immutable per-run view the
// executor works from.
package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// MissingGlobalError reports a referenced global bundle whose file does not
// exist at resolution time. It fails the affected stage before launch; it
// does not abort the run.
type MissingGlobalError struct {
	Stage  string
	Global string
	Path   string
}

func (e *MissingGlobalError) Error() string {
	return fmt.Sprintf("stage %q: global bundle %q not found at %s", e.Stage, e.Global, e.Path)
}

// Stage is a stage spec joined with its effective options, resolved bundle
// paths and scheduling hints. Immutable once produced.
type Stage struct {
	Spec *config.Stage
	// Options is the merged option set: bundle defaults, overwritten by
	// stage options, overwritten by run-time overrides. Order is stable so
	// the serialized command line is reproducible.
	Options []config.Option
	// GlobalPaths are the resolved bundle paths, one per referenced bundle,
	// in the stage's reference order.
	GlobalPaths []string
	// ScriptPath is the stage's script resolved against the pipeline root.
	ScriptPath string
	MemoryGB   float64
	Timeout    time.Duration
	// Err holds a deferred pre-launch failure such as a missing bundle.
	// The executor records it as the stage's failure without launching.
	Err error
}

// Pipeline resolves every stage of the pipeline. Overrides are run-time
// option overrides applied on top of each stage's merged set; an override
// overwrites an identically-named key wholly and is ignored for stages
// that never declare the key (overrides narrow a run, they do not extend a
// stage's option contract).
func Pipeline(ctx context.Context, p *config.Pipeline, overrides []config.Option) []*Stage {
	logger := ctxlog.FromContext(ctx)

	bundles := make(map[string]*config.Global, len(p.Globals))
	for _, g := range p.Globals {
		bundles[g.Name] = g
	}

	resolved := make([]*Stage, 0, len(p.Stages))
	for _, spec := range p.Stages {
		rs := &Stage{
			Spec:       spec,
			ScriptPath: joinRoot(p.RootDir, spec.Script),
			MemoryGB:   spec.MemoryGB,
			Timeout:    spec.Timeout,
		}

		// Lowest precedence first: bundle defaults in reference order.
		var merged []config.Option
		for _, name := range spec.Globals {
			g := bundles[name] // presence guaranteed by config validation
			merged = mergeOptions(merged, g.Defaults, true)

			path := joinRoot(p.RootDir, g.Path)
			if _, err := os.Stat(path); err != nil {
				rs.Err = &MissingGlobalError{Stage: spec.Name, Global: name, Path: path}
				logger.Warn("Global bundle missing; stage will fail before launch.",
					"stage", spec.Name, "global", name, "path", path)
			}
			rs.GlobalPaths = append(rs.GlobalPaths, path)
		}

		merged = mergeOptions(merged, spec.Options, true)
		merged = mergeOptions(merged, overrides, false)
		rs.Options = merged

		resolved = append(resolved, rs)
	}
	return resolved
}

// mergeOptions overlays layer on top of base. An identically-named key is
// replaced wholly in place, keeping its original position; new keys are
// appended when extend is true and dropped otherwise.
func mergeOptions(base, layer []config.Option, extend bool) []config.Option {
	out := append([]config.Option(nil), base...)
	for _, opt := range layer {
		if i := config.OptionIndex(out, opt.Key); i >= 0 {
			out[i] = opt
		} else if extend {
			out = append(out, opt)
		}
	}
	return out
}

func joinRoot(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

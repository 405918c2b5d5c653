package config

import (
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Pipeline is the unified, format-agnostic representation of a pipeline
// definition file. It is immutable once loaded and validated.
type Pipeline struct {
	// Source is the path of the definition file this model was loaded from.
	Source string
	// RootDir is the directory all relative paths in the definition resolve
	// against. Defaults to the definition file's directory.
	RootDir string
	// Globals lists the shared parameter bundles, in declaration order.
	Globals []*Global
	// Preflight, when present, names packages whose importability is probed
	// before any stage runs.
	Preflight *Preflight
	// Stages lists the pipeline stages in declaration order. Declaration
	// order is significant: it breaks ties in the topological execution
	// order, keeping runs reproducible.
	Stages []*Stage
}

// Global is a named, shared parameter bundle referenced by stages. The
// orchestrator never parses the file behind Path; it only hands the resolved
// path to the stage process via --globals=<path>.
type Global struct {
	Name string
	Path string
	// Defaults are option values contributed by this bundle to every stage
	// that references it. They sit at the bottom of the merge precedence.
	Defaults []Option
}

// Preflight declares the pre-run dependency gate: each package is import
// probed with the given interpreter before any stage is admitted.
type Preflight struct {
	Exec     string
	Packages []string
}

// Stage describes a single unit of pipeline work: one external process
// invocation with its options, bundle references and scheduling hints.
type Stage struct {
	// Name uniquely identifies the stage within the pipeline.
	Name string
	// Exec is the interpreter or binary that runs the stage.
	Exec string
	// Script is the target handed to Exec, resolved against RootDir.
	Script string
	// Globals names the parameter bundles this stage consumes.
	Globals []string
	// DependsOn names the stages that must succeed before this one runs.
	DependsOn []string
	// Options are the stage's declared key/value options, in declaration
	// order so the serialized command line is reproducible.
	Options []Option
	// MemoryGB is the stage's memory hint for admission control. Zero means
	// the stage is unconstrained and weighs nothing against the budget.
	MemoryGB float64
	// Timeout bounds the subprocess wall-clock runtime. Zero means no limit.
	Timeout time.Duration
}

// Option is a single key/value pair passed to a stage process. Values are
// restricted to a closed set of types: string, number, bool, or a list of
// those; the loaders reject anything else at parse time.
type Option struct {
	Key   string
	Value cty.Value
}

// OptionIndex returns the position of key in opts, or -1 when absent.
func OptionIndex(opts []Option, key string) int {
	for i, o := range opts {
		if o.Key == key {
			return i
		}
	}
	return -1
}

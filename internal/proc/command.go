// Package proc launches stage subprocesses. A stage is an opaque external
// process: the orchestrator serializes the resolved options onto its command
// line, captures its stdio, and interprets nothing but the exit status.
package proc

import (
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/resolve"
)

// Argv builds the full stage invocation:
//
//	exec script --globals=<path> [--globals=<path>...] [--<key>=<value>...]
//
// Option order follows the resolved set, so the command line for a given
// definition is identical across runs.
func Argv(rs *resolve.Stage) []string {
	argv := []string{rs.Spec.Exec, rs.ScriptPath}
	for _, path := range rs.GlobalPaths {
		argv = append(argv, "--globals="+path)
	}
	for _, opt := range rs.Options {
		argv = append(argv, "--"+opt.Key+"="+FormatValue(opt.Value))
	}
	return argv
}

// FormatValue serializes an option value for the command line. Lists are
// joined with commas, the convention the target scripts parse.
func FormatValue(v cty.Value) string {
	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString()
	case t == cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case t == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case t.IsListType() || t.IsSetType() || t.IsTupleType():
		var parts []string
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			parts = append(parts, FormatValue(el))
		}
		return strings.Join(parts, ",")
	default:
		// Unreachable: loaders enforce the closed option type set.
		return v.GoString()
	}
}

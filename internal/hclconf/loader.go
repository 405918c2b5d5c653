// Package hclconf loads pipeline definitions written in HCL, the native
// definition format, and translates them into the config model.
package hclconf

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// Loader is the HCL implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level structure of a pipeline definition file.
// Remain tolerates unknown top-level attributes and blocks: informational
// metadata is consumed by external collaborators, not by the orchestrator.
type fileRoot struct {
	RootDir   *string         `hcl:"root_dir,optional"`
	Preflight *preflightBlock `hcl:"preflight,block"`
	Globals   []*globalBlock  `hcl:"globals,block"`
	Stages    []*stageBlock   `hcl:"stage,block"`
	Remain    hcl.Body        `hcl:",remain"`
}

type preflightBlock struct {
	Exec     string   `hcl:"exec"`
	Packages []string `hcl:"packages"`
}

type globalBlock struct {
	Name     string         `hcl:"name,label"`
	Path     string         `hcl:"path"`
	Defaults hcl.Expression `hcl:"defaults,optional"`
}

type stageBlock struct {
	Name     string         `hcl:"name,label"`
	Exec     string         `hcl:"exec"`
	Script   string         `hcl:"script"`
	Globals  []string       `hcl:"globals,optional"`
	Depends  []string       `hcl:"depends,optional"`
	Timeout  *string        `hcl:"timeout,optional"`
	Parallel *parallelBlock `hcl:"parallel,block"`
	Options  hcl.Expression `hcl:"options,optional"`
}

type parallelBlock struct {
	MemoryGB float64 `hcl:"memory_gb"`
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, &config.MalformedConfigError{Path: path, Detail: "HCL parse failed", Err: diags}
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, &config.MalformedConfigError{Path: path, Detail: "HCL decode failed", Err: diags}
	}

	pipeline := &config.Pipeline{Source: path}
	if root.RootDir != nil {
		pipeline.RootDir = *root.RootDir
	}
	if pipeline.RootDir == "" {
		pipeline.RootDir = filepath.Dir(path)
	}
	if root.Preflight != nil {
		pipeline.Preflight = &config.Preflight{
			Exec:     root.Preflight.Exec,
			Packages: root.Preflight.Packages,
		}
	}

	for _, g := range root.Globals {
		defaults, err := translateOptions(path, "global "+g.Name, g.Defaults)
		if err != nil {
			return nil, err
		}
		pipeline.Globals = append(pipeline.Globals, &config.Global{
			Name:     g.Name,
			Path:     g.Path,
			Defaults: defaults,
		})
	}

	for _, s := range root.Stages {
		stage := &config.Stage{
			Name:      s.Name,
			Exec:      s.Exec,
			Script:    s.Script,
			Globals:   s.Globals,
			DependsOn: s.Depends,
		}
		if s.Parallel != nil {
			stage.MemoryGB = s.Parallel.MemoryGB
		}
		if s.Timeout != nil {
			d, err := time.ParseDuration(*s.Timeout)
			if err != nil {
				return nil, config.Malformedf(path, "stage %q has invalid timeout %q", s.Name, *s.Timeout)
			}
			stage.Timeout = d
		}
		opts, err := translateOptions(path, "stage "+s.Name, s.Options)
		if err != nil {
			return nil, err
		}
		stage.Options = opts
		pipeline.Stages = append(pipeline.Stages, stage)
	}

	if err := pipeline.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("HCL loading complete.", "globals", len(pipeline.Globals), "stages", len(pipeline.Stages))
	return pipeline, nil
}

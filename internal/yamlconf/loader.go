// Package yamlconf loads pipeline definitions written in YAML, the format
// the original scientific pipelines ship with. It produces the same config
// model as the HCL loader; the two are interchangeable behind config.Loader.
package yamlconf

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// Loader is the YAML implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new YAML pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

type preflightDoc struct {
	Exec     string   `yaml:"exec"`
	Packages []string `yaml:"packages"`
}

type globalDoc struct {
	Path     string    `yaml:"path"`
	Defaults yaml.Node `yaml:"defaults"`
}

type stageDoc struct {
	Exec     string   `yaml:"exec"`
	Script   string   `yaml:"script"`
	Globals  []string `yaml:"globals"`
	Depends  []string `yaml:"depends"`
	Timeout  string   `yaml:"timeout"`
	Parallel struct {
		MemoryGB float64 `yaml:"memory_gb"`
	} `yaml:"parallel"`
	Options yaml.Node `yaml:"options"`
}

// Load implements config.Loader.
//
// The document is walked through the yaml.Node API rather than decoded into
// plain maps: `globals` and `stages` are keyed mappings, and Go maps would
// discard the declaration order the scheduler's tie-breaking depends on.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.MalformedConfigError{Path: path, Detail: "cannot read definition", Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &config.MalformedConfigError{Path: path, Detail: "YAML parse failed", Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, config.Malformedf(path, "definition must be a YAML mapping")
	}
	root := doc.Content[0]

	pipeline := &config.Pipeline{Source: path}

	// Mapping nodes store keys and values as alternating Content entries.
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "root_dir":
			pipeline.RootDir = value.Value
		case "preflight":
			var pf preflightDoc
			if err := value.Decode(&pf); err != nil {
				return nil, &config.MalformedConfigError{Path: path, Detail: "invalid preflight section", Err: err}
			}
			pipeline.Preflight = &config.Preflight{Exec: pf.Exec, Packages: pf.Packages}
		case "globals":
			globals, err := translateGlobals(path, value)
			if err != nil {
				return nil, err
			}
			pipeline.Globals = globals
		case "stages":
			stages, err := translateStages(path, value)
			if err != nil {
				return nil, err
			}
			pipeline.Stages = stages
		default:
			// Unknown top-level metadata is informational and ignored.
		}
	}

	if pipeline.RootDir == "" {
		pipeline.RootDir = filepath.Dir(path)
	}

	if err := pipeline.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("YAML loading complete.", "globals", len(pipeline.Globals), "stages", len(pipeline.Stages))
	return pipeline, nil
}

func translateGlobals(path string, node *yaml.Node) ([]*config.Global, error) {
	if node.Kind != yaml.MappingNode {
		return nil, config.Malformedf(path, "globals must be a mapping of name to bundle")
	}
	var globals []*config.Global
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]

		// A bare string is shorthand for a bundle without defaults.
		if value.Kind == yaml.ScalarNode {
			globals = append(globals, &config.Global{Name: name, Path: value.Value})
			continue
		}

		var g globalDoc
		if err := value.Decode(&g); err != nil {
			return nil, &config.MalformedConfigError{Path: path, Detail: "invalid global bundle " + name, Err: err}
		}
		defaults, err := translateOptions(path, "global "+name, &g.Defaults)
		if err != nil {
			return nil, err
		}
		globals = append(globals, &config.Global{Name: name, Path: g.Path, Defaults: defaults})
	}
	return globals, nil
}

func translateStages(path string, node *yaml.Node) ([]*config.Stage, error) {
	if node.Kind != yaml.MappingNode {
		return nil, config.Malformedf(path, "stages must be a mapping of name to stage")
	}
	var stages []*config.Stage
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]

		var s stageDoc
		if err := value.Decode(&s); err != nil {
			return nil, &config.MalformedConfigError{Path: path, Detail: "invalid stage " + name, Err: err}
		}

		stage := &config.Stage{
			Name:      name,
			Exec:      s.Exec,
			Script:    s.Script,
			Globals:   s.Globals,
			DependsOn: s.Depends,
			MemoryGB:  s.Parallel.MemoryGB,
		}
		if s.Timeout != "" {
			d, err := time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, config.Malformedf(path, "stage %q has invalid timeout %q", name, s.Timeout)
			}
			stage.Timeout = d
		}
		opts, err := translateOptions(path, "stage "+name, &s.Options)
		if err != nil {
			return nil, err
		}
		stage.Options = opts
		stages = append(stages, stage)
	}
	return stages, nil
}

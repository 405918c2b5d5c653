// Package app wires the orchestrator together: definition loading, graph
// validation, pre-flight, resolution, run selection, execution and report
// persistence.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/hclconf"
	"github.com/vk/pipegrid/internal/yamlconf"
)

// App encapsulates the orchestrator's dependencies, configuration and
// lifecycle for one invocation.
type App struct {
	outW       io.Writer
	logW       io.Writer
	logger     *slog.Logger
	config     *Config
	httpServer *http.Server
}

// NewApp constructs the application with its own isolated logger. outW
// receives the human-readable run summary; logW receives structured logs.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	return &App{
		outW:   outW,
		logW:   logW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, logW),
		config: cfg,
	}
}

// loaderFor picks the definition loader from the file extension.
func loaderFor(path string) (config.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return hclconf.NewLoader(), nil
	case ".yml", ".yaml":
		return yamlconf.NewLoader(), nil
	default:
		return nil, fmt.Errorf("unsupported pipeline definition format %q (want .hcl, .yml or .yaml)", filepath.Ext(path))
	}
}

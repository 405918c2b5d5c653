package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("positional pipeline path with defaults", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"pipeline.yml"}, &out)
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "pipeline.yml", cfg.PipelinePath)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, "run-report.json", cfg.ReportPath)
		assert.Equal(t, 10*time.Second, cfg.GracePeriod)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("full flag set", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{
			"-p", "bb.hcl",
			"-stage", "transfer",
			"-set", "num-sims=5",
			"-set", "sim-sorter=fastest",
			"-memory-budget-gb", "16",
			"-workers", "2",
			"-workdir", "/scratch/runs",
			"-grace-period", "30s",
			"-log-format", "json",
			"-log-level", "debug",
		}, &out)
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "bb.hcl", cfg.PipelinePath)
		assert.Equal(t, "transfer", cfg.Stage)
		assert.Equal(t, []string{"num-sims=5", "sim-sorter=fastest"}, cfg.Overrides)
		assert.Equal(t, 16.0, cfg.MemoryBudgetGB)
		assert.Equal(t, 2, cfg.Workers)
		assert.Equal(t, 30*time.Second, cfg.GracePeriod)
	})

	t.Run("no path prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("invalid log format", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-log-format", "xml", "pipeline.yml"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("stage and resume are mutually exclusive", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-stage", "x", "-resume", "r.json", "pipeline.yml"}, &out)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Contains(t, exitErr.Message, "mutually exclusive")
	})
}

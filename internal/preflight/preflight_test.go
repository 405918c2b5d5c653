package preflight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/config"
)

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("nil spec disables the gate", func(t *testing.T) {
		assert.NoError(t, Check(ctx, nil))
	})

	t.Run("empty package list passes", func(t *testing.T) {
		assert.NoError(t, Check(ctx, &config.Preflight{Exec: "python3"}))
	})

	t.Run("all probes pass", func(t *testing.T) {
		// `true` ignores its arguments and exits zero, standing in for an
		// interpreter with every package installed.
		spec := &config.Preflight{Exec: "true", Packages: []string{"numpy", "healpy"}}
		assert.NoError(t, Check(ctx, spec))
	})

	t.Run("failed probe names the package", func(t *testing.T) {
		spec := &config.Preflight{Exec: "false", Packages: []string{"numpy", "pymaster"}}
		err := Check(ctx, spec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "numpy")
		assert.Contains(t, err.Error(), "pymaster")
	})

	t.Run("missing interpreter fails", func(t *testing.T) {
		spec := &config.Preflight{Exec: "/no/such/interpreter", Packages: []string{"numpy"}}
		assert.Error(t, Check(ctx, spec))
	})
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/report"
)

// pipelineDir materializes a pipeline definition plus supporting files
// (scripts, paramfiles) in a temp dir and returns the definition path.
func pipelineDir(t *testing.T, definition string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		mode := os.FileMode(0o644)
		if filepath.Ext(name) == ".sh" {
			mode = 0o755
		}
		require.NoError(t, os.WriteFile(path, []byte(content), mode))
	}
	defPath := filepath.Join(dir, "pipeline.yml")
	require.NoError(t, os.WriteFile(defPath, []byte(definition), 0o644))
	return defPath
}

func baseConfig(t *testing.T, defPath string) Config {
	t.Helper()
	return Config{
		PipelinePath: defPath,
		WorkDir:      filepath.Join(t.TempDir(), "runs"),
		ReportPath:   filepath.Join(t.TempDir(), "run-report.json"),
		GracePeriod:  time.Second,
		Workers:      4,
	}
}

func TestRunSuccess(t *testing.T) {
	defPath := pipelineDir(t, `
globals:
  params:
    path: paramfile.yml
    defaults:
      num-sims: 200

stages:
  mask:
    exec: /bin/sh
    script: scripts/stage.sh
    globals: [params]
    options:
      num-sims: 10
  mcm:
    exec: /bin/sh
    script: scripts/stage.sh
    globals: [params]
    depends: [mask]
  pcls:
    exec: /bin/sh
    script: scripts/stage.sh
    depends: [mcm]
`, map[string]string{
		"paramfile.yml":    "nside: 256\n",
		"scripts/stage.sh": "echo \"$@\" > args.txt\n",
	})

	cfg := baseConfig(t, defPath)
	testApp, outBuf, _ := SetupAppTest(t, cfg)
	require.NoError(t, testApp.Run(context.Background()))

	rep, err := report.Load(cfg.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, report.OverallSuccess, rep.Overall)
	require.Len(t, rep.Stages, 3)
	for _, res := range rep.Stages {
		assert.Equal(t, report.StatusSucceeded, res.Status)
		assert.FileExists(t, res.LogPath)
	}

	assert.Contains(t, outBuf.String(), "success")
}

func TestRunSerializesResolvedOptions(t *testing.T) {
	defPath := pipelineDir(t, `
globals:
  params:
    path: paramfile.yml
    defaults:
      num-sims: 200
      sim-sorter: default

stages:
  mcm:
    exec: /bin/sh
    script: scripts/record.sh
    globals: [params]
    options:
      num-sims: 10
`, map[string]string{
		"paramfile.yml":     "nside: 256\n",
		"scripts/record.sh": "echo \"$@\" > args.txt\n",
	})

	cfg := baseConfig(t, defPath)
	cfg.Overrides = []string{"num-sims=5"}
	testApp, _, _ := SetupAppTest(t, cfg)
	require.NoError(t, testApp.Run(context.Background()))

	rep, err := report.Load(cfg.ReportPath)
	require.NoError(t, err)
	res, ok := rep.Result("mcm")
	require.True(t, ok)

	// The stage ran inside its own working directory.
	args, err := os.ReadFile(filepath.Join(filepath.Dir(res.LogPath), "args.txt"))
	require.NoError(t, err)
	got := string(args)

	// Override beats stage option beats bundle default.
	assert.Contains(t, got, "--num-sims=5")
	assert.NotContains(t, got, "--num-sims=10")
	assert.Contains(t, got, "--sim-sorter=default")
	assert.Contains(t, got, "--globals=")
	assert.Contains(t, got, "paramfile.yml")
}

func TestRunPartialFailure(t *testing.T) {
	defPath := pipelineDir(t, `
stages:
  a:
    exec: /bin/sh
    script: scripts/ok.sh
  b:
    exec: /bin/sh
    script: scripts/fail.sh
  c:
    exec: /bin/sh
    script: scripts/ok.sh
    depends: [a, b]
`, map[string]string{
		"scripts/ok.sh":   "exit 0\n",
		"scripts/fail.sh": "echo failing >&2; exit 1\n",
	})

	cfg := baseConfig(t, defPath)
	testApp, _, _ := SetupAppTest(t, cfg)
	err := testApp.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial_failure")

	rep, loadErr := report.Load(cfg.ReportPath)
	require.NoError(t, loadErr)
	a, _ := rep.Result("a")
	b, _ := rep.Result("b")
	c, _ := rep.Result("c")
	assert.Equal(t, report.StatusSucceeded, a.Status)
	assert.Equal(t, report.StatusFailed, b.Status)
	assert.Equal(t, 1, b.ExitCode)
	assert.Equal(t, report.StatusSkipped, c.Status)
}

func TestRunResume(t *testing.T) {
	// fail.sh fails until the fixed marker appears, simulating a corrected
	// environment between the first run and the resumption.
	defPath := pipelineDir(t, `
stages:
  stable:
    exec: /bin/sh
    script: scripts/count.sh
  flaky:
    exec: /bin/sh
    script: scripts/flaky.sh
  downstream:
    exec: /bin/sh
    script: scripts/count.sh
    depends: [flaky]
`, map[string]string{
		"scripts/count.sh": "echo ran >> \"$COUNTS_DIR/$(basename \"$PWD\").log\"\nexit 0\n",
		"scripts/flaky.sh": "test -f \"$COUNTS_DIR/fixed\" || exit 1\n",
	})
	countsDir := t.TempDir()
	t.Setenv("COUNTS_DIR", countsDir)

	cfg := baseConfig(t, defPath)
	firstApp, _, _ := SetupAppTest(t, cfg)
	require.Error(t, firstApp.Run(context.Background()))

	first, err := report.Load(cfg.ReportPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"flaky", "downstream"}, first.RerunStages())

	// "Fix" the environment and resume from the persisted report.
	require.NoError(t, os.WriteFile(filepath.Join(countsDir, "fixed"), nil, 0o644))
	resumeCfg := cfg
	resumeCfg.ResumeFrom = cfg.ReportPath
	resumeApp, _, _ := SetupAppTest(t, resumeCfg)
	require.NoError(t, resumeApp.Run(context.Background()))

	merged, err := report.Load(cfg.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, report.OverallSuccess, merged.Overall)
	assert.Empty(t, merged.RerunStages())

	// The stable stage ran exactly once across both invocations, and its
	// original result is preserved in the merged report.
	counts, err := os.ReadFile(filepath.Join(countsDir, "stable.log"))
	require.NoError(t, err)
	assert.Equal(t, "ran\n", string(counts))

	stable, ok := merged.Result("stable")
	require.True(t, ok)
	prevStable, _ := first.Result("stable")
	assert.Equal(t, prevStable.FinishedAt, stable.FinishedAt)
}

func TestRunSingleStageSelection(t *testing.T) {
	defPath := pipelineDir(t, `
stages:
  a:
    exec: /bin/sh
    script: scripts/touch.sh
  b:
    exec: /bin/sh
    script: scripts/touch.sh
    depends: [a]
  unrelated:
    exec: /bin/sh
    script: scripts/touch.sh
`, map[string]string{
		"scripts/touch.sh": "touch done\n",
	})

	cfg := baseConfig(t, defPath)
	cfg.Stage = "b"
	testApp, _, _ := SetupAppTest(t, cfg)
	require.NoError(t, testApp.Run(context.Background()))

	rep, err := report.Load(cfg.ReportPath)
	require.NoError(t, err)
	require.Len(t, rep.Stages, 2)
	_, hasA := rep.Result("a")
	_, hasUnrelated := rep.Result("unrelated")
	assert.True(t, hasA, "transitive dependency must be selected")
	assert.False(t, hasUnrelated)
}

func TestRunPreRunErrors(t *testing.T) {
	t.Run("cyclic definition aborts before anything runs", func(t *testing.T) {
		defPath := pipelineDir(t, `
stages:
  a:
    exec: /bin/sh
    script: s.sh
    depends: [b]
  b:
    exec: /bin/sh
    script: s.sh
    depends: [a]
`, map[string]string{"s.sh": "exit 0\n"})

		cfg := baseConfig(t, defPath)
		testApp, _, _ := SetupAppTest(t, cfg)
		err := testApp.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
		assert.NoFileExists(t, cfg.ReportPath)
	})

	t.Run("unknown dependency", func(t *testing.T) {
		defPath := pipelineDir(t, `
stages:
  a:
    exec: /bin/sh
    script: s.sh
    depends: [ghost]
`, map[string]string{"s.sh": "exit 0\n"})

		cfg := baseConfig(t, defPath)
		testApp, _, _ := SetupAppTest(t, cfg)
		err := testApp.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown stage")
	})

	t.Run("unknown selection target", func(t *testing.T) {
		defPath := pipelineDir(t, `
stages:
  a:
    exec: /bin/sh
    script: s.sh
`, map[string]string{"s.sh": "exit 0\n"})

		cfg := baseConfig(t, defPath)
		cfg.Stage = "ghost"
		testApp, _, _ := SetupAppTest(t, cfg)
		assert.Error(t, testApp.Run(context.Background()))
	})

	t.Run("failed preflight aborts", func(t *testing.T) {
		defPath := pipelineDir(t, `
preflight:
  exec: /bin/sh
  packages: [definitely_not_installed]

stages:
  a:
    exec: /bin/sh
    script: s.sh
`, map[string]string{"s.sh": "exit 0\n"})

		cfg := baseConfig(t, defPath)
		testApp, _, _ := SetupAppTest(t, cfg)
		err := testApp.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "aborted")

		rep, loadErr := report.Load(cfg.ReportPath)
		require.NoError(t, loadErr)
		assert.Equal(t, report.OverallAborted, rep.Overall)
		assert.Empty(t, rep.Stages, "no stage may be attempted after a failed pre-flight")
	})

	t.Run("aborted resumption keeps the prior report's results", func(t *testing.T) {
		defPath := pipelineDir(t, `
preflight:
  exec: /bin/sh
  packages: [definitely_not_installed]

stages:
  a:
    exec: /bin/sh
    script: s.sh
  b:
    exec: /bin/sh
    script: s.sh
`, map[string]string{"s.sh": "exit 0\n"})

		cfg := baseConfig(t, defPath)
		prior := report.New(defPath)
		now := time.Now()
		prior.Append(report.StageResult{Stage: "a", Status: report.StatusSucceeded, StartedAt: now, FinishedAt: now})
		prior.Append(report.StageResult{Stage: "b", Status: report.StatusFailed, ExitCode: 1, StartedAt: now, FinishedAt: now})
		prior.Finalize(false)
		require.NoError(t, prior.Save(cfg.ReportPath))

		cfg.ResumeFrom = cfg.ReportPath
		testApp, _, _ := SetupAppTest(t, cfg)
		err := testApp.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "aborted")

		rep, loadErr := report.Load(cfg.ReportPath)
		require.NoError(t, loadErr)
		assert.Equal(t, report.OverallAborted, rep.Overall)
		a, ok := rep.Result("a")
		require.True(t, ok, "prior succeeded result must survive the aborted resumption")
		assert.Equal(t, report.StatusSucceeded, a.Status)
		assert.Equal(t, []string{"b"}, rep.RerunStages())
	})
}

func TestParseOverrides(t *testing.T) {
	opts, err := parseOverrides([]string{"num-sims=5", "tag=deep56", "dry-run=true"})
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, "num-sims", opts[0].Key)
	assert.Equal(t, "5", opts[0].Value.AsBigFloat().Text('f', -1))
	assert.Equal(t, "deep56", opts[1].Value.AsString())
	assert.True(t, opts[2].Value.True())

	_, err = parseOverrides([]string{"missing-separator"})
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/types"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	// Documented defaults.
	assert.Equal(t, 85, cfg.Session.Threshold)
	assert.Equal(t, 3, cfg.Queue.MaxConcurrent)
	assert.Equal(t, 50, cfg.Queue.MaxQueueSize)
	assert.Equal(t, 30*time.Second, cfg.Queue.JobTimeout)
	assert.Equal(t, 25, cfg.Completion.HardStop)
	assert.Equal(t, 24*time.Hour, cfg.Store.MaxSessionAge)
	assert.Equal(t, time.Hour, cfg.Store.CleanupInterval)
	assert.Equal(t, SanitizerStandard, cfg.Sanitizer.Level)
	assert.Equal(t, 5, cfg.Sanitizer.MaxPathDepth)
	assert.Equal(t, 5*time.Second, cfg.Progress.EnableAfter)
	assert.Equal(t, 10, cfg.Progress.MaxTracked)
}

func TestValidate_RejectsBadTierOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Completion.Tiers = []CompletionTier{
		{Score: 85, AtLoop: 10},
		{Score: 90, AtLoop: 15}, // score ascends: invalid
	}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsHardStopInsideTiers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Completion.HardStop = 20
	assert.Error(t, cfg.Validate())
}

func TestValidate_PathsScopeRequiresPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Scope = types.ScopePaths
	assert.Error(t, cfg.Validate())

	cfg.Session.Paths = []string{"internal"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_TraceWeightsMustSumTo100(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.TraceDirectWeight = 70
	assert.Error(t, cfg.Validate())
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.StateDir = dir
	cfg.Session.Threshold = 91
	cfg.Queue.MaxConcurrent = 7
	require.NoError(t, cfg.Save())

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 91, loaded.Session.Threshold)
	assert.Equal(t, 7, loaded.Queue.MaxConcurrent)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 85, cfg.Session.Threshold)
	assert.Equal(t, dir, cfg.StateDir)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("queue: ["), 0o644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GANAUDIT_THRESHOLD", "93")
	t.Setenv("GANAUDIT_MAX_CONCURRENT", "5")
	t.Setenv("GANAUDIT_SANITIZER_LEVEL", "strict")
	t.Setenv("GANAUDIT_JOB_TIMEOUT", "45s")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 93, cfg.Session.Threshold)
	assert.Equal(t, 5, cfg.Queue.MaxConcurrent)
	assert.Equal(t, SanitizerStrict, cfg.Sanitizer.Level)
	assert.Equal(t, 45*time.Second, cfg.Queue.JobTimeout)
}

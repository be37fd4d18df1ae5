package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	def := DefaultConfig()
	assert.True(t, def.EnableFormulaSemanticDiff)
	assert.Equal(t, uint32(2), def.RareThreshold)
	assert.Equal(t, uint32(1), def.LowInfoThreshold)
	assert.Equal(t, uint32(16), def.SmallGapThreshold)
	assert.Equal(t, uint32(128), def.RecursiveAlignThreshold)

	fast := FastestConfig()
	assert.False(t, fast.EnableFormulaSemanticDiff)

	precise := MostPreciseConfig()
	assert.True(t, precise.EnableFormulaSemanticDiff)
	assert.Greater(t, precise.SmallGapThreshold, def.SmallGapThreshold)

	assert.Equal(t, def, BalancedConfig())
}

func TestApplyConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xldiff.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_memory_mb: 512
timeout_seconds: 30
formula_semantic_diff: false
rare_threshold: 4
on_limit: error
workers: 3
`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, ApplyConfigFile(cfg, path))

	assert.Equal(t, uint32(512), cfg.MaxMemoryMB)
	assert.Equal(t, uint32(30), cfg.TimeoutSeconds)
	assert.False(t, cfg.EnableFormulaSemanticDiff)
	assert.Equal(t, uint32(4), cfg.RareThreshold)
	assert.Equal(t, ReturnError, cfg.OnLimit)
	assert.Equal(t, 3, cfg.Workers)

	// Untouched keys keep their preset values.
	assert.Equal(t, uint32(16), cfg.SmallGapThreshold)
}

func TestApplyConfigFileRejectsUnknownLimitPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("on_limit: explode\n"), 0o644))

	cfg := DefaultConfig()
	assert.Error(t, ApplyConfigFile(cfg, path))
}

func TestDatabaseModeDiff(t *testing.T) {
	// Covered end to end in the root package; here only the duplicate-key
	// fallback contract.
	t.Run("duplicate keys fall back with warning", func(t *testing.T) {
		p := newTestPool(t)
		grid := numberGridFromRows([][]float64{{1, 10}, {1, 20}})
		report := GridsDatabaseMode(grid, grid, []uint32{0}, p, DefaultConfig())
		assert.False(t, report.Complete)
		require.NotEmpty(t, report.Warnings)
		assert.Contains(t, report.Warnings[0], "duplicate key")
	})

	t.Run("reordered identical rows diff empty", func(t *testing.T) {
		p := newTestPool(t)
		old := numberGridFromRows([][]float64{{1, 10}, {2, 20}, {3, 30}})
		new := numberGridFromRows([][]float64{{3, 30}, {1, 10}, {2, 20}})
		report := GridsDatabaseMode(old, new, []uint32{0}, p, DefaultConfig())
		assert.True(t, report.Complete)
		assert.Empty(t, report.Ops)
	})

	t.Run("key-only matching diffs non-key cells", func(t *testing.T) {
		p := newTestPool(t)
		old := numberGridFromRows([][]float64{{1, 10}, {2, 20}})
		new := numberGridFromRows([][]float64{{2, 25}, {1, 10}})
		report := GridsDatabaseMode(old, new, []uint32{0}, p, DefaultConfig())
		require.Len(t, report.Ops, 1)
		edit, ok := report.Ops[0].(CellEdited)
		require.True(t, ok)
		assert.Equal(t, "B1", edit.Addr)
	})

	t.Run("missing keys become row ops", func(t *testing.T) {
		p := newTestPool(t)
		old := numberGridFromRows([][]float64{{1, 10}, {2, 20}})
		new := numberGridFromRows([][]float64{{1, 10}, {3, 30}})
		report := GridsDatabaseMode(old, new, []uint32{0}, p, DefaultConfig())
		assert.Equal(t, []string{"RowRemoved", "RowAdded"}, opKinds(report.Ops))
	})
}

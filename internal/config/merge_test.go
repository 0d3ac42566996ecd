package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeEmptyOverrideRestoresBase(t *testing.T) {
	base := DefaultMap()
	assert.Equal(t, base, Merge(base, map[string]any{}))
	assert.Equal(t, base, Merge(base, nil))
}

func TestMergeScalarLastWriteWins(t *testing.T) {
	base := map[string]any{"solver": "MOSEK", "dvh_bins": 100.0}
	got := Merge(base, map[string]any{"solver": "HIGHS"})

	assert.Equal(t, "HIGHS", got["solver"])
	assert.Equal(t, 100.0, got["dvh_bins"])
}

func TestMergeNestedMapsRecursively(t *testing.T) {
	base := map[string]any{
		"solver_params": map[string]any{
			"MSK_DPAR_MIO_MAX_TIME":    300.0,
			"MSK_DPAR_MIO_TOL_REL_GAP": 0.05,
		},
	}
	got := Merge(base, map[string]any{
		"solver_params": map[string]any{"MSK_DPAR_MIO_MAX_TIME": 60.0},
	})

	assert.Equal(t, map[string]any{
		"MSK_DPAR_MIO_MAX_TIME":    60.0,
		"MSK_DPAR_MIO_TOL_REL_GAP": 0.05,
	}, got["solver_params"])
}

func TestMergeListsReplaceWholesale(t *testing.T) {
	base := map[string]any{"beam_ids": []any{0.0, 11.0, 22.0}}
	got := Merge(base, map[string]any{"beam_ids": []any{5.0}})

	assert.Equal(t, []any{5.0}, got["beam_ids"])
}

func TestMergeMapOverScalarReplaces(t *testing.T) {
	base := map[string]any{"x": "scalar"}
	got := Merge(base, map[string]any{"x": map[string]any{"y": 1.0}})
	assert.Equal(t, map[string]any{"y": 1.0}, got["x"])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"nested": map[string]any{"a": 1.0}, "list": []any{1.0}}
	override := map[string]any{"nested": map[string]any{"b": 2.0}}

	got := Merge(base, override)
	got["list"].([]any)[0] = 99.0

	assert.Equal(t, map[string]any{"a": 1.0}, base["nested"])
	assert.Equal(t, []any{1.0}, base["list"])
	assert.Equal(t, map[string]any{"b": 2.0}, override["nested"])
}

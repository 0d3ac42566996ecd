package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arcplan/internal/config"
)

func ptr(v float64) *float64 { return &v }

func TestLoadFromDir(t *testing.T) {
	p, err := Load(NewDirSource("testdata"), "Test_2Gy_5Fx", "Test_2Gy_5Fx_vmat")
	require.NoError(t, err)

	assert.Equal(t, "Test_2Gy_5Fx", p.Name)
	assert.Equal(t, 5, p.NumFractions)
	assert.InDelta(t, 10.0, p.Prescription(), 1e-12)
	assert.Len(t, p.Criteria, 4)
	assert.Equal(t, []string{"PTV", "HEART", "LUNG_R"}, p.Structures())

	require.Len(t, p.Objectives, 5)
	assert.Equal(t, TypeSmoothness, p.Objectives[4].Type)
	assert.Zero(t, p.Objectives[4].Weight, "smoothness disabled on load")
	assert.Equal(t, 10000.0, p.Objectives[0].Weight)
}

func TestLoadMissingProtocol(t *testing.T) {
	_, err := Load(NewDirSource("testdata"), "Nope", "Nope")
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
	assert.Contains(t, err.Error(), "clinical_criteria_Nope")
}

func TestNum(t *testing.T) {
	cc := &ClinicalCriteria{PrescriptionPerFractionGy: 2, NumFractions: 30}

	tests := []struct {
		in   any
		want float64
	}{
		{60, 60},
		{int64(7), 7},
		{12.5, 12.5},
		{"42", 42},
		{"prescription_gy", 60},
		{"1.05*prescription_gy", 63},
		{"prescription_gy * 0.5", 30},
	}
	for _, tt := range tests {
		got, err := cc.Num(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
	}

	for _, bad := range []any{"", "two", "prescription_gy+1", true, nil} {
		_, err := cc.Num(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestApplyOverrides(t *testing.T) {
	objs := []Objective{
		{StructureName: "PTV", Type: TypeQuadraticOverdose, Weight: 100, DoseGy: "prescription_gy"},
		{StructureName: "PTV", Type: TypeQuadraticUnderdose, Weight: 1000},
		{StructureName: "HEART", Type: TypeQuadratic, Weight: 10},
	}
	out := ApplyOverrides(objs, []config.ObjectiveOverride{
		{StructureName: "PTV", Type: TypeQuadraticOverdose, Weight: ptr(5), DoseGy: 58.0},
		{StructureName: "HEART", Type: TypeQuadratic, DosePerc: ptr(20)},
		{StructureName: "CORD", Type: TypeQuadratic, Weight: ptr(1)},
	})

	assert.Equal(t, 5.0, out[0].Weight)
	assert.Equal(t, 58.0, out[0].DoseGy)
	assert.Equal(t, 1000.0, out[1].Weight, "type must match too")
	assert.Equal(t, 10.0, out[2].Weight, "unset fields are kept")
	require.NotNil(t, out[2].DosePerc)
	assert.Equal(t, 20.0, *out[2].DosePerc)

	assert.Equal(t, 100.0, objs[0].Weight, "input not mutated")
	assert.Len(t, out, 3, "unmatched overrides add nothing")
}

func TestDefaultSchema(t *testing.T) {
	schema := DefaultSchema([]Objective{
		{StructureName: "PTV", Type: TypeQuadraticOverdose, Weight: 100, DoseGy: "prescription_gy"},
		{StructureName: "GTV", Type: TypeQuadratic, Weight: 1},
		{StructureName: "CORD", Type: TypeQuadraticOverdose, Weight: 50, DosePerc: ptr(50)},
		{StructureName: "HEART", Type: TypeQuadratic, Weight: 10},
	})
	require.Len(t, schema, 4)

	assert.Equal(t, RoleTarget, schema[0].Role)
	assert.True(t, schema[0].EditableTarget)
	assert.Equal(t, RoleTarget, schema[1].Role)
	assert.False(t, schema[1].EditableTarget)
	assert.Equal(t, RoleOAR, schema[2].Role)
	assert.True(t, schema[2].EditableTarget)
	assert.False(t, schema[3].EditableTarget)
	for _, e := range schema {
		assert.True(t, e.EditableWeight)
	}
}

func TestRole(t *testing.T) {
	assert.Equal(t, RoleTarget, Role("PTV"))
	assert.Equal(t, RoleTarget, Role("ptv_boost"))
	assert.Equal(t, RoleTarget, Role("CTV"))
	assert.Equal(t, RoleOAR, Role("CTV_2"))
	assert.Equal(t, RoleOAR, Role("LUNG_L"))
}

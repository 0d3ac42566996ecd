// Package protocol loads clinical protocols: the clinical criteria a plan is
// judged against and the objective functions it is optimized for.
//
// Protocol documents are YAML or JSON files named after the protocol:
//
//	clinical_criteria_<name>.yaml
//	optimization_params_<name>.yaml
package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Objective function types understood by the objective builder.
const (
	TypeQuadraticOverdose  = "quadratic-overdose"
	TypeQuadraticUnderdose = "quadratic-underdose"
	TypeQuadratic          = "quadratic"
	TypeSmoothness         = "smoothness-quadratic"
)

// Criterion types.
const (
	CriterionMaxDose     = "max_dose"
	CriterionMeanDose    = "mean_dose"
	CriterionDoseVolumeV = "dose_volume_V"
	CriterionDoseVolumeD = "dose_volume_D"
)

// PrescriptionToken is the symbolic name accepted in dose_gy expressions.
const PrescriptionToken = "prescription_gy"

// ClinicalCriteria is a clinical protocol: prescription plus the criteria table.
type ClinicalCriteria struct {
	Name                      string      `yaml:"name" json:"name"`
	PrescriptionPerFractionGy float64     `yaml:"pres_per_fraction_gy" json:"pres_per_fraction_gy"`
	NumFractions              int         `yaml:"num_of_fractions" json:"num_of_fractions"`
	Criteria                  []Criterion `yaml:"criteria" json:"criteria"`
}

// Criterion is one row of a clinical protocol.
type Criterion struct {
	Type        string       `yaml:"type" json:"type"`
	Parameters  CriterionArg `yaml:"parameters" json:"parameters"`
	Constraints Limits       `yaml:"constraints" json:"constraints"`
}

// CriterionArg identifies what a criterion measures.
type CriterionArg struct {
	StructureName string   `yaml:"structure_name" json:"structure_name"`
	DoseGy        *float64 `yaml:"dose_gy,omitempty" json:"dose_gy,omitempty"`
	VolumePerc    *float64 `yaml:"volume_perc,omitempty" json:"volume_perc,omitempty"`
}

// Limits holds limit and goal values; at most one representation of each is
// normally present.
type Limits struct {
	LimitDoseGy     *float64 `yaml:"limit_dose_gy,omitempty" json:"limit_dose_gy,omitempty"`
	GoalDoseGy      *float64 `yaml:"goal_dose_gy,omitempty" json:"goal_dose_gy,omitempty"`
	LimitDosePerc   *float64 `yaml:"limit_dose_perc,omitempty" json:"limit_dose_perc,omitempty"`
	GoalDosePerc    *float64 `yaml:"goal_dose_perc,omitempty" json:"goal_dose_perc,omitempty"`
	LimitVolumePerc *float64 `yaml:"limit_volume_perc,omitempty" json:"limit_volume_perc,omitempty"`
	GoalVolumePerc  *float64 `yaml:"goal_volume_perc,omitempty" json:"goal_volume_perc,omitempty"`
}

// OptimizationParams holds the objective functions of an optimization protocol.
type OptimizationParams struct {
	Objectives []Objective `yaml:"objective_functions" json:"objective_functions"`
}

// Objective is one declarative objective function.
type Objective struct {
	StructureName string  `yaml:"structure_name" json:"structure_name"`
	Type          string  `yaml:"type" json:"type"`
	Weight        float64 `yaml:"weight" json:"weight"`
	// DoseGy is a number or an expression over PrescriptionToken.
	DoseGy   any      `yaml:"dose_gy,omitempty" json:"dose_gy,omitempty"`
	DosePerc *float64 `yaml:"dose_perc,omitempty" json:"dose_perc,omitempty"`
}

// Prescription returns the total prescribed dose in Gy.
func (c *ClinicalCriteria) Prescription() float64 {
	return c.PrescriptionPerFractionGy * float64(c.NumFractions)
}

// Num resolves a protocol numeric value. Accepted forms are numbers, numeric
// strings, "prescription_gy", "k*prescription_gy" and "prescription_gy*k".
func (c *ClinicalCriteria) Num(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		return c.numExpr(val)
	default:
		return 0, fmt.Errorf("unsupported numeric value %v (%T)", v, v)
	}
}

func (c *ClinicalCriteria) numExpr(expr string) (float64, error) {
	s := strings.ReplaceAll(expr, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty numeric expression")
	}
	factor := 1.0
	for _, part := range strings.Split(s, "*") {
		if part == PrescriptionToken {
			factor *= c.Prescription()
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric expression %q", expr)
		}
		factor *= f
	}
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 0, fmt.Errorf("numeric expression %q is not finite", expr)
	}
	return factor, nil
}

// Structures returns the distinct structure names the criteria refer to, in
// first-seen order.
func (c *ClinicalCriteria) Structures() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cr := range c.Criteria {
		name := cr.Parameters.StructureName
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Package objective translates protocol objective functions into cost terms
// and constraints on a model.Problem.
//
// All supported types are linear: overdose and underdose penalties use one
// nonnegative slack variable per voxel; "quadratic" is a plain linear dose
// penalty. Targets are per fraction.
package objective

import (
	"fmt"
	"log/slog"

	"github.com/roach88/arcplan/internal/config"
	"github.com/roach88/arcplan/internal/dataset"
	"github.com/roach88/arcplan/internal/model"
	"github.com/roach88/arcplan/internal/protocol"
)

// Skip reasons.
const (
	ReasonMissingStructure = "structure not in case"
	ReasonEmptyStructure   = "structure has no optimization voxels"
	ReasonUnknownType      = "unsupported objective type"
)

// Applied records an objective that contributed to the problem.
type Applied struct {
	StructureName string  `json:"structure_name"`
	Type          string  `json:"type"`
	Weight        float64 `json:"weight"`
	TargetGy      float64 `json:"target_gy_per_fraction"`
	Voxels        int     `json:"voxels"`
}

// Skipped records an objective left out of the problem.
type Skipped struct {
	StructureName string `json:"structure_name"`
	Type          string `json:"type"`
	Reason        string `json:"reason"`
}

// Report summarizes one Build call.
type Report struct {
	Applied []Applied `json:"applied"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// Builder adds objectives for one case and protocol.
type Builder struct {
	Problem  *model.Problem
	Case     *dataset.Case
	Protocol *protocol.Protocol
	// X is the beamlet intensity block.
	X model.Block
	// Policy is applied to unsupported objective types.
	Policy string
}

// Build adds every objective in objs. Objectives on structures absent from
// the case are skipped before their type is looked at. Unsupported types
// follow b.Policy; an error is returned only for PolicyError or an
// unresolvable target dose.
func (b *Builder) Build(objs []protocol.Objective) (Report, error) {
	var rep Report
	for i, obj := range objs {
		st, ok := b.Case.Structures[obj.StructureName]
		if !ok {
			rep.Skipped = append(rep.Skipped, Skipped{StructureName: obj.StructureName, Type: obj.Type, Reason: ReasonMissingStructure})
			continue
		}
		if !supported(obj.Type) {
			skip := Skipped{StructureName: obj.StructureName, Type: obj.Type, Reason: ReasonUnknownType}
			switch b.Policy {
			case config.PolicyError:
				return rep, config.Errorf("objective_functions",
					"unsupported objective type %q for structure %s", obj.Type, obj.StructureName)
			case config.PolicyWarn:
				slog.Warn("skipping unsupported objective", "structure", obj.StructureName, "type", obj.Type)
			}
			rep.Skipped = append(rep.Skipped, skip)
			continue
		}

		n := len(st.OptVoxels)
		if n == 0 {
			rep.Skipped = append(rep.Skipped, Skipped{StructureName: obj.StructureName, Type: obj.Type, Reason: ReasonEmptyStructure})
			continue
		}

		target, err := b.target(obj)
		if err != nil {
			return rep, err
		}
		scale := obj.Weight / float64(n)

		switch obj.Type {
		case protocol.TypeQuadraticOverdose, protocol.TypeQuadraticUnderdose:
			b.addSlackPenalty(i, obj, st, target, scale)
		case protocol.TypeQuadratic:
			var cost model.LinExpr
			for _, v := range st.OptVoxels {
				cost.AddExpr(b.doseAt(v), scale)
			}
			b.Problem.AddCost(costName(obj), cost)
		}
		rep.Applied = append(rep.Applied, Applied{
			StructureName: obj.StructureName,
			Type:          obj.Type,
			Weight:        obj.Weight,
			TargetGy:      target,
			Voxels:        n,
		})
	}
	slog.Debug("objectives built", "applied", len(rep.Applied), "skipped", len(rep.Skipped))
	return rep, nil
}

func (b *Builder) addSlackPenalty(i int, obj protocol.Objective, st *dataset.Structure, target, scale float64) {
	n := len(st.OptVoxels)
	slack := b.Problem.AddVars(fmt.Sprintf("s%d_%s", i, st.Name), n, model.Continuous, 0, model.Inf)

	var cost model.LinExpr
	for k := 0; k < n; k++ {
		cost.Add(slack.At(k), scale)
	}
	b.Problem.AddCost(costName(obj), cost)

	name := fmt.Sprintf("%s_%s", st.Name, shortType(obj.Type))
	for k, v := range st.OptVoxels {
		dose := b.doseAt(v)
		if obj.Type == protocol.TypeQuadraticOverdose {
			// dose <= target + s
			dose.Add(slack.At(k), -1)
			b.Problem.AddConstraint(name, dose, model.LE, target)
		} else {
			// dose >= target - s
			dose.Add(slack.At(k), 1)
			b.Problem.AddConstraint(name, dose, model.GE, target)
		}
	}
}

// doseAt returns the per-fraction dose expression of one voxel.
func (b *Builder) doseAt(voxel int) model.LinExpr {
	cols, vals := b.Case.Influence.Row(voxel)
	e := model.LinExpr{Terms: make([]model.Term, 0, len(cols)+1)}
	for k, c := range cols {
		e.Add(b.X.At(c), vals[k])
	}
	return e
}

// target resolves the per-fraction target dose of obj.
func (b *Builder) target(obj protocol.Objective) (float64, error) {
	rx := b.Protocol.Prescription()
	total := rx
	switch {
	case obj.DoseGy != nil:
		v, err := b.Protocol.Num(obj.DoseGy)
		if err != nil {
			return 0, config.Errorf("objective_functions", "%s %s: dose_gy: %v", obj.StructureName, obj.Type, err)
		}
		total = v
	case obj.DosePerc != nil:
		total = *obj.DosePerc / 100 * rx
	}
	return total / float64(b.Protocol.NumFractions), nil
}

func supported(typ string) bool {
	switch typ {
	case protocol.TypeQuadraticOverdose, protocol.TypeQuadraticUnderdose, protocol.TypeQuadratic:
		return true
	}
	return false
}

func shortType(typ string) string {
	switch typ {
	case protocol.TypeQuadraticOverdose:
		return "overdose"
	case protocol.TypeQuadraticUnderdose:
		return "underdose"
	default:
		return "dose"
	}
}

func costName(obj protocol.Objective) string {
	return obj.StructureName + ":" + obj.Type
}

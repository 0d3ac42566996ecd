package leafseq

import "math"

// LeafPair is the solved boundary of one leaf pair.
type LeafPair struct {
	Leaf  int `json:"leaf"`
	Left  int `json:"left"`
	Right int `json:"right"`
	// Open lists the open grid columns.
	Open []int `json:"open"`
}

// BeamPlan is the solved delivery of one beam.
type BeamPlan struct {
	BeamID int        `json:"beam_id"`
	MU     float64    `json:"mu"`
	Leaves []LeafPair `json:"leaves"`
}

// Extract reads leaf positions and monitor units from a full solution
// vector. Integer and binary values are rounded.
func (v *Vars) Extract(solution []float64) []BeamPlan {
	plans := make([]BeamPlan, len(v.Beams))
	for b, info := range v.Beams {
		plans[b] = BeamPlan{BeamID: info.ID, MU: solution[v.MU.At(b)], Leaves: []LeafPair{}}
	}
	for r, row := range v.Rows {
		lp := LeafPair{
			Leaf:  row.Leaf,
			Left:  round(solution[v.Left.At(r)]),
			Right: round(solution[v.Right.At(r)]),
			Open:  []int{},
		}
		for k, idx := range row.Beamlets {
			if solution[v.Z.At(v.zIndex[idx])] > 0.5 {
				lp.Open = append(lp.Open, row.Cols[k])
			}
		}
		plans[row.Beam].Leaves = append(plans[row.Beam].Leaves, lp)
	}
	return plans
}

func round(f float64) int {
	return int(math.Round(f))
}

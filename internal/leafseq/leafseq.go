// Package leafseq adds MLC deliverability constraints to a model.Problem.
//
// For every beam, each beam's-eye-view row is one leaf pair with integer left
// and right boundaries. A binary aperture indicator per beamlet marks it open;
// open beamlets in a row must be contiguous and lie between the leaves, and
// every open beamlet of a beam carries exactly that beam's monitor units.
package leafseq

import (
	"fmt"

	"github.com/roach88/arcplan/internal/dataset"
	"github.com/roach88/arcplan/internal/model"
)

// Row is one leaf pair.
type Row struct {
	// Beam is the index into Vars.Beams.
	Beam int
	// Leaf is the BEV grid row.
	Leaf int
	// Beamlets are the beamlet indices in the row, with their grid columns.
	Beamlets []int
	Cols     []int
}

// BeamInfo locates one beam's variables.
type BeamInfo struct {
	ID       int
	NumCols  int
	FirstRow int
	NumRows  int
}

// Vars are the deliverability variables added to a problem.
type Vars struct {
	Left, Right model.Block
	Z           model.Block
	MU          model.Block
	Rows        []Row
	Beams       []BeamInfo
	// zIndex maps beamlet index to aperture indicator index.
	zIndex map[int]int
}

// Stats counts what Build added.
type Stats struct {
	Rows             int `json:"leaf_pairs"`
	Apertures        int `json:"aperture_indicators"`
	WidthConstraints int `json:"width_constraints"`
	Constraints      int `json:"constraints"`
}

// Build adds leaf boundary, aperture, and monitor unit variables for beams
// and links them to the intensity block x. Grid rows without a beamlet are
// dropped. u bounds per-beam monitor units.
func Build(p *model.Problem, x model.Block, beams []dataset.Beam, u float64) (*Vars, Stats, error) {
	if u <= 0 {
		return nil, Stats{}, fmt.Errorf("leafseq: monitor unit bound must be positive, got %v", u)
	}
	v := &Vars{zIndex: make(map[int]int)}
	var order []int
	for bi, beam := range beams {
		info := BeamInfo{ID: beam.ID, FirstRow: len(v.Rows)}
		for leaf, gridRow := range beam.BEV {
			info.NumCols = max(info.NumCols, len(gridRow))
			row := Row{Beam: bi, Leaf: leaf}
			for col, idx := range gridRow {
				if idx == dataset.NoBeamlet {
					continue
				}
				if idx < 0 || idx >= x.Len {
					return nil, Stats{}, fmt.Errorf("leafseq: beam %d: beamlet %d outside intensity vector of %d", beam.ID, idx, x.Len)
				}
				if _, dup := v.zIndex[idx]; dup {
					return nil, Stats{}, fmt.Errorf("leafseq: beamlet %d appears twice", idx)
				}
				v.zIndex[idx] = len(order)
				order = append(order, idx)
				row.Beamlets = append(row.Beamlets, idx)
				row.Cols = append(row.Cols, col)
			}
			if len(row.Beamlets) > 0 {
				v.Rows = append(v.Rows, row)
			}
		}
		info.NumRows = len(v.Rows) - info.FirstRow
		v.Beams = append(v.Beams, info)
	}

	nRows := len(v.Rows)
	v.Left = p.AddVars("lb", nRows, model.Integer, 0, model.Inf)
	v.Right = p.AddVars("rb", nRows, model.Integer, 0, model.Inf)
	v.Z = p.AddVars("z", len(order), model.Binary, 0, 1)
	v.MU = p.AddVars("mu", len(beams), model.Continuous, 0, model.Inf)

	before := p.NumConstraints()
	st := Stats{Rows: nRows, Apertures: len(order)}
	for r, row := range v.Rows {
		numCols := float64(v.Beams[row.Beam].NumCols)
		left, right := v.Left.At(r), v.Right.At(r)
		width := model.Expr(model.Term{Var: right, Coef: -1}, model.Term{Var: left, Coef: 1})
		for k, idx := range row.Beamlets {
			z := v.Z.At(v.zIndex[idx])
			c := float64(row.Cols[k])
			// right − (c+1)·z ≥ 1
			p.AddConstraint("leaf_right", model.Expr(
				model.Term{Var: right, Coef: 1},
				model.Term{Var: z, Coef: -(c + 1)},
			), model.GE, 1)
			// (numCols − c)·z + left ≤ numCols
			p.AddConstraint("leaf_left", model.Expr(
				model.Term{Var: z, Coef: numCols - c},
				model.Term{Var: left, Coef: 1},
			), model.LE, numCols)
			width.Add(z, 1)
		}
		// Σz − right + left = −1
		p.AddConstraint("aperture_width", width, model.EQ, -1)
		st.WidthConstraints++
	}
	for r, row := range v.Rows {
		p.AddConstraint("leaf_range", model.Expr(model.Term{Var: v.Right.At(r), Coef: 1}),
			model.LE, float64(v.Beams[row.Beam].NumCols))
	}

	for _, row := range v.Rows {
		mu := v.MU.At(row.Beam)
		for _, idx := range row.Beamlets {
			xi := x.At(idx)
			z := v.Z.At(v.zIndex[idx])
			// x ≤ U·z
			p.AddConstraint("closed_zero", model.Expr(
				model.Term{Var: xi, Coef: 1},
				model.Term{Var: z, Coef: -u},
			), model.LE, 0)
			// mu − U·(1 − z) ≤ x
			p.AddConstraint("open_floor", model.Expr(
				model.Term{Var: mu, Coef: 1},
				model.Term{Var: z, Coef: u},
				model.Term{Var: xi, Coef: -1},
			), model.LE, u)
			// x ≤ mu
			p.AddConstraint("open_cap", model.Expr(
				model.Term{Var: xi, Coef: 1},
				model.Term{Var: mu, Coef: -1},
			), model.LE, 0)
		}
	}
	for b := range beams {
		p.AddConstraint("mu_cap", model.Expr(model.Term{Var: v.MU.At(b), Coef: 1}), model.LE, u)
	}
	st.Constraints = p.NumConstraints() - before
	return v, st, nil
}

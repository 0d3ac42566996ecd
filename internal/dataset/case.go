// Package dataset provides the case data a plan is optimized on: the
// influence matrix mapping beamlet intensity to voxel dose, structure voxel
// sets, and per-beam beam's-eye-view grids.
package dataset

import (
	"context"
	"fmt"
	"slices"
)

// NoBeamlet marks a BEV grid cell without a beamlet.
const NoBeamlet = -1

// Request selects the data for one run.
type Request struct {
	PatientID     string
	BeamIDs       []int
	VoxelFactors  []int
	BeamletFactor int
}

// Source loads case data.
type Source interface {
	Load(ctx context.Context, req Request) (*Case, error)
}

// Structure is one contoured structure.
type Structure struct {
	Name string
	// OptVoxels are influence matrix rows used by objectives.
	OptVoxels []int
	// Mask selects the structure's voxels in the dose array.
	Mask     []bool
	VolumeCC float64
}

// Beam is one beam with its beam's-eye-view grid. Cells hold beamlet
// (influence matrix column) indices or NoBeamlet.
type Beam struct {
	ID  int
	BEV [][]int
}

// Case is the loaded data for one patient and beam set.
type Case struct {
	PatientID  string
	Influence  *CSR
	Structures map[string]*Structure
	// Order lists structure names as they appear in the bundle.
	Order []string
	Beams []Beam
}

// NumVoxels returns the length of the dose array.
func (c *Case) NumVoxels() int { return c.Influence.Rows }

// NumBeamlets returns the length of the intensity vector.
func (c *Case) NumBeamlets() int { return c.Influence.Cols }

// Has reports whether the case contains the named structure.
func (c *Case) Has(name string) bool {
	_, ok := c.Structures[name]
	return ok
}

// Structure returns the named structure.
func (c *Case) Structure(name string) (*Structure, error) {
	s, ok := c.Structures[name]
	if !ok {
		return nil, MissingStructure(name)
	}
	return s, nil
}

// BeamIDs returns the ids of the loaded beams in order.
func (c *Case) BeamIDs() []int {
	ids := make([]int, len(c.Beams))
	for i, b := range c.Beams {
		ids[i] = b.ID
	}
	return ids
}

// Dose returns the total dose influence·x·fractions.
func (c *Case) Dose(x []float64, fractions int) ([]float64, error) {
	d, err := c.Influence.MulVec(x)
	if err != nil {
		return nil, err
	}
	for i := range d {
		d[i] *= float64(fractions)
	}
	return d, nil
}

// Select returns a copy of c restricted to the given beams. Beamlet columns
// of dropped beams are removed and the remaining ones renumbered.
func (c *Case) Select(beamIDs []int) (*Case, error) {
	byID := make(map[int]Beam, len(c.Beams))
	for _, b := range c.Beams {
		byID[b.ID] = b
	}
	var (
		beams []Beam
		cols  []int
	)
	for _, id := range beamIDs {
		b, ok := byID[id]
		if !ok {
			return nil, &Error{Code: ErrCodeMissingBeam, Message: fmt.Sprintf("beam %d not in case bundle", id)}
		}
		beams = append(beams, b)
	}
	for _, b := range beams {
		for _, row := range b.BEV {
			for _, idx := range row {
				if idx != NoBeamlet {
					cols = append(cols, idx)
				}
			}
		}
	}
	slices.Sort(cols)
	cols = slices.Compact(cols)
	remap := make(map[int]int, len(cols))
	for i, col := range cols {
		remap[col] = i
	}

	out := &Case{
		PatientID:  c.PatientID,
		Influence:  c.Influence.SelectColumns(cols),
		Structures: c.Structures,
		Order:      c.Order,
	}
	for _, b := range beams {
		grid := make([][]int, len(b.BEV))
		for r, row := range b.BEV {
			grid[r] = make([]int, len(row))
			for k, idx := range row {
				if idx == NoBeamlet {
					grid[r][k] = NoBeamlet
				} else {
					grid[r][k] = remap[idx]
				}
			}
		}
		out.Beams = append(out.Beams, Beam{ID: b.ID, BEV: grid})
	}
	return out, nil
}

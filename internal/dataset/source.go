package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// BundleFile is the case bundle file name inside a patient directory.
const BundleFile = "case.json"

// Bundle is the on-disk case format. Bundles are stored pre-downsampled;
// the factors they were produced with are recorded so requests for other
// factors can be rejected.
type Bundle struct {
	PatientID               string            `json:"patient_id"`
	VoxelDownSampleFactors  []int             `json:"voxel_down_sample_factors,omitempty"`
	BeamletDownSampleFactor int               `json:"beamlet_down_sample_factor,omitempty"`
	Influence               *CSR              `json:"influence"`
	Structures              []BundleStructure `json:"structures"`
	Beams                   []BundleBeam      `json:"beams"`
}

// BundleStructure is one structure in a bundle.
type BundleStructure struct {
	Name      string  `json:"name"`
	VolumeCC  float64 `json:"volume_cc"`
	OptVoxels []int   `json:"opt_voxels"`
	// EvalVoxels defaults to OptVoxels.
	EvalVoxels []int `json:"eval_voxels,omitempty"`
}

// BundleBeam is one beam in a bundle.
type BundleBeam struct {
	ID  int     `json:"id"`
	BEV [][]int `json:"bev"`
}

// DirSource reads bundles from <Dir>/<patient_id>/case.json.
type DirSource struct {
	Dir string
}

// NewDirSource returns a Source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Load reads and validates the bundle for req.PatientID and restricts it to
// req.BeamIDs.
func (s *DirSource) Load(ctx context.Context, req Request) (*Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, req.PatientID, BundleFile)
	data, err := os.ReadFile(path)
	if err != nil {
		msg := fmt.Sprintf("read case bundle %s", path)
		if errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("case bundle %s not found", path)
		}
		return nil, &Error{Code: ErrCodeMissingCase, Message: msg, Err: err}
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &Error{Code: ErrCodeMissingCase, Message: fmt.Sprintf("decode case bundle %s", path), Err: err}
	}
	if err := checkFactors(&b, req); err != nil {
		return nil, err
	}
	c, err := b.Case()
	if err != nil {
		return nil, err
	}
	if len(req.BeamIDs) == 0 {
		return c, nil
	}
	selected, err := c.Select(req.BeamIDs)
	if err != nil {
		return nil, err
	}
	slog.Debug("case loaded",
		"patient_id", req.PatientID,
		"voxels", selected.NumVoxels(),
		"beamlets", selected.NumBeamlets(),
		"beams", len(selected.Beams),
	)
	return selected, nil
}

func checkFactors(b *Bundle, req Request) error {
	if len(b.VoxelDownSampleFactors) > 0 && len(req.VoxelFactors) > 0 &&
		!slices.Equal(b.VoxelDownSampleFactors, req.VoxelFactors) {
		return &Error{
			Code:    ErrCodeDimensionMismatch,
			Message: fmt.Sprintf("bundle voxel factors %v, requested %v", b.VoxelDownSampleFactors, req.VoxelFactors),
		}
	}
	if b.BeamletDownSampleFactor > 0 && req.BeamletFactor > 0 && b.BeamletDownSampleFactor != req.BeamletFactor {
		return &Error{
			Code:    ErrCodeDimensionMismatch,
			Message: fmt.Sprintf("bundle beamlet factor %d, requested %d", b.BeamletDownSampleFactor, req.BeamletFactor),
		}
	}
	return nil
}

// Case validates the bundle and converts it to a Case.
func (b *Bundle) Case() (*Case, error) {
	if b.Influence == nil {
		return nil, &Error{Code: ErrCodeMissingCase, Message: "bundle has no influence matrix"}
	}
	if err := b.Influence.Validate(); err != nil {
		return nil, err
	}
	n := b.Influence.Rows
	c := &Case{
		PatientID:  b.PatientID,
		Influence:  b.Influence,
		Structures: make(map[string]*Structure, len(b.Structures)),
	}
	for _, bs := range b.Structures {
		eval := bs.EvalVoxels
		if eval == nil {
			eval = bs.OptVoxels
		}
		mask := make([]bool, n)
		for _, v := range eval {
			if v < 0 || v >= n {
				return nil, &Error{Code: ErrCodeDimensionMismatch, Message: fmt.Sprintf("eval voxel %d out of range", v), Structure: bs.Name}
			}
			mask[v] = true
		}
		for _, v := range bs.OptVoxels {
			if v < 0 || v >= n {
				return nil, &Error{Code: ErrCodeDimensionMismatch, Message: fmt.Sprintf("opt voxel %d out of range", v), Structure: bs.Name}
			}
		}
		c.Structures[bs.Name] = &Structure{Name: bs.Name, OptVoxels: bs.OptVoxels, Mask: mask, VolumeCC: bs.VolumeCC}
		c.Order = append(c.Order, bs.Name)
	}
	for _, bb := range b.Beams {
		for _, row := range bb.BEV {
			for _, idx := range row {
				if idx != NoBeamlet && (idx < 0 || idx >= b.Influence.Cols) {
					return nil, &Error{Code: ErrCodeDimensionMismatch, Message: fmt.Sprintf("beam %d: beamlet %d out of range", bb.ID, idx)}
				}
			}
		}
		c.Beams = append(c.Beams, Beam{ID: bb.ID, BEV: bb.BEV})
	}
	return c, nil
}

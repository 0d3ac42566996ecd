// Package evaluate derives dose-volume statistics from a solved dose array:
// DVH curves, scalar dose metrics, and the clinical criteria table.
//
// Dose arrays are total plan dose in Gy. Structure masks select voxels of
// the dose array and must match its length.
package evaluate

import (
	"math"
	"sort"

	"github.com/roach88/arcplan/internal/dataset"
)

// ZeroDoseFloor is the histogram range used when a structure receives no
// dose at all.
const ZeroDoseFloor = 1e-6

// Curve is a cumulative DVH: VolumePerc[k] is the percentage of the
// structure receiving at least DoseGy[k].
type Curve struct {
	DoseGy     []float64 `json:"dose_gy"`
	VolumePerc []float64 `json:"volume_perc"`
}

// Masked returns the dose values selected by mask.
func Masked(dose []float64, mask []bool) ([]float64, error) {
	if len(mask) != len(dose) {
		return nil, dataset.DimensionMismatch("", len(dose), len(mask))
	}
	var out []float64
	for i, in := range mask {
		if in {
			out = append(out, dose[i])
		}
	}
	return out, nil
}

// DVH computes a cumulative DVH with bins points from 0 up to the maximum
// in-mask dose. An empty mask yields an all-zero curve.
func DVH(dose []float64, mask []bool, bins int) (Curve, error) {
	if bins <= 0 {
		bins = 100
	}
	vals, err := Masked(dose, mask)
	if err != nil {
		return Curve{}, err
	}
	top := 0.0
	for _, v := range vals {
		top = math.Max(top, v)
	}
	if top == 0 {
		top = ZeroDoseFloor
	}

	c := Curve{DoseGy: make([]float64, bins), VolumePerc: make([]float64, bins)}
	width := top / float64(bins)
	for k := range c.DoseGy {
		c.DoseGy[k] = float64(k) * width
	}
	if len(vals) == 0 {
		return c, nil
	}

	counts := make([]int, bins)
	for _, v := range vals {
		k := int(v / width)
		switch {
		case k < 0 || v < 0:
			k = 0
		case k >= bins:
			k = bins - 1
		}
		counts[k]++
	}
	n := float64(len(vals))
	cum := 0
	for k := bins - 1; k >= 0; k-- {
		cum += counts[k]
		c.VolumePerc[k] = 100 * float64(cum) / n
	}
	return c, nil
}

// Stats holds the sorted in-mask dose of one structure.
type Stats struct {
	desc []float64
	sum  float64
}

// NewStats selects and sorts the in-mask dose. An empty selection is a
// data access error.
func NewStats(name string, dose []float64, mask []bool) (*Stats, error) {
	vals, err := Masked(dose, mask)
	if err != nil {
		if de, ok := err.(*dataset.Error); ok {
			de.Structure = name
		}
		return nil, err
	}
	if len(vals) == 0 {
		return nil, &dataset.Error{Code: dataset.ErrCodeEmptyStructure, Message: "no voxels in dose grid", Structure: name}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	s := &Stats{desc: vals}
	for _, v := range vals {
		s.sum += v
	}
	return s, nil
}

// Mean returns the mean dose.
func (s *Stats) Mean() float64 { return s.sum / float64(len(s.desc)) }

// Max returns the maximum dose.
func (s *Stats) Max() float64 { return s.desc[0] }

// DoseAtVolume returns the dose covering volumePerc percent of the
// structure.
func (s *Stats) DoseAtVolume(volumePerc float64) float64 {
	n := len(s.desc)
	idx := int(math.Round(volumePerc / 100 * float64(n-1)))
	idx = max(0, min(idx, n-1))
	return s.desc[idx]
}

// DoseAtCC returns the dose covering cc cubic centimeters of a structure of
// totalCC.
func (s *Stats) DoseAtCC(cc, totalCC float64) (float64, bool) {
	if totalCC <= 0 {
		return 0, false
	}
	return s.DoseAtVolume(cc / totalCC * 100), true
}

// VolumeAtDose returns the percentage of the structure receiving at least
// doseGy.
func (s *Stats) VolumeAtDose(doseGy float64) float64 {
	// desc is sorted descending; count the prefix >= doseGy.
	k := sort.Search(len(s.desc), func(i int) bool { return s.desc[i] < doseGy })
	return 100 * float64(k) / float64(len(s.desc))
}

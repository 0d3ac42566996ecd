// Package config resolves the immutable configuration of one planning run.
//
// Resolution is a two-step process: a caller-supplied sparse override map is
// deep-merged onto the defaults (see Merge), then the merged document is
// validated against an embedded CUE schema and decoded into RunConfig.
// Unknown keys and ill-typed values are rejected here rather than surfacing
// later as solver or data-access failures.
package config

import (
	"encoding/json"
	"fmt"
)

// Unknown objective type policies.
const (
	PolicySkip  = "skip"
	PolicyWarn  = "warn"
	PolicyError = "error"
)

// Metric request types.
const (
	MetricD     = "D"
	MetricDmean = "Dmean"
	MetricDmax  = "Dmax"
	MetricDcc   = "Dcc"
)

// RunConfig is the resolved configuration of one run.
// It is treated as immutable once returned by Resolve.
type RunConfig struct {
	PatientID   string `json:"patient_id"`
	DataDir     string `json:"data_dir"`
	ProtocolDir string `json:"protocol_dir"`
	BeamIDs     []int  `json:"beam_ids"`

	// ProtocolGlobalOpt names the clinical criteria protocol.
	ProtocolGlobalOpt string `json:"protocol_global_opt"`
	// ProtocolVMAT names the optimization parameter protocol; empty falls
	// back to ProtocolGlobalOpt.
	ProtocolVMAT string `json:"protocol_vmat,omitempty"`

	VoxelDownSampleFactors  []int   `json:"voxel_down_sample_factors"`
	BeamletDownSampleFactor int     `json:"beamlet_down_sample_factor"`
	PerBeamMUUpperBound     float64 `json:"per_beam_mu_upper_bound"`

	// Solver names the primary. SolverParams holds native parameters keyed
	// by solver name; only the primary's entry is passed to it.
	Solver         string                    `json:"solver"`
	SolverVerbose  bool                      `json:"solver_verbose"`
	SolverParams   map[string]map[string]any `json:"solver_params"`
	FallbackSolver string                    `json:"fallback_solver"`

	ObjectiveOverrides     []ObjectiveOverride `json:"objective_overrides"`
	UnknownObjectivePolicy string              `json:"unknown_objective_policy"`

	Metrics       []MetricRequest `json:"metrics"`
	DVHStructures []string        `json:"dvh_structures"`
	DVHBins       int             `json:"dvh_bins"`
}

// ObjectiveOverride adjusts the weight or target of a protocol objective
// matched by (StructureName, Type).
type ObjectiveOverride struct {
	StructureName string   `json:"structure_name"`
	Type          string   `json:"type"`
	Weight        *float64 `json:"weight,omitempty"`
	// DoseGy is a number or a protocol expression such as "prescription_gy".
	DoseGy   any      `json:"dose_gy,omitempty"`
	DosePerc *float64 `json:"dose_perc,omitempty"`
}

// MetricRequest asks for one scalar dose metric on one structure.
type MetricRequest struct {
	Structure  string   `json:"structure"`
	Type       string   `json:"type"`
	VolumePerc *float64 `json:"volume_perc,omitempty"`
	VolumeCC   *float64 `json:"volume_cc,omitempty"`
}

// OptimizationProtocol returns the protocol used for objective functions.
func (c RunConfig) OptimizationProtocol() string {
	if c.ProtocolVMAT != "" {
		return c.ProtocolVMAT
	}
	return c.ProtocolGlobalOpt
}

// PrimaryParams returns the parameters configured for the primary solver,
// or nil when it has none.
func (c RunConfig) PrimaryParams() map[string]any {
	return c.SolverParams[c.Solver]
}

// Default returns the built-in configuration: a sparse seven-beam lung case
// with a bounded MIP solve.
func Default() RunConfig {
	beamIDs := make([]int, 0, 7)
	for id := 0; id < 72; id += 11 {
		beamIDs = append(beamIDs, id)
	}
	return RunConfig{
		PatientID:               "Lung_Patient_6",
		DataDir:                 "data/cases",
		ProtocolDir:             "data/protocols",
		BeamIDs:                 beamIDs,
		ProtocolGlobalOpt:       "Lung_2Gy_30Fx",
		ProtocolVMAT:            "Lung_2Gy_30Fx_vmat",
		VoxelDownSampleFactors:  []int{6, 6, 1},
		BeamletDownSampleFactor: 6,
		PerBeamMUUpperBound:     2.0,
		Solver:                  "MOSEK",
		SolverVerbose:           true,
		SolverParams: map[string]map[string]any{
			"MOSEK": {
				"MSK_DPAR_MIO_MAX_TIME":    300.0,
				"MSK_DPAR_MIO_TOL_REL_GAP": 0.05,
			},
		},
		FallbackSolver:         "HIGHS",
		ObjectiveOverrides:     []ObjectiveOverride{},
		UnknownObjectivePolicy: PolicySkip,
		Metrics:                defaultMetrics(),
		DVHStructures:          []string{"PTV", "ESOPHAGUS", "HEART", "CORD", "LUNG_R"},
		DVHBins:                100,
	}
}

func defaultMetrics() []MetricRequest {
	perc := func(v float64) *float64 { return &v }
	return []MetricRequest{
		{Structure: "PTV", Type: MetricD, VolumePerc: perc(95)},
		{Structure: "PTV", Type: MetricD, VolumePerc: perc(98)},
		{Structure: "PTV", Type: MetricD, VolumePerc: perc(2)},
		{Structure: "ESOPHAGUS", Type: MetricDmean},
		{Structure: "ESOPHAGUS", Type: MetricDmax},
		{Structure: "HEART", Type: MetricDmean},
		{Structure: "HEART", Type: MetricDmax},
		{Structure: "CORD", Type: MetricDmax},
		{Structure: "LUNG_L", Type: MetricDmean},
		{Structure: "LUNG_R", Type: MetricDmean},
		{Structure: "LUNGS_NOT_GTV", Type: MetricDmean},
	}
}

// DefaultMap returns Default() as a generic JSON document suitable for Merge.
func DefaultMap() map[string]any {
	m, err := ToMap(Default())
	if err != nil {
		// Default() is static; failing to encode it is a programming error.
		panic(fmt.Sprintf("config: encode defaults: %v", err))
	}
	return m
}

// ToMap converts a RunConfig into a generic JSON document.
func ToMap(cfg RunConfig) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

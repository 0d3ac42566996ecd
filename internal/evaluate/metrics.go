package evaluate

import (
	"log/slog"
	"strconv"

	"github.com/roach88/arcplan/internal/config"
	"github.com/roach88/arcplan/internal/dataset"
)

// Metrics maps structure → metric name → dose in Gy.
type Metrics map[string]map[string]float64

// MetricName returns the result key of a request, such as "D95", "Dmean",
// or "D2cc".
func MetricName(req config.MetricRequest) string {
	switch req.Type {
	case config.MetricD:
		if req.VolumePerc != nil {
			return "D" + fmtNum(*req.VolumePerc)
		}
	case config.MetricDcc:
		if req.VolumeCC != nil {
			return "D" + fmtNum(*req.VolumeCC) + "cc"
		}
	}
	return req.Type
}

// Evaluator computes statistics on one case and dose array. Per-structure
// statistics are computed once and reused.
type Evaluator struct {
	Case *dataset.Case
	Dose []float64

	stats map[string]*Stats
}

// New returns an evaluator for dose on c.
func New(c *dataset.Case, dose []float64) *Evaluator {
	return &Evaluator{Case: c, Dose: dose, stats: make(map[string]*Stats)}
}

// Stats returns the statistics of the named structure.
func (e *Evaluator) Stats(name string) (*Stats, error) {
	if s, ok := e.stats[name]; ok {
		return s, nil
	}
	st, err := e.Case.Structure(name)
	if err != nil {
		return nil, err
	}
	s, err := NewStats(name, e.Dose, st.Mask)
	if err != nil {
		return nil, err
	}
	e.stats[name] = s
	return s, nil
}

// DVHs computes curves for structs. Structures that cannot be evaluated are
// omitted and logged.
func (e *Evaluator) DVHs(structs []string, bins int) map[string]Curve {
	out := make(map[string]Curve, len(structs))
	for _, name := range structs {
		st, err := e.Case.Structure(name)
		if err == nil {
			var c Curve
			if c, err = DVH(e.Dose, st.Mask, bins); err == nil {
				out[name] = c
				continue
			}
		}
		slog.Warn("dvh omitted", "structure", name, "error", err)
	}
	return out
}

// Metrics computes the requested metrics. Requests that cannot be evaluated
// are omitted and logged.
func (e *Evaluator) Metrics(reqs []config.MetricRequest) Metrics {
	out := make(Metrics)
	for _, req := range reqs {
		v, err := e.metric(req)
		if err != nil {
			slog.Warn("metric omitted", "structure", req.Structure, "metric", MetricName(req), "error", err)
			continue
		}
		if out[req.Structure] == nil {
			out[req.Structure] = make(map[string]float64)
		}
		out[req.Structure][MetricName(req)] = v
	}
	return out
}

func (e *Evaluator) metric(req config.MetricRequest) (float64, error) {
	s, err := e.Stats(req.Structure)
	if err != nil {
		return 0, err
	}
	switch req.Type {
	case config.MetricDmean:
		return s.Mean(), nil
	case config.MetricDmax:
		return s.Max(), nil
	case config.MetricD:
		if req.VolumePerc == nil {
			return 0, config.Errorf("metrics", "D metric needs volume_perc")
		}
		return s.DoseAtVolume(*req.VolumePerc), nil
	case config.MetricDcc:
		if req.VolumeCC == nil {
			return 0, config.Errorf("metrics", "Dcc metric needs volume_cc")
		}
		st, _ := e.Case.Structure(req.Structure)
		v, ok := s.DoseAtCC(*req.VolumeCC, st.VolumeCC)
		if !ok {
			return 0, &dataset.Error{Code: dataset.ErrCodeEmptyStructure, Message: "structure volume unknown", Structure: req.Structure}
		}
		return v, nil
	}
	return 0, config.Errorf("metrics", "unknown metric type %q", req.Type)
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/arcplan/internal/config"
)

// Source provides protocol documents by name.
type Source interface {
	ClinicalCriteria(name string) (*ClinicalCriteria, error)
	OptimizationParams(name string) (*OptimizationParams, error)
}

// DirSource reads protocol documents from a directory.
type DirSource struct {
	Dir string
}

// NewDirSource returns a Source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

var extensions = []string{".yaml", ".yml", ".json"}

// ClinicalCriteria loads clinical_criteria_<name>.
func (s *DirSource) ClinicalCriteria(name string) (*ClinicalCriteria, error) {
	var cc ClinicalCriteria
	if err := s.load("clinical_criteria_"+name, &cc); err != nil {
		return nil, err
	}
	if cc.Name == "" {
		cc.Name = name
	}
	if cc.NumFractions <= 0 {
		return nil, config.Errorf("protocol_global_opt", "protocol %s: num_of_fractions must be positive", name)
	}
	return &cc, nil
}

// OptimizationParams loads optimization_params_<name>.
func (s *DirSource) OptimizationParams(name string) (*OptimizationParams, error) {
	var op OptimizationParams
	if err := s.load("optimization_params_"+name, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *DirSource) load(stem string, out any) error {
	for _, ext := range extensions {
		path := filepath.Join(s.Dir, stem+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return &config.Error{Message: fmt.Sprintf("read protocol file %s", path), Err: err}
		}
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
			return &config.Error{Message: fmt.Sprintf("parse protocol file %s", path), Err: err}
		}
		return nil
	}
	return &config.Error{Message: fmt.Sprintf("protocol file %s not found in %s", stem, s.Dir)}
}

// Protocol combines the clinical criteria of one protocol with the objective
// functions of another (the VMAT variant usually differs from the global one).
type Protocol struct {
	*ClinicalCriteria
	Objectives []Objective
}

// Load reads the criteria named criteria and the objectives named params.
// Smoothness objectives are disabled on load.
func Load(src Source, criteria, params string) (*Protocol, error) {
	cc, err := src.ClinicalCriteria(criteria)
	if err != nil {
		return nil, err
	}
	op, err := src.OptimizationParams(params)
	if err != nil {
		return nil, err
	}
	return &Protocol{ClinicalCriteria: cc, Objectives: DisableSmoothness(op.Objectives)}, nil
}

package solver

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// NewMOSEK returns the MOSEK command-line solver. An empty binary means
// "mosek" on PATH.
func NewMOSEK(binary string) *CommandSolver {
	if binary == "" {
		binary = "mosek"
	}
	return &CommandSolver{name: NameMOSEK, licensed: true, binary: binary, backend: mosekBackend{}}
}

type mosekBackend struct{}

func (mosekBackend) prepare(dir, lpPath string, req Request) ([]string, error) {
	var args []string
	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-d", k, formatParam(req.Params[k]))
	}
	if !req.Verbose {
		args = append(args, "-d", "MSK_IPAR_LOG", "0")
	}
	return append(args, filepath.Base(lpPath)), nil
}

// MOSEK writes the integer solution next to the input file.
func (mosekBackend) solutionPath(dir, lpPath string) string {
	return strings.TrimSuffix(lpPath, filepath.Ext(lpPath)) + ".int"
}

func (mosekBackend) parse(r io.Reader) (string, map[string]float64, error) {
	return parseMOSEK(r)
}

// parseMOSEK reads a MOSEK .int or .sol solution file.
func parseMOSEK(r io.Reader) (string, map[string]float64, error) {
	var (
		problemStatus, solutionStatus string
		inVars                        bool
		values                        = make(map[string]float64)
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "PROBLEM STATUS"):
			problemStatus = headerValue(line)
		case strings.HasPrefix(line, "SOLUTION STATUS"):
			solutionStatus = headerValue(line)
		case line == "VARIABLES":
			inVars = true
		case line == "CONSTRAINTS" || line == "CONES" || line == "SYMMETRIC MATRIX VARIABLES":
			inVars = false
		case inVars:
			fields := strings.Fields(line)
			if len(fields) < 4 || fields[0] == "INDEX" {
				continue
			}
			v, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return "", nil, fmt.Errorf("variable %s: %w", fields[1], err)
			}
			values[fields[1]] = v
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}
	if solutionStatus == "" {
		return "", nil, fmt.Errorf("missing SOLUTION STATUS")
	}
	return mosekStatus(problemStatus, solutionStatus), values, nil
}

func headerValue(line string) string {
	_, v, _ := strings.Cut(line, ":")
	return strings.TrimSpace(v)
}

func mosekStatus(problem, solution string) string {
	switch solution {
	case "OPTIMAL", "INTEGER_OPTIMAL":
		return StatusOptimal
	case "NEAR_OPTIMAL", "NEAR_INTEGER_OPTIMAL", "PRIMAL_FEASIBLE", "PRIMAL_AND_DUAL_FEASIBLE":
		return StatusOptimalInaccurate
	case "PRIMAL_INFEASIBLE_CER", "NEAR_PRIMAL_INFEASIBLE_CER":
		return StatusInfeasible
	case "DUAL_INFEASIBLE_CER", "NEAR_DUAL_INFEASIBLE_CER":
		return StatusUnbounded
	}
	switch problem {
	case "PRIMAL_INFEASIBLE":
		return StatusInfeasible
	case "DUAL_INFEASIBLE":
		return StatusUnbounded
	}
	if solution == "UNKNOWN" {
		return StatusTimeLimit
	}
	return StatusUnknown
}

func formatParam(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}

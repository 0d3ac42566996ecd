package solver

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Scratch files written for HiGHS.
const (
	highsOptionsFile  = "highs.opt"
	highsSolutionFile = "problem.sol"
)

// NewHiGHS returns the HiGHS command-line solver. An empty binary means
// "highs" on PATH.
func NewHiGHS(binary string) *CommandSolver {
	if binary == "" {
		binary = "highs"
	}
	return &CommandSolver{name: NameHiGHS, binary: binary, backend: highsBackend{}}
}

type highsBackend struct{}

func (highsBackend) prepare(dir, lpPath string, req Request) ([]string, error) {
	opts := map[string]string{
		"write_solution_style": "0",
	}
	if !req.Verbose {
		opts["output_flag"] = "false"
	}
	for k, v := range req.Params {
		opts[k] = formatHiGHSOption(v)
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, opts[k])
	}
	optPath := filepath.Join(dir, highsOptionsFile)
	if err := os.WriteFile(optPath, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write HiGHS options: %w", err)
	}
	return []string{
		"--model_file", lpPath,
		"--options_file", optPath,
		"--solution_file", filepath.Join(dir, highsSolutionFile),
	}, nil
}

func (highsBackend) solutionPath(dir, _ string) string {
	return filepath.Join(dir, highsSolutionFile)
}

func (highsBackend) parse(r io.Reader) (string, map[string]float64, error) {
	return parseHiGHS(r)
}

// parseHiGHS reads a HiGHS raw solution file (write_solution_style 0).
func parseHiGHS(r io.Reader) (string, map[string]float64, error) {
	var (
		modelStatus string
		feasible    bool
		values      = make(map[string]float64)
		section     string
		remaining   int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if remaining > 0 {
			remaining--
			if section != "primal" {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return "", nil, fmt.Errorf("malformed column line %q", line)
			}
			v, err := parseHiGHSNumber(fields[1])
			if err != nil {
				return "", nil, fmt.Errorf("column %s: %w", fields[0], err)
			}
			values[fields[0]] = v
			continue
		}
		switch {
		case line == "":
		case line == "Model status":
			section = "model"
		case section == "model" && modelStatus == "" && !strings.HasPrefix(line, "#"):
			modelStatus = line
		case strings.HasPrefix(line, "# Primal solution values"):
			section = "primal"
		case strings.HasPrefix(line, "# Dual solution values"):
			section = "dual"
		case section == "primal" && line == "Feasible":
			feasible = true
		case strings.HasPrefix(line, "# Columns"), strings.HasPrefix(line, "# Rows"):
			n, err := strconv.Atoi(strings.TrimSpace(line[strings.LastIndex(line, " ")+1:]))
			if err != nil {
				return "", nil, fmt.Errorf("malformed count line %q", line)
			}
			if strings.HasPrefix(line, "# Rows") && section == "primal" {
				section = "rows"
			}
			remaining = n
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}
	if modelStatus == "" {
		return "", nil, fmt.Errorf("missing model status")
	}
	return highsStatus(modelStatus, feasible), values, nil
}

func highsStatus(model string, feasible bool) string {
	switch model {
	case "Optimal":
		return StatusOptimal
	case "Infeasible":
		return StatusInfeasible
	case "Unbounded":
		return StatusUnbounded
	case "Primal infeasible or unbounded":
		return StatusInfeasible
	case "Time limit reached", "Iteration limit reached", "Solution limit reached":
		if feasible {
			return StatusOptimalInaccurate
		}
		return StatusTimeLimit
	}
	return StatusUnknown
}

func parseHiGHSNumber(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatHiGHSOption(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

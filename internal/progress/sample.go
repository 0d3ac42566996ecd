// Package progress captures solver output while a solve is in flight and
// turns recognizable lines into progress samples.
package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sample is one progress observation. Absent fields were not reported by
// the line it was parsed from.
type Sample struct {
	Iter           *int     `json:"iter,omitempty"`
	PCost          *float64 `json:"pcost,omitempty"`
	DCost          *float64 `json:"dcost,omitempty"`
	Gap            *float64 `json:"gap,omitempty"`
	PRes           *float64 `json:"pres,omitempty"`
	DRes           *float64 `json:"dres,omitempty"`
	RuntimeSeconds *float64 `json:"runtime_seconds,omitempty"`
	BestInt        *float64 `json:"best_int,omitempty"`
	BestBound      *float64 `json:"best_bound,omitempty"`
	// Source is the branch-and-bound row prefix, such as "H" or "T".
	Source string `json:"source,omitempty"`
	// TS is the observation time in Unix seconds.
	TS float64 `json:"ts"`
}

// Stamp sets the observation time.
func (s *Sample) Stamp(t time.Time) {
	s.TS = float64(t.UnixNano()) / 1e9
}

// Time returns the observation time.
func (s Sample) Time() time.Time {
	sec := int64(s.TS)
	return time.Unix(sec, int64((s.TS-float64(sec))*1e9)).UTC()
}

const num = `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`

var (
	// iter pcost dcost gap pres dres, optionally followed by more columns.
	ipmRow     = regexp.MustCompile(`^\s*(\d+)\s+(` + num + `)\s+(` + num + `)\s+(` + num + `)\s+(` + num + `)\s+(` + num + `)(?:\s|$)`)
	numToken   = regexp.MustCompile(`^` + num + `$`)
	runtimeRow = regexp.MustCompile(`^\s*Runtime:\s*(` + num + `)\s*s?\s*$`)
	// HiGHS MIP node rows: source letter, nodes, queue, leaves, explored%,
	// best bound, best solution, gap%, ..., time.
	nodeRow = regexp.MustCompile(`^\s*([A-Za-z])\s+(\d+)\s+(\d+)\s+(\d+)\s+(\S+)%\s+(\S+)\s+(\S+)\s+(\S+)(.*)$`)
)

// Classify parses a solver output line. Rules are tried in order: an
// interior-point iteration row, a leading integer followed by at least three
// numbers, a "Runtime:" marker, and a branch-and-bound node row.
func Classify(line string) (Sample, bool) {
	if m := ipmRow.FindStringSubmatch(line); m != nil {
		it, _ := strconv.Atoi(m[1])
		return Sample{
			Iter:  &it,
			PCost: parse(m[2]),
			DCost: parse(m[3]),
			Gap:   parse(m[4]),
			PRes:  parse(m[5]),
			DRes:  parse(m[6]),
		}, true
	}
	if s, ok := classifyGeneric(line); ok {
		return s, true
	}
	if m := runtimeRow.FindStringSubmatch(line); m != nil {
		return Sample{RuntimeSeconds: parse(m[1])}, true
	}
	if m := nodeRow.FindStringSubmatch(line); m != nil {
		return classifyNode(m)
	}
	return Sample{}, false
}

func classifyGeneric(line string) (Sample, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Sample{}, false
	}
	it, err := strconv.Atoi(fields[0])
	if err != nil {
		return Sample{}, false
	}
	var vals []*float64
	for _, f := range fields[1:] {
		if numToken.MatchString(f) {
			vals = append(vals, parse(f))
		}
	}
	if len(vals) < 3 {
		return Sample{}, false
	}
	s := Sample{Iter: &it, PCost: vals[0], DCost: vals[1], Gap: vals[2]}
	if len(vals) > 3 {
		s.PRes = vals[3]
	}
	if len(vals) > 4 {
		s.DRes = vals[4]
	}
	return s, true
}

func classifyNode(m []string) (Sample, bool) {
	nodes, err := strconv.Atoi(m[2])
	if err != nil {
		return Sample{}, false
	}
	s := Sample{
		Iter:      &nodes,
		Source:    m[1],
		BestBound: placeholder(m[6]),
		BestInt:   placeholder(m[7]),
	}
	if g := placeholder(strings.TrimSuffix(m[8], "%")); g != nil {
		v := *g / 100
		s.Gap = &v
	}
	if rest := strings.Fields(m[9]); len(rest) > 0 {
		last := rest[len(rest)-1]
		if strings.HasSuffix(last, "s") {
			s.RuntimeSeconds = placeholder(strings.TrimSuffix(last, "s"))
		}
	}
	return s, true
}

// placeholder parses a numeric column that may hold inf, -inf, Large, or NA.
// Placeholders yield nil.
func placeholder(tok string) *float64 {
	switch strings.ToLower(tok) {
	case "inf", "+inf", "-inf", "large", "na", "n/a", "--", "-":
		return nil
	}
	if !numToken.MatchString(tok) {
		return nil
	}
	return parse(tok)
}

func parse(tok string) *float64 {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil
	}
	return &v
}

var noise = []string{`"GET /`, `"POST /`, `"PUT /`, `"DELETE /`, `HTTP/1.1"`}

// IsNoise reports whether line is web access-log output interleaved with
// solver output.
func IsNoise(line string) bool {
	if strings.HasPrefix(line, "[GIN]") {
		return true
	}
	for _, n := range noise {
		if strings.Contains(line, n) {
			return true
		}
	}
	return false
}

package solver

// Tier labels.
const (
	TierPrimary  = "primary"
	TierStripped = "params_stripped"
	TierFallback = "fallback"
)

// Step describes one planned attempt.
type Step struct {
	Tier    string         `json:"tier"`
	Solver  string         `json:"solver"`
	Params  map[string]any `json:"params,omitempty"`
	Verbose bool           `json:"verbose"`
}

// Plan returns the ordered attempts for a solve:
//
//  1. the primary solver with params;
//  2. the primary again without params, if it is a licensed solver;
//  3. the fallback solver without params and with verbose output.
//
// The fallback step is planned even when fallback names the primary, since
// it is the only params-free retry an unlicensed primary gets. It is left
// out only when it would repeat the previous step exactly.
//
// A primary that is not in reg is still planned; its attempt fails and the
// fallback runs.
func Plan(reg Registry, primary string, params map[string]any, verbose bool, fallback string) []Step {
	steps := []Step{{Tier: TierPrimary, Solver: primary, Params: params, Verbose: verbose}}
	if s, ok := reg[primary]; ok && s.Licensed() {
		steps = append(steps, Step{Tier: TierStripped, Solver: primary, Verbose: verbose})
	}
	if fallback == "" {
		return steps
	}
	last := steps[len(steps)-1]
	if last.Solver == fallback && len(last.Params) == 0 && last.Verbose {
		return steps
	}
	return append(steps, Step{Tier: TierFallback, Solver: fallback, Verbose: true})
}

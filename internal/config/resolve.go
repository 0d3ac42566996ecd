package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Resolve merges override onto the defaults, validates the result and
// returns the typed configuration.
func Resolve(override map[string]any) (RunConfig, error) {
	return ResolveFrom(DefaultMap(), override)
}

// ResolveFrom is Resolve with an explicit base document.
func ResolveFrom(base, override map[string]any) (RunConfig, error) {
	merged := Merge(base, override)

	data, err := json.Marshal(merged)
	if err != nil {
		return RunConfig{}, &Error{Message: "encode merged config", Err: err}
	}
	if err := Validate(data); err != nil {
		return RunConfig{}, err
	}

	var cfg RunConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return RunConfig{}, &Error{Message: "decode config", Err: err}
	}
	return cfg, nil
}

// Validate checks a JSON config document against the embedded CUE schema.
// Definitions are closed, so unknown keys are reported as errors.
func Validate(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#RunConfig"))

	doc := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to a single configuration error
// pointing at the first offending path.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: "invalid config", Err: err}
	}

	first := errs[0]
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &Error{
		Field:   strings.Join(first.Path(), "."),
		Message: strings.Join(msgs, "; "),
	}
}

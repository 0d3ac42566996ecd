package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/arcplan/internal/config"
)

// ConfigFlags collect config overrides from a file and --set pairs.
type ConfigFlags struct {
	File string
	Set  []string
}

// overrides merges the file document with --set pairs, later pairs winning.
// Values are parsed as YAML scalars or flow collections, so
// --set beam_ids=[0,24,48] and --set solver_verbose=true work.
func (f *ConfigFlags) overrides() (map[string]any, error) {
	out := map[string]any{}
	if f.File != "" {
		doc, err := config.LoadOverrides(f.File)
		if err != nil {
			return nil, err
		}
		out = doc
	}
	for _, kv := range f.Set {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, config.Errorf(kv, "expected key=value")
		}
		doc, err := config.ParseOverrides([]byte(fmt.Sprintf("%s: %s", key, value)))
		if err != nil {
			return nil, err
		}
		out = config.Merge(out, doc)
	}
	return out, nil
}

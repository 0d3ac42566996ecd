package protocol

import (
	"strings"

	"github.com/roach88/arcplan/internal/config"
)

// Structure roles.
const (
	RoleTarget = "target"
	RoleOAR    = "oar"
)

// ApplyOverrides returns a copy of objs with caller overrides applied.
// An override matches objectives by (structure_name, type) and replaces only
// the fields it sets. Overrides that match nothing are ignored.
func ApplyOverrides(objs []Objective, overrides []config.ObjectiveOverride) []Objective {
	out := make([]Objective, len(objs))
	copy(out, objs)
	for _, ov := range overrides {
		for i := range out {
			if out[i].StructureName != ov.StructureName || out[i].Type != ov.Type {
				continue
			}
			if ov.Weight != nil {
				out[i].Weight = *ov.Weight
			}
			if ov.DoseGy != nil {
				out[i].DoseGy = ov.DoseGy
			}
			if ov.DosePerc != nil {
				v := *ov.DosePerc
				out[i].DosePerc = &v
			}
		}
	}
	return out
}

// DisableSmoothness zeroes the weight of smoothness objectives, which the
// linearized VMAT formulation does not use.
func DisableSmoothness(objs []Objective) []Objective {
	out := make([]Objective, len(objs))
	copy(out, objs)
	for i := range out {
		if out[i].Type == TypeSmoothness {
			out[i].Weight = 0
		}
	}
	return out
}

// SchemaEntry describes one editable objective for clients building an
// override form.
type SchemaEntry struct {
	StructureName  string   `json:"structure_name"`
	Type           string   `json:"type"`
	Weight         float64  `json:"weight"`
	Role           string   `json:"role"`
	EditableWeight bool     `json:"editable_weight"`
	EditableTarget bool     `json:"editable_target"`
	DoseGy         any      `json:"dose_gy,omitempty"`
	DosePerc       *float64 `json:"dose_perc,omitempty"`
}

// DefaultSchema describes the protocol objectives as editable entries.
// Targets are editable only when the objective carries a dose.
func DefaultSchema(objs []Objective) []SchemaEntry {
	schema := make([]SchemaEntry, 0, len(objs))
	for _, obj := range objs {
		entry := SchemaEntry{
			StructureName:  obj.StructureName,
			Type:           obj.Type,
			Weight:         obj.Weight,
			Role:           Role(obj.StructureName),
			EditableWeight: true,
		}
		if obj.DoseGy != nil {
			entry.DoseGy = obj.DoseGy
			entry.EditableTarget = true
		}
		if obj.DosePerc != nil {
			entry.DosePerc = obj.DosePerc
			entry.EditableTarget = true
		}
		schema = append(schema, entry)
	}
	return schema
}

// Role infers whether a structure is a target volume or an organ at risk.
func Role(structure string) string {
	upper := strings.ToUpper(structure)
	if strings.HasPrefix(upper, "PTV") || upper == "CTV" || upper == "GTV" {
		return RoleTarget
	}
	return RoleOAR
}

package evaluate

import (
	"fmt"

	"github.com/roach88/arcplan/internal/protocol"
)

// Row is one line of the clinical criteria table. PlanValue is nil when the
// criterion could not be evaluated.
type Row struct {
	Constraint    string   `json:"constraint"`
	StructureName string   `json:"structure_name"`
	Limit         *string  `json:"limit"`
	Goal          *string  `json:"goal"`
	PlanValue     *float64 `json:"plan_value"`
	// Unit is "Gy" or "%" and applies to PlanValue.
	Unit string `json:"unit"`
}

// ClinicalTable evaluates every criterion of cc. Dose limits expressed as a
// percentage of prescription are compared against plan values in percent.
func (e *Evaluator) ClinicalTable(cc *protocol.ClinicalCriteria) []Row {
	rx := cc.Prescription()
	rows := make([]Row, 0, len(cc.Criteria))
	for _, cr := range cc.Criteria {
		lim := cr.Constraints
		row := Row{Constraint: cr.Type, StructureName: cr.Parameters.StructureName, Unit: "Gy"}
		s, err := e.Stats(cr.Parameters.StructureName)

		switch cr.Type {
		case protocol.CriterionMaxDose, protocol.CriterionMeanDose, protocol.CriterionDoseVolumeD:
			perc := lim.LimitDosePerc != nil || lim.GoalDosePerc != nil
			row.Limit = doseLabel(lim.LimitDoseGy, lim.LimitDosePerc)
			row.Goal = doseLabel(lim.GoalDoseGy, lim.GoalDosePerc)
			if cr.Type == protocol.CriterionDoseVolumeD {
				if cr.Parameters.VolumePerc == nil {
					break
				}
				row.Constraint = fmt.Sprintf("D(%s%%)", fmtNum(*cr.Parameters.VolumePerc))
			}
			if perc {
				row.Unit = "%"
			}
			if err != nil {
				break
			}
			var v float64
			switch cr.Type {
			case protocol.CriterionMaxDose:
				v = s.Max()
			case protocol.CriterionMeanDose:
				v = s.Mean()
			default:
				v = s.DoseAtVolume(*cr.Parameters.VolumePerc)
			}
			if perc && rx > 0 {
				v = v * 100 / rx
			}
			row.PlanValue = &v

		case protocol.CriterionDoseVolumeV:
			row.Unit = "%"
			row.Limit = percLabel(lim.LimitVolumePerc)
			row.Goal = percLabel(lim.GoalVolumePerc)
			if cr.Parameters.DoseGy == nil {
				break
			}
			row.Constraint = fmt.Sprintf("V(%sGy)", fmtNum(*cr.Parameters.DoseGy))
			if err != nil {
				break
			}
			v := s.VolumeAtDose(*cr.Parameters.DoseGy)
			row.PlanValue = &v
		}
		rows = append(rows, row)
	}
	return rows
}

func doseLabel(gy, perc *float64) *string {
	if gy != nil {
		s := fmtNum(*gy) + "Gy"
		return &s
	}
	return percLabel(perc)
}

func percLabel(perc *float64) *string {
	if perc == nil {
		return nil
	}
	s := fmtNum(*perc) + "%"
	return &s
}

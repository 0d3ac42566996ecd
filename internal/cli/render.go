package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/roach88/arcplan/internal/evaluate"
	"github.com/roach88/arcplan/internal/progress"
	"github.com/roach88/arcplan/internal/protocol"
	"github.com/roach88/arcplan/internal/store"
)

func renderStatus(w io.Writer, id string, doc store.StatusDoc) {
	fmt.Fprintf(w, "%s  %s  %s\n", id, statusText(doc.Status), doc.Timestamp)
	if doc.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", badColor.Sprint("error:"), doc.Error)
	}
}

func renderRecord(w io.Writer, rec *store.RunRecord) {
	headerColor.Fprintf(w, "--- run %s ---\n", rec.ID)
	renderStatus(w, rec.ID, rec.Status)

	if t := rec.Trace; t != nil {
		labelColor.Fprintln(w, "\nSolver")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  solver\t%s\n", t.Solver)
		fmt.Fprintf(tw, "  status\t%s\n", t.Status)
		if t.Objective != nil {
			fmt.Fprintf(tw, "  objective\t%.6g\n", *t.Objective)
		}
		fmt.Fprintf(tw, "  seconds\t%.2f\n", t.SolveSeconds)
		if t.Warning != "" {
			fmt.Fprintf(tw, "  warning\t%s\n", warnColor.Sprint(t.Warning))
		}
		tw.Flush()
	}
	if p := rec.Plan; p != nil {
		labelColor.Fprintln(w, "\nPlan")
		fmt.Fprintf(w, "  %s, %d beams, %.4g Gy in %d fractions (%s)\n",
			p.PatientID, len(p.BeamIDs), p.PrescriptionGy, p.NumFractions, p.Protocol)
	}
	if len(rec.Metrics) > 0 {
		labelColor.Fprintln(w, "\nMetrics")
		renderMetrics(w, rec.Metrics)
	}
	if len(rec.Clinical) > 0 {
		labelColor.Fprintln(w, "\nClinical criteria")
		renderClinical(w, rec.Clinical)
	}
}

func renderMetrics(w io.Writer, m evaluate.Metrics) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range sortedKeys(m) {
		for _, name := range sortedKeys(m[s]) {
			fmt.Fprintf(tw, "  %s\t%s\t%.2f Gy\n", s, name, m[s][name])
		}
	}
	tw.Flush()
}

func renderClinical(w io.Writer, rows []evaluate.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  CONSTRAINT\tSTRUCTURE\tLIMIT\tGOAL\tPLAN")
	for _, r := range rows {
		plan := "-"
		if r.PlanValue != nil {
			plan = strconv.FormatFloat(*r.PlanValue, 'f', 2, 64)
			if r.Unit == "%" {
				plan += "%"
			} else {
				plan += "Gy"
			}
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", r.Constraint, r.StructureName, orDash(r.Limit), orDash(r.Goal), plan)
	}
	tw.Flush()
}

func renderSamples(w io.Writer, samples []progress.Sample) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tITER\tPCOST\tDCOST\tGAP\tBEST_INT\tBEST_BOUND\tRUNTIME")
	for _, s := range samples {
		renderSample(tw, s)
	}
	tw.Flush()
}

func renderSample(w io.Writer, s progress.Sample) {
	iter := "-"
	if s.Iter != nil {
		iter = strconv.Itoa(*s.Iter)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		s.Time().Format("15:04:05.000"), iter,
		num(s.PCost), num(s.DCost), num(s.Gap), num(s.BestInt), num(s.BestBound), num(s.RuntimeSeconds))
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderSchema(w io.Writer, schema []protocol.SchemaEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRUCTURE\tTYPE\tROLE\tWEIGHT\tTARGET")
	for _, e := range schema {
		target := "-"
		switch {
		case e.DoseGy != nil:
			target = fmt.Sprintf("%v Gy", e.DoseGy)
		case e.DosePerc != nil:
			target = strconv.FormatFloat(*e.DosePerc, 'g', -1, 64) + "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\n", e.StructureName, e.Type, e.Role, e.Weight, target)
	}
	tw.Flush()
}

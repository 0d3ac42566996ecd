package model

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const termsPerLine = 8

// WriteLP renders the problem in CPLEX LP format.
func (p *Problem) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	var obj LinExpr
	for _, c := range p.costs {
		obj.AddExpr(c.Expr, 1)
	}
	fmt.Fprintln(bw, "Minimize")
	p.writeRow(bw, "obj", obj.Normalize())
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Subject To")
	names := make(map[string]int, len(p.constraints))
	for _, c := range p.constraints {
		name := uniqueName(names, lpName(c.Name))
		p.writeRow(bw, name, c.Expr.Normalize())
		fmt.Fprintf(bw, " %s %s\n", c.Sense, formatNum(c.RHS))
	}

	fmt.Fprintln(bw, "Bounds")
	for _, b := range p.blocks {
		if b.Kind == Binary || (b.LB == 0 && b.UB == Inf) {
			continue
		}
		for i := 0; i < b.Len; i++ {
			name := p.VarName(Var(b.Start + i))
			switch {
			case math.IsInf(b.LB, -1) && b.UB == Inf:
				fmt.Fprintf(bw, " %s free\n", name)
			default:
				fmt.Fprintf(bw, " %s <= %s <= %s\n", formatNum(b.LB), name, formatNum(b.UB))
			}
		}
	}

	p.writeKind(bw, "General", Integer)
	p.writeKind(bw, "Binary", Binary)
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func (p *Problem) writeRow(w *bufio.Writer, name string, terms []Term) {
	fmt.Fprintf(w, " %s:", name)
	if len(terms) == 0 {
		// LP requires at least one term per row.
		if p.NumVars() > 0 {
			fmt.Fprintf(w, " 0 %s", p.VarName(0))
		}
		return
	}
	for i, t := range terms {
		if i > 0 && i%termsPerLine == 0 {
			fmt.Fprint(w, "\n  ")
		}
		sign := "+"
		coef := t.Coef
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		fmt.Fprintf(w, " %s %s %s", sign, formatNum(coef), p.VarName(t.Var))
	}
}

func (p *Problem) writeKind(w *bufio.Writer, section string, kind Kind) {
	var names []string
	for _, b := range p.blocks {
		if b.Kind != kind {
			continue
		}
		for i := 0; i < b.Len; i++ {
			names = append(names, p.VarName(Var(b.Start+i)))
		}
	}
	if len(names) == 0 {
		return
	}
	fmt.Fprintln(w, section)
	for i := 0; i < len(names); i += termsPerLine {
		end := min(i+termsPerLine, len(names))
		fmt.Fprintf(w, " %s\n", strings.Join(names[i:end], " "))
	}
}

func formatNum(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// lpName maps s onto the LP identifier alphabet.
func lpName(s string) string {
	var b strings.Builder
	for i, r := range s {
		ok := r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_' ||
			(i > 0 && (r >= '0' && r <= '9' || r == '.')))
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s.%d", name, n)
}

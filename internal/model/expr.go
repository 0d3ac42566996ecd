package model

import "sort"

// Term is coef·var.
type Term struct {
	Var  Var
	Coef float64
}

// LinExpr is Σ terms + Const.
type LinExpr struct {
	Terms []Term
	Const float64
}

// Expr returns an expression with the given terms.
func Expr(terms ...Term) LinExpr {
	return LinExpr{Terms: terms}
}

// Add appends coef·v and returns the expression for chaining.
func (e *LinExpr) Add(v Var, coef float64) *LinExpr {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// AddExpr appends scale·other.
func (e *LinExpr) AddExpr(other LinExpr, scale float64) *LinExpr {
	for _, t := range other.Terms {
		e.Terms = append(e.Terms, Term{Var: t.Var, Coef: t.Coef * scale})
	}
	e.Const += other.Const * scale
	return e
}

// Eval evaluates the expression at solution.
func (e LinExpr) Eval(solution []float64) float64 {
	sum := e.Const
	for _, t := range e.Terms {
		sum += t.Coef * solution[t.Var]
	}
	return sum
}

// Normalize returns the terms with duplicate variables merged, zero
// coefficients dropped, and variables in ascending order.
func (e LinExpr) Normalize() []Term {
	acc := make(map[Var]float64, len(e.Terms))
	for _, t := range e.Terms {
		acc[t.Var] += t.Coef
	}
	out := make([]Term, 0, len(acc))
	for v, c := range acc {
		if c != 0 {
			out = append(out, Term{Var: v, Coef: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Var < out[j].Var })
	return out
}

// Package model holds the mixed-integer linear problem assembled for one run.
//
// Builders append variable blocks, named cost terms, and named constraints to
// a Problem. The objective is the sum of all cost terms. A Problem is
// rendered once, in CPLEX LP format, for an external solver.
package model

import (
	"fmt"
	"math"
)

// Kind is a variable domain.
type Kind int

const (
	Continuous Kind = iota
	Integer
	Binary
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sense is a constraint relation.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Inf is the unbounded bound value.
var Inf = math.Inf(1)

// Var is the global index of one scalar variable.
type Var int

// Block is a contiguous, homogeneous range of variables.
type Block struct {
	Name  string
	Start int
	Len   int
	Kind  Kind
	LB    float64
	UB    float64
}

// At returns the i-th variable of the block.
func (b Block) At(i int) Var {
	if i < 0 || i >= b.Len {
		panic(fmt.Sprintf("model: index %d out of range for block %s[%d]", i, b.Name, b.Len))
	}
	return Var(b.Start + i)
}

// Cost is a named objective term.
type Cost struct {
	Name string
	Expr LinExpr
}

// Constraint is a named linear constraint Expr Sense RHS.
type Constraint struct {
	Name  string
	Expr  LinExpr
	Sense Sense
	RHS   float64
}

// Problem is a minimization problem over blocks of variables.
type Problem struct {
	blocks      []Block
	byName      map[string]int
	owner       []int
	costs       []Cost
	constraints []Constraint
}

// New returns an empty problem.
func New() *Problem {
	return &Problem{byName: make(map[string]int)}
}

// AddVars appends a block of n variables. Binary blocks always have bounds
// [0, 1]. Block names must be unique.
func (p *Problem) AddVars(name string, n int, kind Kind, lb, ub float64) Block {
	if _, dup := p.byName[name]; dup {
		panic(fmt.Sprintf("model: duplicate block %q", name))
	}
	if kind == Binary {
		lb, ub = 0, 1
	}
	b := Block{Name: name, Start: len(p.owner), Len: n, Kind: kind, LB: lb, UB: ub}
	p.byName[name] = len(p.blocks)
	p.blocks = append(p.blocks, b)
	for i := 0; i < n; i++ {
		p.owner = append(p.owner, len(p.blocks)-1)
	}
	return b
}

// AddCost appends a cost term. The constant part of expr is kept and
// reported through Objective.
func (p *Problem) AddCost(name string, expr LinExpr) {
	p.costs = append(p.costs, Cost{Name: name, Expr: expr})
}

// AddConstraint appends expr sense rhs. A constant part of expr is moved to
// the right-hand side.
func (p *Problem) AddConstraint(name string, expr LinExpr, sense Sense, rhs float64) {
	rhs -= expr.Const
	expr.Const = 0
	p.constraints = append(p.constraints, Constraint{Name: name, Expr: expr, Sense: sense, RHS: rhs})
}

// Block returns the named block.
func (p *Problem) Block(name string) (Block, bool) {
	i, ok := p.byName[name]
	if !ok {
		return Block{}, false
	}
	return p.blocks[i], true
}

// Blocks returns all blocks in creation order.
func (p *Problem) Blocks() []Block { return p.blocks }

// Costs returns all cost terms.
func (p *Problem) Costs() []Cost { return p.costs }

// Constraints returns all constraints.
func (p *Problem) Constraints() []Constraint { return p.constraints }

// NumVars returns the total number of scalar variables.
func (p *Problem) NumVars() int { return len(p.owner) }

// NumConstraints returns the number of constraints.
func (p *Problem) NumConstraints() int { return len(p.constraints) }

// NumIntegers returns the number of integer and binary variables.
func (p *Problem) NumIntegers() int {
	n := 0
	for _, b := range p.blocks {
		if b.Kind != Continuous {
			n += b.Len
		}
	}
	return n
}

// VarName returns the LP name of v.
func (p *Problem) VarName(v Var) string {
	b := p.blocks[p.owner[int(v)]]
	return fmt.Sprintf("%s_%d", lpName(b.Name), int(v)-b.Start)
}

// Values returns the part of a full solution vector belonging to b.
func (p *Problem) Values(b Block, solution []float64) []float64 {
	out := make([]float64, b.Len)
	copy(out, solution[b.Start:b.Start+b.Len])
	return out
}

// Objective evaluates the objective at solution.
func (p *Problem) Objective(solution []float64) float64 {
	var sum float64
	for _, c := range p.costs {
		sum += c.Expr.Eval(solution)
	}
	return sum
}

// CostValues evaluates each cost term at solution, summing terms that share
// a name.
func (p *Problem) CostValues(solution []float64) map[string]float64 {
	out := make(map[string]float64, len(p.costs))
	for _, c := range p.costs {
		out[c.Name] += c.Expr.Eval(solution)
	}
	return out
}

// Package generator builds arithmetic problems with the game's default ranges.
package generator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/verte-zerg/zetatrack/internal/model"
)

// Range is an inclusive operand range.
type Range struct {
	Min, Max int
}

func (r Range) pick(rnd *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rnd.Intn(r.Max-r.Min+1)
}

// Ranges configures operand ranges. Subtraction and division reuse the addition and
// multiplication ranges in reverse.
type Ranges struct {
	AddLeft, AddRight Range
	MulLeft, MulRight Range
}

// DefaultRanges matches the game's default settings.
var DefaultRanges = Ranges{
	AddLeft:  Range{2, 100},
	AddRight: Range{2, 100},
	MulLeft:  Range{2, 12},
	MulRight: Range{2, 100},
}

var symbols = map[model.OperationType]string{
	model.OpAddition:       "+",
	model.OpSubtraction:    "-",
	model.OpMultiplication: "×",
	model.OpDivision:       "÷",
}

// Problem is a generated expression and its answer.
type Problem struct {
	Left, Right int
	Op          model.OperationType
	Answer      int
}

// Question renders the expression the way the game page shows it, without the trailing "=".
func (p Problem) Question() string {
	return fmt.Sprintf("%d %s %d", p.Left, symbols[p.Op], p.Right)
}

// Generator produces randomized problems.
type Generator struct {
	rnd    *rand.Rand
	ranges Ranges
	ops    []model.OperationType
}

// New returns a Generator seeded with the current time over every operation.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano(), DefaultRanges)
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64, ranges Ranges, ops ...model.OperationType) *Generator {
	if len(ops) == 0 {
		ops = model.Operations
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), ranges: ranges, ops: ops}
}

// Next picks an operation uniformly and builds a problem for it.
func (g *Generator) Next() Problem {
	return g.build(g.ops[g.rnd.Intn(len(g.ops))])
}

// Generate returns count problems.
func (g *Generator) Generate(count int) []Problem {
	result := make([]Problem, 0, count)
	for i := 0; i < count; i++ {
		result = append(result, g.Next())
	}
	return result
}

// GenerateWeighted biases operation choice toward weak operations: each weak operation
// weighs 1+factor against 1 for the rest.
func (g *Generator) GenerateWeighted(count int, weak map[model.OperationType]struct{}, factor float64) []Problem {
	weights := make([]float64, len(g.ops))
	total := 0.0
	for i, op := range g.ops {
		w := 1.0
		if _, ok := weak[op]; ok {
			w += factor
		}
		weights[i] = w
		total += w
	}

	result := make([]Problem, 0, count)
	for i := 0; i < count; i++ {
		r := g.rnd.Float64() * total
		idx := len(weights) - 1
		acc := 0.0
		for j, w := range weights {
			acc += w
			if r < acc {
				idx = j
				break
			}
		}
		result = append(result, g.build(g.ops[idx]))
	}
	return result
}

func (g *Generator) build(op model.OperationType) Problem {
	switch op {
	case model.OpSubtraction:
		a, b := g.ranges.AddLeft.pick(g.rnd), g.ranges.AddRight.pick(g.rnd)
		return Problem{Left: a + b, Right: b, Op: op, Answer: a}
	case model.OpMultiplication:
		a, b := g.ranges.MulLeft.pick(g.rnd), g.ranges.MulRight.pick(g.rnd)
		return Problem{Left: a, Right: b, Op: op, Answer: a * b}
	case model.OpDivision:
		a, b := g.ranges.MulLeft.pick(g.rnd), g.ranges.MulRight.pick(g.rnd)
		return Problem{Left: a * b, Right: a, Op: op, Answer: b}
	default:
		a, b := g.ranges.AddLeft.pick(g.rnd), g.ranges.AddRight.pick(g.rnd)
		return Problem{Left: a, Right: b, Op: model.OpAddition, Answer: a + b}
	}
}

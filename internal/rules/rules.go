// Package rules evaluates the boolean and numeric expressions that tariff
// tables and products use to describe majorations and refusals, e.g.
//
//	assureurDefaillant && nombreSinistres > 0
//	territoire IN ('Mayotte', 'Guyane')
//
// Expressions are compiled once when their table or product is loaded so
// that syntax errors surface at load time rather than during a calculation.
package rules

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// Expression is a compiled, named rule expression. It is safe for concurrent use.
type Expression struct {
	name   string
	source string
	expr   *govaluate.EvaluableExpression
}

// Compile parses source. Empty sources are rejected.
func Compile(name, source string) (*Expression, error) {
	if source == "" {
		return nil, fmt.Errorf("rule %s: empty expression", name)
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(source, functions)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", name, err)
	}
	return &Expression{name: name, source: source, expr: expr}, nil
}

// CompileKnown compiles source and rejects references to variables outside known.
func CompileKnown(name, source string, known map[string]interface{}) (*Expression, error) {
	e, err := Compile(name, source)
	if err != nil {
		return nil, err
	}
	var unknown []string
	for _, v := range e.Vars() {
		if _, ok := known[v]; !ok {
			unknown = append(unknown, v)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("rule %s: unknown variables %v", name, unknown)
	}
	return e, nil
}

func (e *Expression) Name() string   { return e.name }
func (e *Expression) String() string { return e.source }

// Vars lists the distinct variables the expression reads, sorted.
func (e *Expression) Vars() []string {
	seen := make(map[string]struct{})
	for _, v := range e.expr.Vars() {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Bool evaluates the expression and requires a boolean outcome.
func (e *Expression) Bool(vars map[string]interface{}) (bool, error) {
	result, err := e.expr.Evaluate(vars)
	if err != nil {
		return false, fmt.Errorf("rule %s: %w", e.name, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("rule %s: expected a boolean, got %T", e.name, result)
	}
	return b, nil
}

// Number evaluates the expression and requires a numeric outcome.
func (e *Expression) Number(vars map[string]interface{}) (decimal.Decimal, error) {
	result, err := e.expr.Evaluate(vars)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rule %s: %w", e.name, err)
	}
	f, ok := result.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("rule %s: expected a number, got %T", e.name, result)
	}
	return decimal.NewFromFloat(f), nil
}

var functions = map[string]govaluate.ExpressionFunction{
	"max": func(args ...interface{}) (interface{}, error) {
		return fold("max", args, func(a, b float64) bool { return b > a })
	},
	"min": func(args ...interface{}) (interface{}, error) {
		return fold("min", args, func(a, b float64) bool { return b < a })
	},
}

func fold(name string, args []interface{}, better func(a, b float64) bool) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expects at least one argument", name)
	}
	var best float64
	for i, arg := range args {
		f, ok := arg.(float64)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is not a number", name, i+1)
		}
		if i == 0 || better(best, f) {
			best = f
		}
	}
	return best, nil
}

// Rule is a hard stop: when its condition holds, the quote is refused with Reason.
type Rule struct {
	Name   string
	Reason string
	When   *Expression
}

// CompileRule compiles a refusal rule against the known variables.
func CompileRule(name, when, reason string, known map[string]interface{}) (*Rule, error) {
	if reason == "" {
		return nil, fmt.Errorf("rule %s: missing reason", name)
	}
	expr, err := CompileKnown(name, when, known)
	if err != nil {
		return nil, err
	}
	return &Rule{Name: name, Reason: reason, When: expr}, nil
}

// Matches reports whether the rule refuses the given variables.
func (r *Rule) Matches(vars map[string]interface{}) (bool, error) {
	return r.When.Bool(vars)
}

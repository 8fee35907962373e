// Package alerts decides which ingredients need restocking.
//
// The decision is a CEL expression so that kitchens can tune it without a
// release, e.g. `stock <= threshold || (category == "dairy" && stock <= threshold * 2.0)`.
package alerts

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultExpression flags ingredients at or below the threshold.
const DefaultExpression = "stock <= threshold"

// Input are the variables visible to the expression.
type Input struct {
	IngredientID string
	Stock        float64
	Threshold    float64
	Category     string
	Unit         string
}

// Rule is a compiled low-stock expression. Safe for concurrent use.
type Rule struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr. The expression must evaluate to bool.
func Compile(expr string) (*Rule, error) {
	if expr == "" {
		expr = DefaultExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("ingredient", cel.StringType),
		cel.Variable("stock", cel.DoubleType),
		cel.Variable("threshold", cel.DoubleType),
		cel.Variable("category", cel.StringType),
		cel.Variable("unit", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program %q: %w", expr, err)
	}

	return &Rule{expr: expr, program: program}, nil
}

// MustCompile is Compile that panics. Use only for constants and tests.
func MustCompile(expr string) *Rule {
	r, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Expression returns the source text.
func (r *Rule) Expression() string {
	return r.expr
}

// Match evaluates the rule for one ingredient.
func (r *Rule) Match(in Input) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"ingredient": in.IngredientID,
		"stock":      in.Stock,
		"threshold":  in.Threshold,
		"category":   in.Category,
		"unit":       in.Unit,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", r.expr, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: non-bool result %T", r.expr, out.Value())
	}
	return matched, nil
}

package router

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/plugin/extract/event"
)

// DefaultAcceptPolicy accepts an event once it is confident and has the
// required fields.
const DefaultAcceptPolicy = "confidence >= threshold && has_title && has_start"

// AcceptPolicy decides whether a stage's event is final. The expression sees
// confidence, threshold, has_title, has_start and has_location.
type AcceptPolicy struct {
	expr      string
	threshold float64
	program   cel.Program
}

// NewAcceptPolicy compiles expr. An expression that does not compile or does
// not evaluate to a bool is a PATTERN_COMPILE_FAILURE.
func NewAcceptPolicy(expr string, threshold float64) (*AcceptPolicy, error) {
	if expr == "" {
		expr = DefaultAcceptPolicy
	}
	env, err := cel.NewEnv(
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("threshold", cel.DoubleType),
		cel.Variable("has_title", cel.BoolType),
		cel.Variable("has_start", cel.BoolType),
		cel.Variable("has_location", cel.BoolType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create policy environment")
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, exerrors.PatternCompileFailure("accept_policy", iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, exerrors.PatternCompileFailure("accept_policy",
			errors.Errorf("expression must be a bool, got %s", ast.OutputType()))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, exerrors.PatternCompileFailure("accept_policy", err)
	}
	return &AcceptPolicy{expr: expr, threshold: threshold, program: prg}, nil
}

// String returns the source expression.
func (p *AcceptPolicy) String() string { return p.expr }

// Accept evaluates the policy against ev.
func (p *AcceptPolicy) Accept(ev *event.ParsedEvent) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"confidence":   ev.Confidence,
		"threshold":    p.threshold,
		"has_title":    ev.HasTitle(),
		"has_start":    ev.HasStart(),
		"has_location": ev.HasLocation(),
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to evaluate accept policy")
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.Errorf("accept policy returned %T", out.Value())
	}
	return ok, nil
}

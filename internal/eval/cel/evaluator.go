package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"
)

// Evaluator evaluates CEL conditions against template data
type Evaluator struct {
	env    *cel.Env
	cache  map[string]cel.Program
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewEvaluator creates a new CEL evaluator with the variables this and root
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}

	env, err := cel.NewEnv(
		cel.Variable("this", cel.DynType),
		cel.Variable("root", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}

	return &Evaluator{
		env:    env,
		cache:  make(map[string]cel.Program),
		logger: logger,
	}
}

// Evaluate evaluates a CEL expression with the given variables. The result
// is a plain Go value (bool, int64, uint64, float64, string, ...).
func (e *Evaluator) Evaluate(ctx context.Context, expression string, vars map[string]interface{}) (interface{}, error) {
	program, err := e.getProgram(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	out, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	e.logger.Debug("evaluated expression",
		zap.String("expression", expression),
		zap.String("type", out.Type().TypeName()),
	)
	return out.Value(), nil
}

// EvaluateBool evaluates an expression that must yield a boolean
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, vars map[string]interface{}) (bool, error) {
	result, err := e.Evaluate(ctx, expression, vars)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", expression, result)
	}
	return b, nil
}

// getProgram gets a compiled program from cache or compiles it
func (e *Evaluator) getProgram(expression string) (cel.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}

	e.cache[expression] = program
	return program, nil
}

// ValidateExpression checks that an expression compiles and can yield a
// boolean
func (e *Evaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}

	switch t := ast.OutputType().String(); t {
	case "bool", "dyn":
		return nil
	default:
		return fmt.Errorf("expression %q has type %s, want bool", expression, t)
	}
}

// ClearCache clears the compiled program cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

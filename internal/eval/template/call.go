package template

import (
	"fmt"

	"github.com/aescanero/dago-template/internal/value"
)

// Helper is a named callable invoked for {{name ...}} and {{#name ...}}
// nodes. Output goes through rc.Write. Implementations must be safe for
// concurrent use; per-call state belongs in the RenderContext.
type Helper interface {
	Call(call *Call, rc *RenderContext) error
}

// HelperFunc adapts a function to Helper
type HelperFunc func(call *Call, rc *RenderContext) error

// Call implements Helper
func (f HelperFunc) Call(call *Call, rc *RenderContext) error { return f(call, rc) }

// ValueHelper is implemented by helpers that compute a value. Such helpers
// can feed subexpressions directly and act as conditions in block position.
type ValueHelper interface {
	Helper
	Value(call *Call, rc *RenderContext) (value.Value, error)
}

// ValueFunc adapts a value-computing function to ValueHelper
type ValueFunc func(call *Call) (value.Value, error)

// Value implements ValueHelper
func (f ValueFunc) Value(call *Call, _ *RenderContext) (value.Value, error) { return f(call) }

// Call implements Helper. Inline, the value is written escaped unless the
// mustache was triple-stashed; as a block, a truthy value renders the body.
func (f ValueFunc) Call(call *Call, rc *RenderContext) error {
	v, err := f(call)
	if err != nil {
		return err
	}
	if call.Block() {
		if v.Truthy() {
			return call.Body().Render(rc)
		}
		return call.Inverse().Render(rc)
	}
	if call.Escaped() {
		return rc.Write(rc.Escape(v.Render()))
	}
	return rc.Write(v.Render())
}

// Decorator is a named callable invoked for {{*name ...}} nodes. Its only
// sanctioned effect is registering local helpers or partials on rc.
type Decorator interface {
	Decorate(call *Call, rc *RenderContext) error
}

// DecoratorFunc adapts a function to Decorator
type DecoratorFunc func(call *Call, rc *RenderContext) error

// Decorate implements Decorator
func (f DecoratorFunc) Decorate(call *Call, rc *RenderContext) error { return f(call, rc) }

// Param is a resolved helper argument and the expression it came from
type Param struct {
	Value value.Value
	Path  string
}

// Call describes one helper or decorator invocation. Params are resolved
// against the data scope that was current when the node was reached.
type Call struct {
	Name   string
	Params []Param
	Hash   map[string]Param
	Line   int

	block   bool
	escaped bool
	body    *Block
	inverse *Block
}

// Block reports whether the helper was invoked in block position
func (c *Call) Block() bool { return c.block }

// Escaped reports whether inline output is expected to be HTML-escaped
func (c *Call) Escaped() bool { return c.escaped }

// Body returns the block body evaluator. It is never nil; an absent body
// renders nothing.
func (c *Call) Body() *Block { return c.body }

// Inverse returns the {{else}} evaluator. It is never nil.
func (c *Call) Inverse() *Block { return c.inverse }

// Param returns the i-th positional param
func (c *Call) Param(i int) (Param, bool) {
	if i < 0 || i >= len(c.Params) {
		return Param{}, false
	}
	return c.Params[i], true
}

// Value returns the i-th positional value, Null when absent
func (c *Call) Value(i int) value.Value {
	p, _ := c.Param(i)
	return p.Value
}

// RequiredParam returns the i-th positional param or a ParamMissing error
func (c *Call) RequiredParam(i int) (Param, error) {
	p, ok := c.Param(i)
	if !ok {
		return Param{}, &RenderError{
			Kind:   ParamMissing,
			Name:   c.Name,
			Line:   c.Line,
			Reason: fmt.Sprintf("param %d is required", i),
		}
	}
	return p, nil
}

// Number returns the i-th param as a number
func (c *Call) Number(i int) (float64, error) {
	p, err := c.RequiredParam(i)
	if err != nil {
		return 0, err
	}
	n, ok := p.Value.AsNumber()
	if !ok {
		return 0, c.mismatch(i, "number", p)
	}
	return n, nil
}

// Text returns the i-th param as a string
func (c *Call) Text(i int) (string, error) {
	p, err := c.RequiredParam(i)
	if err != nil {
		return "", err
	}
	s, ok := p.Value.AsString()
	if !ok {
		return "", c.mismatch(i, "string", p)
	}
	return s, nil
}

// Array returns the i-th param, which must be an array
func (c *Call) Array(i int) (value.Value, error) {
	p, err := c.RequiredParam(i)
	if err != nil {
		return value.Null(), err
	}
	if p.Value.Kind() != value.KindArray {
		return value.Null(), c.mismatch(i, "array", p)
	}
	return p.Value, nil
}

// HashValue returns the named param, Null when absent
func (c *Call) HashValue(key string) value.Value {
	return c.Hash[key].Value
}

func (c *Call) mismatch(i int, want string, p Param) error {
	return &RenderError{
		Kind:   TypeMismatch,
		Name:   c.Name,
		Line:   c.Line,
		Reason: fmt.Sprintf("param %d (%s) must be %s, got %s", i, p.Path, want, p.Value.Kind()),
	}
}

// Block is a re-enterable evaluator for a helper's body or inverse. Each
// evaluation opens a fresh local-override frame that closes when it returns.
type Block struct {
	program *Program
}

// Empty reports whether the block has no nodes
func (b *Block) Empty() bool {
	return b == nil || b.program == nil || len(b.program.Nodes) == 0
}

// Render evaluates the block against the current scope
func (b *Block) Render(rc *RenderContext) error {
	if b == nil || b.program == nil {
		return nil
	}
	return rc.evalProgram(b.program)
}

// RenderWith evaluates the block with v pushed as the current scope and
// data as its @-variables.
func (b *Block) RenderWith(rc *RenderContext, v value.Value, data map[string]value.Value) error {
	rc.PushScopeWithData(v, data)
	defer rc.PopScope()
	return b.Render(rc)
}

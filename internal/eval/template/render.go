package template

import (
	"fmt"

	"github.com/aescanero/dago-template/internal/value"
	"go.uber.org/zap"
)

// evalProgram evaluates nodes in document order inside a fresh local
// override frame. The frame is dropped when evaluation returns, so helpers
// installed by decorators never outlive the block that ran them.
func (rc *RenderContext) evalProgram(prog *Program) error {
	mark := len(rc.frames)
	rc.frames = append(rc.frames, frame{})
	defer func() { rc.frames = rc.frames[:mark] }()

	for _, node := range prog.Nodes {
		if err := rc.evalNode(node); err != nil {
			return err
		}
	}
	return nil
}

func (rc *RenderContext) evalNode(node Node) error {
	switch n := node.(type) {
	case *TextNode:
		return rc.Write(n.Text)
	case *ExpressionNode:
		return rc.evalExpression(n)
	case *HelperNode:
		return rc.evalHelper(n)
	case *DecoratorNode:
		return rc.evalDecorator(n)
	case *PartialNode:
		return rc.evalPartial(n)
	default:
		return &RenderError{Kind: HelperFailed, Template: rc.template, Line: node.Line(), Reason: fmt.Sprintf("unknown node %T", node)}
	}
}

func (rc *RenderContext) evalExpression(n *ExpressionNode) error {
	if n.Path.IsSimple() {
		if h, ok := rc.lookupHelper(n.Path.Original); ok {
			call := &Call{
				Name:    n.Path.Original,
				Hash:    map[string]Param{},
				Line:    n.LineNo,
				escaped: !n.Raw,
				body:    &Block{},
				inverse: &Block{},
			}
			return rc.invoke(h, call)
		}
	}

	s := rc.resolvePath(n.Path).Render()
	if !n.Raw {
		s = rc.Escape(s)
	}
	return rc.Write(s)
}

func (rc *RenderContext) evalHelper(n *HelperNode) error {
	h, found := rc.lookupHelper(n.Name)
	if !found || !n.Path.IsSimple() {
		if n.Block && len(n.Params) == 0 && len(n.Hash) == 0 {
			return rc.evalSection(n)
		}
		return &RenderError{Kind: HelperNotFound, Template: rc.template, Name: n.Name, Line: n.LineNo}
	}

	call, err := rc.newCall(n.Name, n.Params, n.Hash, n.LineNo)
	if err != nil {
		return err
	}
	call.block = n.Block
	call.escaped = !n.Raw
	call.body = &Block{program: n.Body}
	call.inverse = &Block{program: n.Inverse}
	return rc.invoke(h, call)
}

// evalSection renders {{#path}}...{{/path}} when path names no helper:
// arrays iterate, objects and other truthy values rebind this, falsy values
// render the inverse.
func (rc *RenderContext) evalSection(n *HelperNode) error {
	v := rc.resolvePath(n.Path)
	body := &Block{program: n.Body}
	inverse := &Block{program: n.Inverse}

	switch {
	case !v.Truthy():
		return inverse.Render(rc)
	case v.Kind() == value.KindArray:
		return iterate(rc, v, body)
	case v.Kind() == value.KindBool:
		return body.Render(rc)
	default:
		return body.RenderWith(rc, v, nil)
	}
}

func (rc *RenderContext) invoke(h Helper, call *Call) error {
	if ce := rc.Logger().Check(zap.DebugLevel, "invoking helper"); ce != nil {
		ce.Write(
			zap.String("template", rc.template),
			zap.String("helper", call.Name),
			zap.Int("line", call.Line),
			zap.Int("params", len(call.Params)),
		)
	}
	if err := h.Call(call, rc); err != nil {
		return classify(err, call.Name, rc.template, call.Line)
	}
	return nil
}

func (rc *RenderContext) evalDecorator(n *DecoratorNode) error {
	d, ok := rc.registry.decorator(n.Name)
	if !ok {
		return &RenderError{Kind: DecoratorNotFound, Template: rc.template, Name: n.Name, Line: n.LineNo}
	}

	call, err := rc.newCall(n.Name, n.Params, n.Hash, n.LineNo)
	if err != nil {
		return err
	}
	call.block = n.Body != nil
	call.body = &Block{program: n.Body}
	call.inverse = &Block{}

	if ce := rc.Logger().Check(zap.DebugLevel, "invoking decorator"); ce != nil {
		ce.Write(
			zap.String("template", rc.template),
			zap.String("decorator", n.Name),
			zap.Int("line", n.LineNo),
		)
	}
	if err := d.Decorate(call, rc); err != nil {
		return classify(err, n.Name, rc.template, n.LineNo)
	}
	return nil
}

// evalPartial renders another template in place. The partial starts with
// an empty override stack: local helpers and partials of the caller are not
// visible inside it.
func (rc *RenderContext) evalPartial(n *PartialNode) error {
	nameValue, err := rc.evalExpr(n.Name, n.LineNo)
	if err != nil {
		return err
	}
	name := nameValue.Render()

	tmpl, ok := rc.lookupPartial(name)
	if !ok {
		return &RenderError{Kind: PartialNotFound, Template: rc.template, Name: name, Line: n.LineNo}
	}
	if rc.depth >= rc.registry.maxDepth {
		return &RenderError{
			Kind:     RecursionLimit,
			Template: rc.template,
			Name:     name,
			Line:     n.LineNo,
			Reason:   fmt.Sprintf("partials nested deeper than %d", rc.registry.maxDepth),
		}
	}

	ctx := rc.CurrentScope()
	if n.Context != nil {
		ctx, err = rc.evalExpr(n.Context, n.LineNo)
		if err != nil {
			return err
		}
	}
	// hash params build an object; a non-object context contributes nothing
	if len(n.Hash) > 0 {
		extra := make([]value.Field, 0, len(n.Hash))
		for _, pair := range n.Hash {
			v, err := rc.evalExpr(pair.Value, n.LineNo)
			if err != nil {
				return err
			}
			extra = append(extra, value.Field{Key: pair.Key, Value: v})
		}
		ctx = ctx.Merge(extra...)
	}

	savedFrames, savedTemplate := rc.frames, rc.template
	rc.frames = nil
	rc.template = tmpl.Name
	rc.depth++
	rc.PushScope(ctx)
	defer func() {
		rc.PopScope()
		rc.depth--
		rc.frames, rc.template = savedFrames, savedTemplate
	}()

	return rc.evalProgram(tmpl.Program)
}

// newCall resolves params eagerly against the current scope
func (rc *RenderContext) newCall(name string, params []Expr, hash []HashPair, line int) (*Call, error) {
	call := &Call{
		Name:   name,
		Params: make([]Param, 0, len(params)),
		Hash:   make(map[string]Param, len(hash)),
		Line:   line,
	}
	for _, p := range params {
		v, err := rc.evalExpr(p, line)
		if err != nil {
			return nil, err
		}
		call.Params = append(call.Params, Param{Value: v, Path: p.String()})
	}
	for _, pair := range hash {
		v, err := rc.evalExpr(pair.Value, line)
		if err != nil {
			return nil, err
		}
		call.Hash[pair.Key] = Param{Value: v, Path: pair.Value.String()}
	}
	return call, nil
}

func (rc *RenderContext) evalExpr(e Expr, line int) (value.Value, error) {
	switch x := e.(type) {
	case *LiteralExpr:
		return x.Value, nil
	case *PathExpr:
		return rc.resolvePath(x), nil
	case *SubExpr:
		return rc.evalSubExpr(x)
	}
	return value.Null(), &RenderError{Kind: HelperFailed, Template: rc.template, Line: line, Reason: fmt.Sprintf("unknown expression %T", e)}
}

func (rc *RenderContext) evalSubExpr(x *SubExpr) (value.Value, error) {
	h, ok := rc.lookupHelper(x.Name)
	if !ok {
		return value.Null(), &RenderError{Kind: HelperNotFound, Template: rc.template, Name: x.Name, Line: x.LineNo}
	}
	call, err := rc.newCall(x.Name, x.Params, x.Hash, x.LineNo)
	if err != nil {
		return value.Null(), err
	}
	call.body = &Block{}
	call.inverse = &Block{}

	if vh, ok := h.(ValueHelper); ok {
		v, err := vh.Value(call, rc)
		if err != nil {
			return value.Null(), classify(err, x.Name, rc.template, x.LineNo)
		}
		return v, nil
	}

	out, err := rc.capture(func() error { return rc.invoke(h, call) })
	if err != nil {
		return value.Null(), err
	}
	return value.String(out), nil
}

package template

import (
	"fmt"
	"strings"

	"github.com/aescanero/dago-template/internal/value"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// registerBuiltins installs the control, value and content helpers and the
// inline decorator
func (r *Registry) registerBuiltins() {
	// control flow
	r.RegisterHelper("if", HelperFunc(ifHelper))
	r.RegisterHelper("unless", HelperFunc(unlessHelper))
	r.RegisterHelper("each", HelperFunc(eachHelper))
	r.RegisterHelper("with", HelperFunc(withHelper))
	r.RegisterHelper("lookup", ValueFunc(lookupHelper))
	r.RegisterHelper("log", HelperFunc(logHelper))

	r.registerValueHelpers()
	r.registerContentHelpers()

	r.RegisterDecorator("inline", DecoratorFunc(inlineDecorator))
}

// condition evaluates the first param the way if and unless do. With
// includeZero=true a numeric zero counts as true.
func condition(call *Call) (bool, error) {
	p, err := call.RequiredParam(0)
	if err != nil {
		return false, err
	}
	if call.HashValue("includeZero").Truthy() {
		if n, ok := p.Value.AsNumber(); ok && n == 0 {
			return true, nil
		}
	}
	return p.Value.Truthy(), nil
}

func ifHelper(call *Call, rc *RenderContext) error {
	ok, err := condition(call)
	if err != nil {
		return err
	}
	if ok {
		return call.Body().Render(rc)
	}
	return call.Inverse().Render(rc)
}

func unlessHelper(call *Call, rc *RenderContext) error {
	ok, err := condition(call)
	if err != nil {
		return err
	}
	if ok {
		return call.Inverse().Render(rc)
	}
	return call.Body().Render(rc)
}

func eachHelper(call *Call, rc *RenderContext) error {
	p, err := call.RequiredParam(0)
	if err != nil {
		return err
	}
	v := p.Value
	if !v.Truthy() {
		return call.Inverse().Render(rc)
	}
	switch v.Kind() {
	case value.KindArray:
		return iterate(rc, v, call.Body())
	case value.KindObject:
		return iterateFields(rc, v, call.Body())
	default:
		return call.Inverse().Render(rc)
	}
}

func withHelper(call *Call, rc *RenderContext) error {
	p, err := call.RequiredParam(0)
	if err != nil {
		return err
	}
	if !p.Value.Truthy() {
		return call.Inverse().Render(rc)
	}
	return call.Body().RenderWith(rc, p.Value, nil)
}

func lookupHelper(call *Call) (value.Value, error) {
	p, err := call.RequiredParam(1)
	if err != nil {
		return value.Null(), err
	}
	v, _ := call.Value(0).Lookup(p.Value.Render())
	return v, nil
}

// logHelper writes its rendered params to the registry logger. The level
// hash param selects debug, info, warn or error; info by default.
func logHelper(call *Call, rc *RenderContext) error {
	level := zapcore.InfoLevel
	if s, ok := call.HashValue("level").AsString(); ok {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return &RenderError{Kind: TypeMismatch, Name: call.Name, Line: call.Line, Reason: fmt.Sprintf("unknown log level %q", s)}
		}
	}

	parts := make([]string, len(call.Params))
	for i, p := range call.Params {
		parts[i] = p.Value.Render()
	}
	if ce := rc.Logger().Check(level, strings.Join(parts, " ")); ce != nil {
		ce.Write(
			zap.String("template", rc.TemplateName()),
			zap.Int("line", call.Line),
		)
	}
	return nil
}

// iterate renders body once per array item with @index, @key, @first and
// @last set.
func iterate(rc *RenderContext, v value.Value, body *Block) error {
	items := v.Items()
	for i, item := range items {
		data := map[string]value.Value{
			"index": value.Int(int64(i)),
			"key":   value.Int(int64(i)),
			"first": value.Bool(i == 0),
			"last":  value.Bool(i == len(items)-1),
		}
		if err := body.RenderWith(rc, item, data); err != nil {
			return err
		}
	}
	return nil
}

// iterateFields renders body once per object field in insertion order
func iterateFields(rc *RenderContext, v value.Value, body *Block) error {
	fields := v.Fields()
	for i, f := range fields {
		data := map[string]value.Value{
			"index": value.Int(int64(i)),
			"key":   value.String(f.Key),
			"first": value.Bool(i == 0),
			"last":  value.Bool(i == len(fields)-1),
		}
		if err := body.RenderWith(rc, f.Value, data); err != nil {
			return err
		}
	}
	return nil
}

// inlineDecorator registers its body as a partial visible to the rest of
// the enclosing block
func inlineDecorator(call *Call, rc *RenderContext) error {
	name, err := call.Text(0)
	if err != nil {
		return err
	}
	if !call.Block() {
		return &RenderError{Kind: HelperFailed, Name: call.Name, Line: call.Line, Reason: "inline must be used as a block decorator"}
	}
	rc.RegisterLocalPartial(name, call.Body())
	return nil
}

package template

import (
	"fmt"
	"io"
	"strings"

	"github.com/aescanero/dago-template/internal/value"
	"go.uber.org/zap"
)

// scope is one entry of the data stack
type scope struct {
	value value.Value
	data  map[string]value.Value
}

// frame holds the local overrides installed during one block evaluation
type frame struct {
	helpers  map[string]Helper
	partials map[string]*Template
}

// RenderContext is the per-render environment: the output sink, the data
// scope stack and the stack of local override frames. It is created for one
// render call and must not be shared between goroutines.
type RenderContext struct {
	registry *Registry
	out      io.Writer
	root     value.Value
	template string
	scopes   []scope
	frames   []frame
	depth    int
}

func newRenderContext(reg *Registry, out io.Writer, name string, root value.Value) *RenderContext {
	return &RenderContext{
		registry: reg,
		out:      out,
		root:     root,
		template: name,
		scopes:   []scope{{value: root}},
	}
}

// Registry returns the registry the render was started from
func (rc *RenderContext) Registry() *Registry { return rc.registry }

// Logger returns the registry logger
func (rc *RenderContext) Logger() *zap.Logger { return rc.registry.logger }

// TemplateName returns the name of the template currently being evaluated
func (rc *RenderContext) TemplateName() string { return rc.template }

// Root returns the value the render was started with
func (rc *RenderContext) Root() value.Value { return rc.root }

// CurrentScope returns the top of the data stack
func (rc *RenderContext) CurrentScope() value.Value {
	return rc.scopes[len(rc.scopes)-1].value
}

// PushScope makes v the current scope
func (rc *RenderContext) PushScope(v value.Value) {
	rc.scopes = append(rc.scopes, scope{value: v})
}

// PushScopeWithData makes v the current scope with @-variables
func (rc *RenderContext) PushScopeWithData(v value.Value, data map[string]value.Value) {
	rc.scopes = append(rc.scopes, scope{value: v, data: data})
}

// PopScope drops the current scope. The root scope is never removed.
func (rc *RenderContext) PopScope() {
	if len(rc.scopes) > 1 {
		rc.scopes = rc.scopes[:len(rc.scopes)-1]
	}
}

// Write appends s to the output sink
func (rc *RenderContext) Write(s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(rc.out, s); err != nil {
		return &RenderError{Kind: Io, Template: rc.template, Cause: err}
	}
	return nil
}

// Escape applies the registry escape function
func (rc *RenderContext) Escape(s string) string {
	return rc.registry.escape(s)
}

// RegisterLocalHelper installs a helper that shadows any registered helper
// of the same name for the rest of the block being evaluated.
func (rc *RenderContext) RegisterLocalHelper(name string, h Helper) {
	f := rc.topFrame()
	if f.helpers == nil {
		f.helpers = make(map[string]Helper)
	}
	f.helpers[name] = h
}

// RegisterLocalPartial installs a partial for the rest of the block being
// evaluated. Partials rendered from here do not see it.
func (rc *RenderContext) RegisterLocalPartial(name string, body *Block) {
	f := rc.topFrame()
	if f.partials == nil {
		f.partials = make(map[string]*Template)
	}
	var prog *Program
	if body != nil {
		prog = body.program
	}
	if prog == nil {
		prog = &Program{}
	}
	f.partials[name] = &Template{Name: name, Program: prog}
}

// topFrame returns the innermost frame, opening one if a helper or
// decorator runs outside any block evaluation.
func (rc *RenderContext) topFrame() *frame {
	if len(rc.frames) == 0 {
		rc.frames = append(rc.frames, frame{})
	}
	return &rc.frames[len(rc.frames)-1]
}

// lookupHelper resolves name against local frames innermost-first, then
// the registry.
func (rc *RenderContext) lookupHelper(name string) (Helper, bool) {
	for i := len(rc.frames) - 1; i >= 0; i-- {
		if h, ok := rc.frames[i].helpers[name]; ok {
			return h, true
		}
	}
	return rc.registry.helper(name)
}

func (rc *RenderContext) lookupPartial(name string) (*Template, bool) {
	for i := len(rc.frames) - 1; i >= 0; i-- {
		if t, ok := rc.frames[i].partials[name]; ok {
			return t, true
		}
	}
	return rc.registry.template(name)
}

// resolvePath looks a path up against the scope stack. Missing data
// resolves to Null.
func (rc *RenderContext) resolvePath(p *PathExpr) value.Value {
	parts := p.Parts
	var cur value.Value

	if p.Data {
		if parts[0] == "root" {
			cur = rc.root
		} else {
			found := false
			for i := len(rc.scopes) - 1 - p.Depth; i >= 0; i-- {
				if v, ok := rc.scopes[i].data[parts[0]]; ok {
					cur = v
					found = true
					break
				}
			}
			if !found {
				return value.Null()
			}
		}
		parts = parts[1:]
	} else {
		idx := len(rc.scopes) - 1 - p.Depth
		if idx < 0 {
			return value.Null()
		}
		cur = rc.scopes[idx].value
	}

	for _, part := range parts {
		next, ok := cur.Lookup(part)
		if !ok {
			return value.Null()
		}
		cur = next
	}
	return cur
}

// capture runs fn with output redirected to a buffer and returns what it
// wrote. Used to turn plain helpers into subexpression values.
func (rc *RenderContext) capture(fn func() error) (string, error) {
	saved := rc.out
	buf := &strings.Builder{}
	rc.out = buf
	defer func() { rc.out = saved }()
	if err := fn(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (rc *RenderContext) String() string {
	return fmt.Sprintf("RenderContext{template=%s, scopes=%d, frames=%d}", rc.template, len(rc.scopes), len(rc.frames))
}

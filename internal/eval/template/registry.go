package template

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aescanero/dago-template/internal/eval/cel"
	"github.com/aescanero/dago-template/internal/value"
	"github.com/aymerick/raymond"
	"go.uber.org/zap"
)

const defaultMaxDepth = 64

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger used for debug tracing and the log helper
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEscapeFunc replaces the HTML escape applied to {{ }} output
func WithEscapeFunc(fn func(string) string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.escape = fn
		}
	}
}

// WithoutEscape disables escaping of {{ }} output
func WithoutEscape() Option {
	return func(r *Registry) {
		r.escape = func(s string) string { return s }
	}
}

// WithoutBuiltins skips registration of the builtin helpers and decorators
func WithoutBuiltins() Option {
	return func(r *Registry) {
		r.builtins = false
	}
}

// WithCEL registers the when block helper backed by evaluator
func WithCEL(evaluator *cel.Evaluator) Option {
	return func(r *Registry) {
		r.cel = evaluator
	}
}

// WithMaxDepth bounds partial nesting
func WithMaxDepth(depth int) Option {
	return func(r *Registry) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// Registry stores compiled templates, helpers and decorators by name.
//
// Registration is expected to happen during setup, before render traffic.
// Lookups and registrations are guarded by an RWMutex, so late registration
// is safe, but a render that is already running may or may not observe it.
type Registry struct {
	mu         sync.RWMutex
	templates  map[string]*Template
	helpers    map[string]Helper
	decorators map[string]Decorator

	logger   *zap.Logger
	escape   func(string) string
	cel      *cel.Evaluator
	maxDepth int
	builtins bool
}

// NewRegistry creates a registry with the builtin helpers installed
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		templates:  make(map[string]*Template),
		helpers:    make(map[string]Helper),
		decorators: make(map[string]Decorator),
		logger:     zap.NewNop(),
		escape:     raymond.Escape,
		maxDepth:   defaultMaxDepth,
		builtins:   true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}

	if r.builtins {
		r.registerBuiltins()
	}
	if r.cel != nil {
		r.RegisterHelper("when", whenHelper(r.cel))
	}
	return r
}

// Logger returns the registry logger
func (r *Registry) Logger() *zap.Logger { return r.logger }

// RegisterTemplate compiles source and stores it under name, replacing any
// previous template of that name. Compile errors are returned immediately.
func (r *Registry) RegisterTemplate(name, source string) error {
	tmpl, err := Compile(name, source)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates[name] = tmpl
	r.mu.Unlock()

	r.logger.Debug("registered template",
		zap.String("template", name),
		zap.Int("nodes", len(tmpl.Program.Nodes)),
	)
	return nil
}

// MustRegisterTemplate panics on compile failure. Useful for init-time wiring.
func (r *Registry) MustRegisterTemplate(name, source string) {
	if err := r.RegisterTemplate(name, source); err != nil {
		panic(err)
	}
}

// UnregisterTemplate removes a template
func (r *Registry) UnregisterTemplate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, name)
}

// HasTemplate reports whether a template is registered
func (r *Registry) HasTemplate(name string) bool {
	_, ok := r.template(name)
	return ok
}

// TemplateNames returns the registered template names, sorted
func (r *Registry) TemplateNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterHelper stores a helper. The last registration for a name wins.
func (r *Registry) RegisterHelper(name string, h Helper) {
	r.mu.Lock()
	r.helpers[name] = h
	r.mu.Unlock()

	r.logger.Debug("registered helper", zap.String("helper", name))
}

// RegisterDecorator stores a decorator. The last registration for a name wins.
func (r *Registry) RegisterDecorator(name string, d Decorator) {
	r.mu.Lock()
	r.decorators[name] = d
	r.mu.Unlock()

	r.logger.Debug("registered decorator", zap.String("decorator", name))
}

// HasHelper reports whether a helper is registered
func (r *Registry) HasHelper(name string) bool {
	_, ok := r.helper(name)
	return ok
}

func (r *Registry) template(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

func (r *Registry) helper(name string) (Helper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.helpers[name]
	return h, ok
}

func (r *Registry) decorator(name string) (Decorator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decorators[name]
	return d, ok
}

// Render renders the named template against data and returns the output
func (r *Registry) Render(name string, data value.Value) (string, error) {
	var b strings.Builder
	if err := r.RenderTo(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderTo renders the named template into w. On failure, whatever was
// written before the failing node stays in w.
func (r *Registry) RenderTo(w io.Writer, name string, data value.Value) error {
	tmpl, ok := r.template(name)
	if !ok {
		return &RenderError{Kind: TemplateNotFound, Name: name}
	}
	return r.RenderTemplate(w, tmpl, data)
}

// RenderTemplate renders a compiled template that need not be registered
func (r *Registry) RenderTemplate(w io.Writer, tmpl *Template, data value.Value) error {
	if tmpl == nil || tmpl.Program == nil {
		return fmt.Errorf("render: template is nil")
	}
	rc := newRenderContext(r, w, tmpl.Name, data)
	if err := rc.evalProgram(tmpl.Program); err != nil {
		r.logger.Debug("render failed",
			zap.String("template", tmpl.Name),
			zap.Error(err),
		)
		return err
	}
	return nil
}

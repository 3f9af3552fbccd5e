package template

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/aescanero/dago-template/internal/value"
)

// Engine renders ad-hoc template strings against a shared Registry
type Engine struct {
	registry *Registry
	cache    map[string]*Template
	mu       sync.RWMutex
}

// NewEngine creates a new template engine backed by a fresh Registry
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithRegistry(NewRegistry(opts...))
}

// NewEngineWithRegistry creates an engine whose templates can call the
// helpers and partials of reg
func NewEngineWithRegistry(reg *Registry) *Engine {
	return &Engine{
		registry: reg,
		cache:    make(map[string]*Template),
	}
}

// Registry returns the registry used for helpers, decorators and partials
func (e *Engine) Registry() *Registry { return e.registry }

// Render renders a template with the given data. data may be a value.Value
// or plain Go data accepted by value.FromGo.
func (e *Engine) Render(templateStr string, data interface{}) (string, error) {
	v, err := value.FromGo(data)
	if err != nil {
		return "", fmt.Errorf("invalid template data: %w", err)
	}
	return e.RenderValue(templateStr, v)
}

// RenderValue renders a template against a Value
func (e *Engine) RenderValue(templateStr string, data value.Value) (string, error) {
	tmpl, err := e.getTemplate(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}

	var b strings.Builder
	if err := e.registry.RenderTemplate(&b, tmpl, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return b.String(), nil
}

// getTemplate gets a compiled template from cache or compiles it
func (e *Engine) getTemplate(templateStr string) (*Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.cache[templateStr]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if tmpl, ok := e.cache[templateStr]; ok {
		return tmpl, nil
	}

	tmpl, err := Compile(inlineName(templateStr), templateStr)
	if err != nil {
		return nil, err
	}

	e.cache[templateStr] = tmpl
	return tmpl, nil
}

// ValidateTemplate validates a template without rendering it
func (e *Engine) ValidateTemplate(templateStr string) error {
	_, err := Compile(inlineName(templateStr), templateStr)
	return err
}

// ClearCache clears the compiled template cache
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*Template)
}

// CacheSize returns the number of cached templates
func (e *Engine) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// inlineName names an ad-hoc template after a short digest of its source so
// errors can point at it
func inlineName(src string) string {
	sum := sha256.Sum256([]byte(src))
	return "inline-" + hex.EncodeToString(sum[:4])
}

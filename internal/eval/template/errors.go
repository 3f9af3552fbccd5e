package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/dago-template/internal/value"
)

// CompileErrorKind classifies template compile failures
type CompileErrorKind int

const (
	// Unclosed is a block or decorator without its matching close tag
	Unclosed CompileErrorKind = iota + 1
	// UnknownSyntax is a tag the parser does not understand
	UnknownSyntax
)

func (k CompileErrorKind) String() string {
	switch k {
	case Unclosed:
		return "unclosed"
	case UnknownSyntax:
		return "unknown syntax"
	default:
		return "compile error"
	}
}

// CompileError is returned by RegisterTemplate and Compile
type CompileError struct {
	Kind     CompileErrorKind
	Template string
	Line     int
	Column   int
	Reason   string
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("compile failed")
	if e.Template != "" {
		fmt.Fprintf(&b, " for template %q", e.Template)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d, column %d", e.Line, e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Is matches ErrUnclosed and ErrUnknownSyntax
func (e *CompileError) Is(target error) bool {
	switch target {
	case ErrUnclosed:
		return e.Kind == Unclosed
	case ErrUnknownSyntax:
		return e.Kind == UnknownSyntax
	}
	return false
}

// RenderErrorKind classifies render failures
type RenderErrorKind int

const (
	// TemplateNotFound means Render was asked for an unregistered template
	TemplateNotFound RenderErrorKind = iota + 1
	// PartialNotFound means a partial name resolved to nothing
	PartialNotFound
	// HelperNotFound means no local or registered helper has the name
	HelperNotFound
	// DecoratorNotFound means no registered decorator has the name
	DecoratorNotFound
	// ParamMissing means a helper required a param that was not supplied
	ParamMissing
	// TypeMismatch means a value had the wrong variant for the operation
	TypeMismatch
	// Io means the output sink failed
	Io
	// HelperFailed wraps any other error returned by a helper or decorator
	HelperFailed
	// RecursionLimit means partials nested deeper than the configured limit
	RecursionLimit
)

func (k RenderErrorKind) String() string {
	switch k {
	case TemplateNotFound:
		return "template not found"
	case PartialNotFound:
		return "partial not found"
	case HelperNotFound:
		return "helper not found"
	case DecoratorNotFound:
		return "decorator not found"
	case ParamMissing:
		return "param missing"
	case TypeMismatch:
		return "type mismatch"
	case Io:
		return "io"
	case HelperFailed:
		return "helper failed"
	case RecursionLimit:
		return "recursion limit"
	default:
		return "render error"
	}
}

// Sentinel errors for errors.Is checks against CompileError and RenderError
var (
	ErrUnclosed          = errors.New("unclosed")
	ErrUnknownSyntax     = errors.New("unknown syntax")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrHelperNotFound    = errors.New("helper not found")
	ErrDecoratorNotFound = errors.New("decorator not found")
	ErrParamMissing      = errors.New("param missing")
	ErrTypeMismatch      = value.ErrTypeMismatch
	ErrIo                = errors.New("io")
	ErrRecursionLimit    = errors.New("recursion limit")
)

// RenderError is returned when a render call does not complete. Output
// written before the failure stays in the sink.
type RenderError struct {
	Kind     RenderErrorKind
	Template string
	Name     string
	Line     int
	Reason   string
	Cause    error
}

func (e *RenderError) Error() string {
	var b strings.Builder
	b.WriteString("render failed")
	if e.Template != "" {
		fmt.Fprintf(&b, " in template %q", e.Template)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error of the kind
func (e *RenderError) Is(target error) bool {
	switch target {
	case ErrTemplateNotFound:
		return e.Kind == TemplateNotFound || e.Kind == PartialNotFound
	case ErrHelperNotFound:
		return e.Kind == HelperNotFound
	case ErrDecoratorNotFound:
		return e.Kind == DecoratorNotFound
	case ErrParamMissing:
		return e.Kind == ParamMissing
	case ErrTypeMismatch:
		return e.Kind == TypeMismatch
	case ErrIo:
		return e.Kind == Io
	case ErrRecursionLimit:
		return e.Kind == RecursionLimit
	}
	return false
}

// NewRenderError creates a RenderError for helpers that want to fail with a
// specific kind. The engine fills in template and line.
func NewRenderError(kind RenderErrorKind, name, reason string) *RenderError {
	return &RenderError{Kind: kind, Name: name, Reason: reason}
}

// classify turns an error returned by a helper into a RenderError that
// carries the call site.
func classify(err error, name, tmpl string, line int) *RenderError {
	var re *RenderError
	if errors.As(err, &re) {
		if re.Template == "" {
			re.Template = tmpl
		}
		if re.Line == 0 {
			re.Line = line
		}
		if re.Name == "" {
			re.Name = name
		}
		return re
	}

	kind := HelperFailed
	switch {
	case errors.Is(err, value.ErrTypeMismatch):
		kind = TypeMismatch
	case errors.Is(err, ErrParamMissing):
		kind = ParamMissing
	case errors.Is(err, ErrIo):
		kind = Io
	}
	return &RenderError{Kind: kind, Template: tmpl, Name: name, Line: line, Cause: err}
}

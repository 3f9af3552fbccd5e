package template

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/dago-template/internal/eval/cel"
	"github.com/aescanero/dago-template/internal/value"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown

	sanitizeOnce   sync.Once
	sanitizePolicy *bluemonday.Policy
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
		)
	})
	return markdown
}

func sanitizer() *bluemonday.Policy {
	sanitizeOnce.Do(func() {
		sanitizePolicy = bluemonday.UGCPolicy()
	})
	return sanitizePolicy
}

func (r *Registry) registerContentHelpers() {
	r.RegisterHelper("markdown", HelperFunc(markdownHelper))
	r.RegisterHelper("sanitize", HelperFunc(sanitizeHelper))
}

// contentInput returns the first param, or the rendered body in block
// position: {{markdown text}} and {{#markdown}}...{{/markdown}}
func contentInput(call *Call, rc *RenderContext) (string, error) {
	if call.Block() {
		return rc.capture(func() error { return call.Body().Render(rc) })
	}
	return textParam(call, 0)
}

// markdownHelper converts CommonMark to HTML. The result is written raw.
func markdownHelper(call *Call, rc *RenderContext) error {
	src, err := contentInput(call, rc)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(src), &buf); err != nil {
		return fmt.Errorf("markdown conversion failed: %w", err)
	}
	return rc.Write(buf.String())
}

// sanitizeHelper strips unsafe markup with the user-content policy. The
// result is written raw.
func sanitizeHelper(call *Call, rc *RenderContext) error {
	src, err := contentInput(call, rc)
	if err != nil {
		return err
	}
	return rc.Write(sanitizer().Sanitize(src))
}

// whenHelper renders its body when a CEL expression over this and root
// holds
func whenHelper(evaluator *cel.Evaluator) Helper {
	return HelperFunc(func(call *Call, rc *RenderContext) error {
		expr, err := call.Text(0)
		if err != nil {
			return err
		}
		vars := map[string]interface{}{
			"this": rc.CurrentScope().Interface(),
			"root": rc.Root().Interface(),
		}
		out, err := evaluator.Evaluate(context.Background(), expr, vars)
		if err != nil {
			return fmt.Errorf("when %q: %w", expr, err)
		}
		result, err := value.FromGo(out)
		if err != nil {
			return fmt.Errorf("when %q: %w", expr, err)
		}
		if result.Truthy() {
			return call.Body().Render(rc)
		}
		return call.Inverse().Render(rc)
	})
}

package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/aescanero/dago-template/internal/value"
	"github.com/google/go-cmp/cmp"
)

// leagueData is shared fixture data for render tests
func leagueData() value.Value {
	return value.Object(
		value.Field{Key: "name", Value: value.String("X")},
		value.Field{Key: "pts", Value: value.Int(5)},
		value.Field{Key: "ratio", Value: value.Number(2.50)},
		value.Field{Key: "html", Value: value.String("<b>hi</b> & bye")},
		value.Field{Key: "ok", Value: value.Bool(true)},
		value.Field{Key: "zero", Value: value.Int(0)},
		value.Field{Key: "none", Value: value.Array()},
		value.Field{Key: "items", Value: value.Array(value.String("a"), value.String("b"), value.String("c"))},
		value.Field{Key: "team", Value: value.Object(
			value.Field{Key: "name", Value: value.String("Lions")},
			value.Field{Key: "pts", Value: value.Int(9)},
		)},
		value.Field{Key: "odd key", Value: value.String("odd")},
	)
}

func renderString(t *testing.T, reg *Registry, src string, data value.Value) (string, error) {
	t.Helper()
	if err := reg.RegisterTemplate("test", src); err != nil {
		t.Fatalf("RegisterTemplate(%q): %v", src, err)
	}
	return reg.Render("test", data)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"literal substitution", "{{name}} has {{pts}} pts", "X has 5 pts"},
		{"missing path renders empty", "[{{missing}}][{{team.missing.deeper}}]", "[][]"},
		{"number formatting", "{{ratio}}", "2.5"},
		{"escaped output", "{{html}}", "&lt;b&gt;hi&lt;/b&gt; &amp; bye"},
		{"triple stash", "{{{html}}}", "<b>hi</b> & bye"},
		{"ampersand raw", "{{& html}}", "<b>hi</b> & bye"},
		{"nested path", "{{team.name}}", "Lions"},
		{"slash path", "{{team/name}}", "Lions"},
		{"bracket segment", "{{[odd key]}}", "odd"},
		{"array index", "{{items.1}}", "b"},
		{"array length", "{{items.length}}", "3"},
		{"array render", "{{items}}", "a,b,c"},
		{"object render", "{{team}}", "[object]"},
		{"boolean render", "{{ok}}", "true"},
		{"section over array", "{{#items}}[{{.}}]{{/items}}", "[a][b][c]"},
		{"section over object", "{{#team}}{{name}}:{{pts}}{{/team}}", "Lions:9"},
		{"section over bool", "{{#ok}}{{name}}{{/ok}}", "X"},
		{"section falsy", "{{#none}}x{{else}}empty{{/none}}", "empty"},
		{"inverted section", "{{^none}}nothing{{/none}}{{^ok}}hidden{{/ok}}", "nothing"},
		{"caret else", "{{#zero}}x{{^}}zero{{/zero}}", "zero"},
		{"parent scope", "{{#with team}}{{name}} vs {{../name}}{{/with}}", "Lions vs X"},
		{"root data", "{{#each items}}{{@root.team.name}}{{/each}}", "LionsLionsLions"},
		{"iteration data", "{{#each items}}{{@index}}{{@key}}{{#if @first}}F{{/if}}{{#if @last}}L{{/if}} {{/each}}", "00F 11 22L "},
		{"parent data", "{{#each items}}{{#each ../items}}{{@../index}}{{/each}}{{/each}}", "000111222"},
		{"this alias", "{{#with team}}{{this.name}}{{/with}}", "Lions"},
		{"subexpression", "{{uppercase (lookup team \"name\")}}", "LIONS"},
		{"helper in block param", "{{#if (gt pts 3)}}big{{else}}small{{/if}}", "big"},
		{"else chain", "{{#if zero}}a{{else if ok}}b{{else}}c{{/if}}", "b"},
		{"whitespace control", "<{{~ name ~}}>\n  {{~#if ok~}}\n  yes\n  {{~/if~}}  >", "<X>yes>"},
		{"escaped mustache", "\\{{name}} {{name}}", "{{name}} X"},
		{"comment dropped", "a{{! note }}b{{!-- {{name}} --}}c", "abc"},
		{"string literal param", "{{default missing \"n/a\"}}", "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderString(t, NewRegistry(), tt.src, leagueData())
			if err != nil {
				t.Fatalf("Render(%q) error: %v", tt.src, err)
			}
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	reg := NewRegistry()
	src := "{{#each team}}{{@key}}={{this}};{{/each}}{{join items \"-\"}}"
	first, err := renderString(t, reg, src, leagueData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := reg.Render("test", leagueData())
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if got != first {
			t.Fatalf("render %d = %q, want %q", i, got, first)
		}
	}
	if first != "name=Lions;pts=9;a-b-c" {
		t.Errorf("output = %q", first)
	}
}

func TestRenderTemplateNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Render("nope", value.Null())
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("error = %v, want TemplateNotFound", err)
	}
	var re *RenderError
	if !errors.As(err, &re) || re.Kind != TemplateNotFound || re.Name != "nope" {
		t.Errorf("error = %#v", err)
	}
}

func TestRenderHelperNotFound(t *testing.T) {
	tests := []struct {
		src  string
		line int
	}{
		{"line one\n{{shout name}}", 2},
		{"{{#each items}}\n\n{{shout this}}{{/each}}", 3},
		{"{{uppercase (shout name)}}", 1},
		{"{{#shout name}}x{{/shout}}", 1},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := renderString(t, NewRegistry(), tt.src, leagueData())
			if !errors.Is(err, ErrHelperNotFound) {
				t.Fatalf("error = %v, want HelperNotFound", err)
			}
			var re *RenderError
			if !errors.As(err, &re) {
				t.Fatalf("error %T is not *RenderError", err)
			}
			if re.Name != "shout" {
				t.Errorf("name = %q, want shout", re.Name)
			}
			if re.Line != tt.line {
				t.Errorf("line = %d, want %d", re.Line, tt.line)
			}
			if re.Template != "test" {
				t.Errorf("template = %q", re.Template)
			}
		})
	}
}

func TestRenderKeepsOutputBeforeFailure(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegisterTemplate("test", "before {{name}} {{shout name}} after")

	var b strings.Builder
	err := reg.RenderTo(&b, "test", leagueData())
	if !errors.Is(err, ErrHelperNotFound) {
		t.Fatalf("error = %v", err)
	}
	if got := b.String(); got != "before X " {
		t.Errorf("partial output = %q", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRenderSinkFailure(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegisterTemplate("test", "{{name}}")

	err := reg.RenderTo(failingWriter{}, "test", leagueData())
	if !errors.Is(err, ErrIo) {
		t.Fatalf("error = %v, want Io", err)
	}
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error %v does not carry the cause", err)
	}
}

func TestRenderParamErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"missing param", "{{uppercase}}", ErrParamMissing},
		{"missing second param", "{{eq name}}", ErrParamMissing},
		{"number expected", "{{gt name 3}}", ErrTypeMismatch},
		{"array expected", "{{join name \",\"}}", ErrTypeMismatch},
		{"scalar expected", "{{uppercase team}}", ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := renderString(t, NewRegistry(), tt.src, leagueData())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRenderHelperFailure(t *testing.T) {
	reg := NewRegistry()
	cause := errors.New("backend unavailable")
	reg.RegisterHelper("fetch", HelperFunc(func(call *Call, rc *RenderContext) error {
		return cause
	}))

	_, err := renderString(t, reg, "{{fetch name}}", leagueData())
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("error %T is not *RenderError", err)
	}
	if re.Kind != HelperFailed || re.Name != "fetch" || re.Line != 1 {
		t.Errorf("error = %+v", re)
	}
	if !errors.Is(err, cause) {
		t.Error("cause is not unwrapped")
	}
}

func TestPartials(t *testing.T) {
	tests := []struct {
		name     string
		partials map[string]string
		src      string
		want     string
	}{
		{
			name:     "current scope",
			partials: map[string]string{"row": "{{name}}:{{pts}}"},
			src:      "[{{> row}}]",
			want:     "[X:5]",
		},
		{
			name:     "context param",
			partials: map[string]string{"row": "{{name}}:{{pts}}"},
			src:      "[{{> row team}}]",
			want:     "[Lions:9]",
		},
		{
			name:     "hash overlay",
			partials: map[string]string{"row": "{{name}}:{{pts}}:{{label}}"},
			src:      "[{{> row team pts=1 label=\"top\"}}]",
			want:     "[Lions:1:top]",
		},
		{
			name:     "quoted name",
			partials: map[string]string{"rows/team": "{{team.name}}"},
			src:      "{{> \"rows/team\"}}",
			want:     "Lions",
		},
		{
			name:     "dynamic name",
			partials: map[string]string{"short": "S", "long": "L"},
			src:      "{{> (lookup this \"kind\")}}",
			want:     "L",
		},
		{
			name:     "inside each",
			partials: map[string]string{"item": "<{{this}}>"},
			src:      "{{#each items}}{{> item}}{{/each}}",
			want:     "<a><b><c>",
		},
		{
			name:     "nested partials",
			partials: map[string]string{"outer": "({{> inner}})", "inner": "{{name}}"},
			src:      "{{> outer}}",
			want:     "(X)",
		},
		{
			name:     "scalar context without hash",
			partials: map[string]string{"val": "<{{this}}>"},
			src:      "{{> val name}}",
			want:     "<X>",
		},
		{
			name:     "hash over scalar context",
			partials: map[string]string{"val": "<{{x}}|{{this}}|{{name}}>"},
			src:      "{{> val name x=1}}",
			want:     "<1|[object]|>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			for name, src := range tt.partials {
				reg.MustRegisterTemplate(name, src)
			}
			data := leagueData().Merge(value.Field{Key: "kind", Value: value.String("long")})
			got, err := renderString(t, reg, tt.src, data)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPartialNotFound(t *testing.T) {
	_, err := renderString(t, NewRegistry(), "{{> missing}}", leagueData())
	var re *RenderError
	if !errors.As(err, &re) || re.Kind != PartialNotFound || re.Name != "missing" {
		t.Fatalf("error = %v, want PartialNotFound", err)
	}
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Error("PartialNotFound should match ErrTemplateNotFound")
	}
}

func TestPartialRecursionLimit(t *testing.T) {
	reg := NewRegistry(WithMaxDepth(5))
	reg.MustRegisterTemplate("loop", "x{{> loop}}")

	var b strings.Builder
	err := reg.RenderTo(&b, "loop", value.Null())
	if !errors.Is(err, ErrRecursionLimit) {
		t.Fatalf("error = %v, want RecursionLimit", err)
	}
	if got := b.String(); got != "xxxxxx" {
		t.Errorf("output = %q", got)
	}
}

func TestTemplateNames(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegisterTemplate("b", "")
	reg.MustRegisterTemplate("a", "")
	reg.MustRegisterTemplate("c", "")
	reg.UnregisterTemplate("c")

	if diff := cmp.Diff([]string{"a", "b"}, reg.TemplateNames()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if reg.HasTemplate("c") {
		t.Error("c still registered")
	}
}

func TestRegisterTemplateReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegisterTemplate("t", "one")
	reg.MustRegisterTemplate("t", "two")

	got, err := reg.Render("t", value.Null())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "two" {
		t.Errorf("Render = %q, want two", got)
	}
}

func TestEscapeOptions(t *testing.T) {
	data := leagueData()

	raw := NewRegistry(WithoutEscape())
	got, err := renderString(t, raw, "{{html}}", data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "<b>hi</b> & bye" {
		t.Errorf("WithoutEscape output = %q", got)
	}

	custom := NewRegistry(WithEscapeFunc(strings.ToUpper))
	got, err = renderString(t, custom, "{{html}}", data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "<B>HI</B> & BYE" {
		t.Errorf("WithEscapeFunc output = %q", got)
	}
}

func TestWithoutBuiltins(t *testing.T) {
	reg := NewRegistry(WithoutBuiltins())
	if reg.HasHelper("if") {
		t.Fatal("if registered despite WithoutBuiltins")
	}

	// a block without a helper falls back to section semantics
	got, err := renderString(t, reg, "{{#ok}}yes{{/ok}}", leagueData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "yes" {
		t.Errorf("Render = %q", got)
	}

	_, err = renderString(t, reg, "{{#if ok}}yes{{/if}}", leagueData())
	if !errors.Is(err, ErrHelperNotFound) {
		t.Errorf("error = %v, want HelperNotFound", err)
	}
}

func TestConcurrentRenders(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegisterTemplate("row", "{{#each items}}{{uppercase this}}{{/each}}")

	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			got, err := reg.Render("row", leagueData())
			if err == nil && got != "ABC" {
				err = errors.New("unexpected output " + got)
			}
			errs <- err
		}()
	}
	for i := 0; i < 16; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

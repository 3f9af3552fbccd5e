package template

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aescanero/dago-template/internal/value"
)

// suffixFormat builds a format helper that renders its param followed by
// suffix
func suffixFormat(suffix string) ValueFunc {
	return func(call *Call) (value.Value, error) {
		p, err := call.RequiredParam(0)
		if err != nil {
			return value.Null(), err
		}
		return value.String(p.Value.Render() + " " + suffix), nil
	}
}

// newLeagueRegistry registers a global format helper with suffix "pts" and
// a suffix decorator that installs a local format helper
func newLeagueRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterHelper("format", suffixFormat("pts"))
	reg.RegisterDecorator("suffix", DecoratorFunc(func(call *Call, rc *RenderContext) error {
		suffix, err := call.Text(0)
		if err != nil {
			return err
		}
		rc.RegisterLocalHelper("format", suffixFormat(suffix))
		return nil
	}))
	return reg
}

func TestDecoratorScoping(t *testing.T) {
	tests := []struct {
		name     string
		partials map[string]string
		src      string
		want     string
	}{
		{
			name: "earlier sibling sees the global helper",
			src:  `{{#with team}}{{format pts}} {{*suffix "goals"}}{{format pts}}{{/with}}`,
			want: "5 pts 5 goals",
		},
		{
			name: "override ends with the block",
			src:  `{{format pts}}|{{#with team}}{{*suffix "goals"}}{{format pts}}{{/with}}|{{format pts}}`,
			want: "5 pts|5 goals|5 pts",
		},
		{
			name: "top level override lasts to end of template",
			src:  `{{format pts}}|{{*suffix "goals"}}{{format pts}}|{{#with team}}{{format pts}}{{/with}}`,
			want: "5 pts|5 goals|5 goals",
		},
		{
			name: "later decorator wins",
			src:  `{{*suffix "a"}}{{format pts}}/{{*suffix "b"}}{{format pts}}`,
			want: "5 a/5 b",
		},
		{
			name: "each iteration starts fresh",
			src:  `{{#each teams}}{{format pts}}>{{*suffix "goals"}}{{format pts}};{{/each}}`,
			want: "1 pts>1 goals;2 pts>2 goals;",
		},
		{
			name: "inverse does not see body override",
			src:  `{{#if ok}}{{*suffix "goals"}}{{format pts}}{{/if}}{{#unless ok}}{{else}}{{format pts}}{{/unless}}`,
			want: "5 goals5 pts",
		},
		{
			name:     "partials do not inherit overrides",
			partials: map[string]string{"row": "{{format pts}}"},
			src:      `{{*suffix "goals"}}{{format pts}}/{{> row}}`,
			want:     "5 goals/5 pts",
		},
		{
			name:     "partial decorators stay in the partial",
			partials: map[string]string{"row": `{{*suffix "goals"}}{{format pts}}`},
			src:      `{{> row}}/{{format pts}}`,
			want:     "5 goals/5 pts",
		},
		{
			name: "override visible in subexpressions",
			src:  `{{*suffix "goals"}}{{uppercase (format pts)}}`,
			want: "5 GOALS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newLeagueRegistry()
			for name, src := range tt.partials {
				reg.MustRegisterTemplate(name, src)
			}
			data := value.Object(
				value.Field{Key: "pts", Value: value.Int(5)},
				value.Field{Key: "ok", Value: value.Bool(true)},
				value.Field{Key: "team", Value: value.Object(value.Field{Key: "pts", Value: value.Int(5)})},
				value.Field{Key: "teams", Value: value.Array(
					value.Object(value.Field{Key: "pts", Value: value.Int(1)}),
					value.Object(value.Field{Key: "pts", Value: value.Int(2)}),
				)},
			)
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

func TestDecoratorNotFound(t *testing.T) {
	_, err := renderString(t, NewRegistry(), "a\n{{*missing}}", value.Null())
	if !errors.Is(err, ErrDecoratorNotFound) {
		t.Fatalf("error = %v, want DecoratorNotFound", err)
	}
	var re *RenderError
	if errors.As(err, &re) && (re.Name != "missing" || re.Line != 2) {
		t.Errorf("error = %+v", re)
	}
}

func TestDecoratorError(t *testing.T) {
	reg := newLeagueRegistry()
	_, err := renderString(t, reg, "{{*suffix}}", value.Null())
	if !errors.Is(err, ErrParamMissing) {
		t.Fatalf("error = %v, want ParamMissing", err)
	}
}

// rankingLabel labels a position from its index alone, so ties in the
// ranked value never change the label.
func rankingLabel(call *Call) (value.Value, error) {
	idx, err := call.Number(0)
	if err != nil {
		return value.Null(), err
	}
	total, err := call.Number(1)
	if err != nil {
		return value.Null(), err
	}
	switch {
	case idx == 0:
		return value.String("champion"), nil
	case idx >= total-2:
		return value.String("relegated"), nil
	default:
		return value.String(fmt.Sprintf("#%d", int(idx)+1)), nil
	}
}

func TestRankingLabelIgnoresTies(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterHelper("ranking_label", ValueFunc(rankingLabel))
	reg.MustRegisterTemplate("table",
		"{{#each teams}}{{ranking_label @index ../teams.length}}:{{name}} {{/each}}")

	teams := func(names ...string) value.Value {
		items := make([]value.Value, len(names))
		for i, name := range names {
			items[i] = value.Object(
				value.Field{Key: "name", Value: value.String(name)},
				value.Field{Key: "pts", Value: value.Int(10)},
			)
		}
		return value.Object(value.Field{Key: "teams", Value: value.Array(items...)})
	}

	first, err := reg.Render("table", teams("A", "B", "C", "D", "E", "F", "G", "H"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := reg.Render("table", teams("H", "G", "F", "E", "D", "C", "B", "A"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	wantFirst := "champion:A #2:B #3:C #4:D #5:E #6:F relegated:G relegated:H "
	if first != wantFirst {
		t.Errorf("first = %q, want %q", first, wantFirst)
	}
	wantSecond := "champion:H #2:G #3:F #4:E #5:D #6:C relegated:B relegated:A "
	if second != wantSecond {
		t.Errorf("second = %q, want %q", second, wantSecond)
	}
}

func TestInlinePartials(t *testing.T) {
	tests := []struct {
		name     string
		partials map[string]string
		src      string
		want     string
		wantErr  error
	}{
		{
			name: "defined then used in block",
			src:  `{{#*inline "row"}}[{{this}}]{{/inline}}{{#each items}}{{> row}}{{/each}}`,
			want: "[a][b]",
		},
		{
			name:     "shadows registered partial",
			partials: map[string]string{"row": "global"},
			src:      `{{> row}}/{{#*inline "row"}}local{{/inline}}{{> row}}`,
			want:     "global/local",
		},
		{
			name:     "not visible inside other partials",
			partials: map[string]string{"outer": "{{> row}}"},
			src:      `{{#*inline "row"}}local{{/inline}}{{> outer}}`,
			wantErr:  ErrTemplateNotFound,
		},
		{
			name:    "scoped to its block",
			src:     `{{#with this}}{{#*inline "row"}}x{{/inline}}{{/with}}{{> row}}`,
			wantErr: ErrTemplateNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			for name, src := range tt.partials {
				reg.MustRegisterTemplate(name, src)
			}
			data := value.Object(value.Field{Key: "items", Value: value.Array(value.String("a"), value.String("b"))})
			got, err := renderString(t, reg, tt.src, data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

package template

import (
	"testing"

	"github.com/aymerick/raymond"
)

// TestRaymondConformance renders the Handlebars subset shared with raymond
// through both engines and expects identical output.
func TestRaymondConformance(t *testing.T) {
	data := map[string]interface{}{
		"name":  "X",
		"pts":   5,
		"ok":    true,
		"html":  `<b>"hi"</b> & 'bye'`,
		"items": []interface{}{"a", "b", "c"},
		"empty": []interface{}{},
		"team":  map[string]interface{}{"name": "Lions"},
	}

	sources := []string{
		"{{name}} has {{pts}} pts",
		"{{html}}|{{{html}}}|{{& html}}",
		"{{#each items}}{{@index}}:{{this}} {{/each}}",
		"{{#each items}}{{#if @first}}first {{/if}}{{#if @last}}last{{/if}}{{/each}}",
		"{{#if ok}}yes{{else}}no{{/if}}",
		"{{#unless ok}}no{{else}}yes{{/unless}}",
		"{{#with team}}{{name}}/{{../name}}{{/with}}",
		"{{#items}}[{{.}}]{{/items}}",
		"{{^empty}}none{{/empty}}",
		"{{#empty}}x{{else}}nothing{{/empty}}",
		`{{lookup team "name"}}`,
		"a {{~ name ~}} b",
		"{{! comment }}x{{!-- {{name}} --}}y",
		"{{missing}}|{{team.missing}}",
	}

	engine := NewEngine()
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			want, err := raymond.Render(src, data)
			if err != nil {
				t.Fatalf("raymond.Render: %v", err)
			}
			got, err := engine.Render(src, data)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != want {
				t.Errorf("Render(%q) = %q, raymond = %q", src, got, want)
			}
		})
	}
}

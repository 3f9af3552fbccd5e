package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/aescanero/dago-template/internal/eval/template"
	"github.com/google/uuid"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	reg := template.NewRegistry()
	reg.MustRegisterTemplate("standings", "{{#each teams}}{{@index}}:{{name}}={{points}} {{/each}}")
	p := NewProcessor("w-test", reg, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	return p
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
	}{
		{"named", map[string]interface{}{"data": `{"id":"r-1","template":"standings"}`}, false},
		{"inline", map[string]interface{}{"data": `{"source":"hi {{x}}","data":{"x":1}}`}, false},
		{"missing data", map[string]interface{}{}, true},
		{"not a string", map[string]interface{}{"data": 42}, true},
		{"bad json", map[string]interface{}{"data": `{"template":`}, true},
		{"neither", map[string]interface{}{"data": `{"id":"r-2"}`}, true},
		{"both", map[string]interface{}{"data": `{"template":"a","source":"b"}`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.values)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequest) {
					t.Errorf("error = %v, want ErrBadRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRequest: %v", err)
			}
			if req.ID == "" {
				t.Error("ID was not assigned")
			}
		})
	}
}

func TestParseRequestAssignsUUID(t *testing.T) {
	req, err := ParseRequest(map[string]interface{}{"data": `{"template":"standings"}`})
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if _, err := uuid.Parse(req.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", req.ID, err)
	}
}

func TestProcessNamed(t *testing.T) {
	p := newTestProcessor(t)
	req := &RenderRequest{
		ID:       "r-1",
		Template: "standings",
		Data:     []byte(`{"teams":[{"name":"Lions","points":9},{"name":"Owls","points":7}]}`),
	}

	res, err := p.Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Output != "0:Lions=9 1:Owls=7 " {
		t.Errorf("Output = %q", res.Output)
	}
	if res.ID != "r-1" || res.Template != "standings" || res.WorkerID != "w-test" {
		t.Errorf("result = %+v", res)
	}
	if res.Timestamp != time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix() {
		t.Errorf("Timestamp = %d", res.Timestamp)
	}
}

func TestProcessInline(t *testing.T) {
	p := newTestProcessor(t)
	res, err := p.Process(&RenderRequest{
		ID:     "r-2",
		Source: "{{#if ok}}{{upper}}{{else}}no{{/if}}",
		Data:   []byte(`{"ok":true,"upper":"<b>"}`),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Output != "&lt;b&gt;" {
		t.Errorf("Output = %q", res.Output)
	}
	if res.Template != "inline" {
		t.Errorf("Template = %q", res.Template)
	}
}

func TestProcessFailures(t *testing.T) {
	p := newTestProcessor(t)
	tests := []struct {
		name     string
		req      *RenderRequest
		wantKind string
	}{
		{"unknown template", &RenderRequest{ID: "a", Template: "nope"}, "template_not_found"},
		{"compile error", &RenderRequest{ID: "b", Source: "{{#if x}}"}, "unclosed"},
		{"missing helper", &RenderRequest{ID: "c", Source: "{{shout name}}"}, "helper_not_found"},
		{"bad data", &RenderRequest{ID: "d", Template: "standings", Data: []byte(`{"teams":`)}, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			f := p.Failure(tt.req, err)
			if f.ErrorKind != tt.wantKind {
				t.Errorf("ErrorKind = %q, want %q (err: %v)", f.ErrorKind, tt.wantKind, err)
			}
			if f.ID != tt.req.ID || f.WorkerID != "w-test" {
				t.Errorf("failure = %+v", f)
			}
		})
	}
}

func TestErrorKindInternal(t *testing.T) {
	if got := ErrorKind(errors.New("boom")); got != "internal" {
		t.Errorf("ErrorKind = %q", got)
	}
}

package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dago-template/internal/data"
	"github.com/aescanero/dago-template/internal/eval/template"
	"github.com/aescanero/dago-template/internal/value"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBadRequest is returned for render requests that cannot be parsed
var ErrBadRequest = errors.New("bad render request")

// RenderRequest represents a render work request
type RenderRequest struct {
	ID       string          `json:"id"`
	Template string          `json:"template,omitempty"`
	Source   string          `json:"source,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// RenderResult is published on the result stream
type RenderResult struct {
	ID         string `json:"id"`
	Template   string `json:"template"`
	Output     string `json:"output"`
	DurationMs int64  `json:"duration_ms"`
	WorkerID   string `json:"worker_id"`
	Timestamp  int64  `json:"timestamp"`
}

// RenderFailure is published on the error stream
type RenderFailure struct {
	ID        string `json:"id"`
	Template  string `json:"template,omitempty"`
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
	WorkerID  string `json:"worker_id"`
	Timestamp int64  `json:"timestamp"`
}

// Processor renders requests against a registry. It holds no stream state
// and is safe for concurrent use.
type Processor struct {
	workerID string
	registry *template.Registry
	engine   *template.Engine
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessor creates a processor that renders named templates from reg
// and inline sources through an engine sharing reg's helpers
func NewProcessor(workerID string, reg *template.Registry, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		workerID: workerID,
		registry: reg,
		engine:   template.NewEngineWithRegistry(reg),
		logger:   logger,
		now:      time.Now,
	}
}

// Registry returns the registry requests are rendered against
func (p *Processor) Registry() *template.Registry { return p.registry }

// ParseRequest parses a render request from stream message values
func ParseRequest(values map[string]interface{}) (*RenderRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid 'data' field", ErrBadRequest)
	}

	var req RenderRequest
	if err := json.Unmarshal([]byte(dataStr), &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	if req.Template == "" && req.Source == "" {
		return nil, fmt.Errorf("%w: one of 'template' or 'source' is required", ErrBadRequest)
	}
	if req.Template != "" && req.Source != "" {
		return nil, fmt.Errorf("%w: 'template' and 'source' are mutually exclusive", ErrBadRequest)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return &req, nil
}

// Process renders a single request
func (p *Processor) Process(req *RenderRequest) (*RenderResult, error) {
	start := p.now()

	input := value.Null()
	if len(req.Data) > 0 && string(req.Data) != "null" {
		v, err := data.ParseJSON(req.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		input = v
	}

	var (
		output string
		name   = req.Template
		err    error
	)
	if req.Source != "" {
		name = "inline"
		output, err = p.engine.RenderValue(req.Source, input)
	} else {
		output, err = p.registry.Render(req.Template, input)
	}
	if err != nil {
		return nil, err
	}

	elapsed := p.now().Sub(start)
	p.logger.Debug("rendered template",
		zap.String("request_id", req.ID),
		zap.String("template", name),
		zap.Duration("duration", elapsed),
		zap.Int("bytes", len(output)),
	)

	return &RenderResult{
		ID:         req.ID,
		Template:   name,
		Output:     output,
		DurationMs: elapsed.Milliseconds(),
		WorkerID:   p.workerID,
		Timestamp:  p.now().Unix(),
	}, nil
}

// Failure builds the error stream payload for a failed request
func (p *Processor) Failure(req *RenderRequest, err error) *RenderFailure {
	f := &RenderFailure{
		Error:     err.Error(),
		ErrorKind: ErrorKind(err),
		WorkerID:  p.workerID,
		Timestamp: p.now().Unix(),
	}
	if req != nil {
		f.ID = req.ID
		f.Template = req.Template
	}
	return f
}

// ErrorKind names the class of a processing error, with spaces replaced by
// underscores
func ErrorKind(err error) string {
	var (
		re *template.RenderError
		ce *template.CompileError
	)
	kind := "internal"
	switch {
	case errors.As(err, &re):
		kind = re.Kind.String()
	case errors.As(err, &ce):
		kind = ce.Kind.String()
	case errors.Is(err, ErrBadRequest):
		kind = "bad request"
	}
	return strings.ReplaceAll(kind, " ", "_")
}

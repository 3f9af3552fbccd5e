package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/dago-template/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type fakeStreams struct {
	mu       sync.Mutex
	groupErr error
	pending  []redis.XMessage
	added    map[string][]string
	acked    []string
}

func newFakeStreams(messages ...redis.XMessage) *fakeStreams {
	return &fakeStreams{pending: messages, added: make(map[string][]string)}
}

func (f *fakeStreams) XGroupCreateMkStream(_ context.Context, _, _, _ string) *redis.StatusCmd {
	if f.groupErr != nil {
		return redis.NewStatusResult("", f.groupErr)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStreams) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.mu.Lock()
	if len(f.pending) > 0 {
		msg := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: []redis.XMessage{msg}}}, nil)
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
	case <-time.After(a.Block):
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
}

func (f *fakeStreams) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := a.Values.(map[string]interface{})
	f.added[a.Stream] = append(f.added[a.Stream], values["data"].(string))
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeStreams) XAck(_ context.Context, _, _ string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStreams) snapshot() (map[string][]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := make(map[string][]string, len(f.added))
	for k, v := range f.added {
		added[k] = append([]string(nil), v...)
	}
	return added, append([]string(nil), f.acked...)
}

func testConfig() *config.Config {
	return &config.Config{
		WorkerID:      "w-test",
		Concurrency:   2,
		StreamKey:     "template.render",
		ConsumerGroup: "template-workers",
		ResultStream:  "template.rendered",
		BlockTime:     10 * time.Millisecond,
	}
}

func message(id, data string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]interface{}{"data": data}}
}

func TestHandleMessage(t *testing.T) {
	client := newFakeStreams()
	w := NewWorker(testConfig(), client, newTestProcessor(t), zap.NewNop())
	ctx := context.Background()

	w.handleMessage(ctx, message("1-0", `{"id":"ok","template":"standings","data":{"teams":[{"name":"Lions","points":3}]}}`))
	w.handleMessage(ctx, message("2-0", `{"id":"bad","template":"missing"}`))
	w.handleMessage(ctx, message("3-0", `not json`))

	added, acked := client.snapshot()
	if len(acked) != 3 {
		t.Errorf("acked = %v, want all three messages", acked)
	}

	results := added["template.rendered"]
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	var res RenderResult
	if err := json.Unmarshal([]byte(results[0]), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.ID != "ok" || res.Output != "0:Lions=3 " {
		t.Errorf("result = %+v", res)
	}

	failures := added["template.rendered.errors"]
	if len(failures) != 2 {
		t.Fatalf("failures = %v", failures)
	}
	var first, second RenderFailure
	if err := json.Unmarshal([]byte(failures[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(failures[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first.ID != "bad" || first.ErrorKind != "template_not_found" {
		t.Errorf("first failure = %+v", first)
	}
	if second.ID != "" || second.ErrorKind != "bad_request" {
		t.Errorf("second failure = %+v", second)
	}
}

func TestStartStop(t *testing.T) {
	client := newFakeStreams(
		message("1-0", `{"id":"a","source":"{{x}}","data":{"x":1}}`),
		message("2-0", `{"id":"b","source":"{{x}}","data":{"x":2}}`),
		message("3-0", `{"id":"c","source":"{{x}}","data":{"x":3}}`),
	)
	w := NewWorker(testConfig(), client, newTestProcessor(t), zap.NewNop())

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, acked := client.snapshot()
		if len(acked) == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("acked = %v after deadline", acked)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	added, _ := client.snapshot()
	if len(added["template.rendered"]) != 3 {
		t.Errorf("results = %v", added["template.rendered"])
	}
}

func TestStartExistingGroup(t *testing.T) {
	client := newFakeStreams()
	client.groupErr = errors.New("BUSYGROUP Consumer Group name already exists")
	w := NewWorker(testConfig(), client, newTestProcessor(t), zap.NewNop())

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStartGroupError(t *testing.T) {
	client := newFakeStreams()
	client.groupErr = errors.New("NOAUTH Authentication required")
	w := NewWorker(testConfig(), client, newTestProcessor(t), zap.NewNop())

	if err := w.Start(); err == nil {
		t.Fatal("expected error")
	}
}

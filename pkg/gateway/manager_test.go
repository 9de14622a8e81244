package gateway

import (
	"context"
	"errors"
	"sync"
	"taskrunner/pkg/config"
	"taskrunner/pkg/monitor"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/utils"
	"testing"
	"time"
)

type fakeEngine struct {
	deadline time.Duration
	reqID    string
	env      task.Envelope
}

func (e *fakeEngine) Dispatch(ctx context.Context, text string) task.Envelope {
	if dl, ok := ctx.Deadline(); ok {
		e.deadline = time.Until(dl)
	}
	e.reqID = utils.RequestID(ctx)
	env := e.env
	env.RequestID = e.reqID
	return env
}

type fakeReader struct{}

func (fakeReader) Read(ctx context.Context, path string) ([]byte, error) {
	if path == "missing.txt" {
		return nil, taskerr.NotFound("file %q not found", path)
	}
	return []byte("content of " + path), nil
}

type recordingMonitor struct {
	mu      sync.Mutex
	events  []monitor.Event
	started bool
	stopped bool
}

func (m *recordingMonitor) Start() error { m.started = true; return nil }
func (m *recordingMonitor) Stop() error  { m.stopped = true; return nil }
func (m *recordingMonitor) OnEvent(ev monitor.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

type fakeChannel struct {
	id       string
	startErr error
	started  TaskContext
	stopped  bool
}

func (c *fakeChannel) ID() string { return c.id }
func (c *fakeChannel) Start(tc TaskContext) error {
	c.started = tc
	return c.startErr
}
func (c *fakeChannel) Stop() error { c.stopped = true; return nil }

func TestBuilderStartsChannels(t *testing.T) {
	mon := &recordingMonitor{}
	ch := &fakeChannel{id: "web"}

	gw, err := NewGatewayBuilder().
		WithMonitor(mon).
		WithEngine(&fakeEngine{}).
		WithReader(fakeReader{}).
		WithChannel(ch, nil).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !mon.started || ch.started != gw {
		t.Errorf("monitor started=%v, channel context=%v", mon.started, ch.started)
	}
	if got, ok := gw.GetChannel("web"); !ok || got != ch {
		t.Errorf("GetChannel = %v, %v", got, ok)
	}

	gw.StopAll()
	if !ch.stopped || !mon.stopped {
		t.Errorf("stop: channel=%v monitor=%v", ch.stopped, mon.stopped)
	}
}

func TestBuilderErrors(t *testing.T) {
	if _, err := NewGatewayBuilder().Build(); err == nil {
		t.Error("expected error without engine")
	}

	bad := &fakeChannel{id: "telegram", startErr: errors.New("no network")}
	if _, err := NewGatewayBuilder().WithEngine(&fakeEngine{}).WithChannel(bad).Build(); err == nil {
		t.Error("expected channel start error")
	}
	if !bad.stopped {
		t.Error("failed build should stop started channels")
	}
}

func TestSubmitReportsAndAppliesDeadline(t *testing.T) {
	mon := &recordingMonitor{}
	eng := &fakeEngine{env: task.Envelope{Status: task.StatusSuccess, Task: "A3 completed"}}

	gw := NewGatewayManager()
	gw.SetEngine(eng)
	gw.SetMonitor(mon)
	sys := config.DefaultSystemConfig()
	sys.TaskTimeoutMs = 2000
	gw.WithSystemConfig(sys)

	session := SessionContext{ChannelID: "web", Username: "tester"}
	env := gw.Submit(context.Background(), session, "count wednesdays")

	if !env.OK() || env.RequestID == "" {
		t.Fatalf("envelope = %+v", env)
	}
	if eng.reqID != env.RequestID {
		t.Errorf("engine saw request id %q, envelope has %q", eng.reqID, env.RequestID)
	}
	if eng.deadline <= 0 || eng.deadline > 2*time.Second {
		t.Errorf("deadline = %v", eng.deadline)
	}

	if len(mon.events) != 2 {
		t.Fatalf("events = %+v", mon.events)
	}
	if mon.events[0].Type != monitor.EventTask || mon.events[0].Content != "count wednesdays" {
		t.Errorf("task event = %+v", mon.events[0])
	}
	res := mon.events[1]
	if res.Type != monitor.EventResult || res.RequestID != env.RequestID || res.Status != task.StatusSuccess {
		t.Errorf("result event = %+v", res)
	}
	if res.Timestamp.IsZero() {
		t.Error("event timestamp not set")
	}
}

func TestSubmitKeepsCallerRequestID(t *testing.T) {
	eng := &fakeEngine{env: task.Envelope{Status: task.StatusSuccess}}
	gw := NewGatewayManager()
	gw.SetEngine(eng)

	ctx := utils.WithRequestID(context.Background(), "fixed-id")
	env := gw.Submit(ctx, SessionContext{}, "x")
	if env.RequestID != "fixed-id" || eng.reqID != "fixed-id" {
		t.Errorf("request id = %q / %q", env.RequestID, eng.reqID)
	}
	if eng.deadline != 0 {
		t.Errorf("no timeout configured, got deadline %v", eng.deadline)
	}
}

func TestSubmitWithoutEngine(t *testing.T) {
	env := NewGatewayManager().Submit(context.Background(), SessionContext{}, "x")
	if env.OK() || env.Kind != taskerr.KindHandlerExecution || env.HTTPStatus() != 500 {
		t.Errorf("envelope = %+v", env)
	}
}

func TestRead(t *testing.T) {
	mon := &recordingMonitor{}
	gw := NewGatewayManager()
	gw.SetMonitor(mon)

	if _, err := gw.Read(context.Background(), SessionContext{}, "a.txt"); !errors.Is(err, ErrNoEngine) {
		t.Errorf("err = %v", err)
	}

	gw.SetReader(fakeReader{})
	data, err := gw.Read(context.Background(), SessionContext{ChannelID: "web"}, "a.txt")
	if err != nil || string(data) != "content of a.txt" {
		t.Errorf("Read = %q, %v", data, err)
	}
	if _, err := gw.Read(context.Background(), SessionContext{}, "missing.txt"); !taskerr.IsKind(err, taskerr.KindNotFound) {
		t.Errorf("err = %v", err)
	}
	if len(mon.events) != 3 || mon.events[1].Type != monitor.EventRead || mon.events[1].Content != "a.txt" {
		t.Errorf("events = %+v", mon.events)
	}
}

func TestSetTaskTimeoutClamps(t *testing.T) {
	gw := NewGatewayManager()
	gw.SetTaskTimeout(-time.Second)
	if gw.TaskTimeout() != 0 {
		t.Errorf("timeout = %v", gw.TaskTimeout())
	}
}

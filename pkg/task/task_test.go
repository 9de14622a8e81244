package task

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/utils"
	"testing"
)

// recordingHandler counts invocations and returns a fixed outcome.
type recordingHandler struct {
	calls int
	res   *Result
	err   error
}

func (h *recordingHandler) Execute(ctx context.Context, req Request) (*Result, error) {
	h.calls++
	return h.res, h.err
}

func mustRegister(t *testing.T, r *Registry, id, label string, p Predicate, h Handler) {
	t.Helper()
	if err := r.Register(id, label, p, h); err != nil {
		t.Fatalf("Register(%s): %v", id, err)
	}
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func TestPredicates(t *testing.T) {
	all := AllOf("Count", "wednesdays")
	if !all("count the number of wednesdays") {
		t.Error("AllOf should match when every keyword is present")
	}
	if all("count the mondays") {
		t.Error("AllOf matched with a keyword missing")
	}
	if AllOf()("anything") {
		t.Error("empty AllOf must not match everything")
	}

	anyDay := AnyOf("mondays", "fridays")
	if !anyDay("count fridays") || anyDay("count sundays") {
		t.Error("AnyOf misbehaved")
	}
	if !Both(AllOf("count"), anyDay)("count mondays") {
		t.Error("Both should match when both predicates match")
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{res: &Result{}}

	if err := r.Register("", "A", AllOf("x"), h); err == nil {
		t.Error("expected error for empty id")
	}
	if err := r.Register("a", "A", nil, h); err == nil {
		t.Error("expected error for nil predicate")
	}
	if err := r.Register("a", "A", AllOf("x"), nil); err == nil {
		t.Error("expected error for nil handler")
	}
	mustRegister(t, r, "a", "A", AllOf("x"), h)
	if err := r.Register("a", "B", AllOf("y"), h); err == nil {
		t.Error("expected error for duplicate id")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestLookupFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	first := &recordingHandler{res: &Result{}}
	second := &recordingHandler{res: &Result{}}
	mustRegister(t, r, "format", "A2", AllOf("format"), first)
	mustRegister(t, r, "sort", "A4", AllOf("sort"), second)

	// Both predicates match; registration order decides, on every run.
	for i := 0; i < 50; i++ {
		d, ok := r.Lookup("Format and SORT the contacts")
		if !ok || d.ID != "format" {
			t.Fatalf("iteration %d: Lookup = %q, %v; want format", i, d.ID, ok)
		}
	}

	d, ok := r.Lookup("sort only")
	if !ok || d.ID != "sort" {
		t.Fatalf("Lookup = %q, want sort", d.ID)
	}

	ids := []string{}
	for _, d := range r.Descriptors() {
		ids = append(ids, d.ID)
	}
	if len(ids) != 2 || ids[0] != "format" || ids[1] != "sort" {
		t.Errorf("Descriptors order = %v", ids)
	}
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

func TestDispatchUnrecognized(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{res: &Result{}}
	mustRegister(t, r, "count", "A3", AllOf("count", "wednesdays"), h)

	env := NewDispatcher(r).Dispatch(context.Background(), "Make me a sandwich")
	if env.Status != StatusError || env.Kind != taskerr.KindUnrecognizedTask {
		t.Fatalf("envelope = %+v, want UnrecognizedTask", env)
	}
	if env.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want 400", env.HTTPStatus())
	}
	if h.calls != 0 {
		t.Errorf("handler ran %d times for an unmatched task", h.calls)
	}
	if env.RequestID == "" {
		t.Error("envelope has no request id")
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{res: &Result{Detail: "counted 2", Output: "dates-wednesdays.txt"}}
	mustRegister(t, r, "count", "A3", AllOf("count", "wednesdays"), h)

	ctx := utils.WithRequestID(context.Background(), "req-1")
	env := NewDispatcher(r).Dispatch(ctx, "Count the number of Wednesdays")
	if !env.OK() {
		t.Fatalf("envelope = %+v, want success", env)
	}
	if env.Task != "A3 completed" || env.Detail != "counted 2" || env.Output != "dates-wednesdays.txt" {
		t.Errorf("envelope = %+v", env)
	}
	if env.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", env.RequestID)
	}
	if h.calls != 1 {
		t.Errorf("handler calls = %d, want exactly 1", h.calls)
	}
}

func TestDispatchPreservesCasingForHandler(t *testing.T) {
	r := NewRegistry()
	var seen Request
	mustRegister(t, r, "echo", "E", AllOf("extract"), HandlerFunc(func(ctx context.Context, req Request) (*Result, error) {
		seen = req
		return &Result{Detail: "ok"}, nil
	}))

	NewDispatcher(r).Dispatch(context.Background(), "EXTRACT Alice@Example.com")
	if seen.Text != "EXTRACT Alice@Example.com" {
		t.Errorf("Text = %q, original casing lost", seen.Text)
	}
	if seen.Lower != "extract alice@example.com" {
		t.Errorf("Lower = %q", seen.Lower)
	}
}

func TestDispatchErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   taskerr.Kind
		status int
	}{
		{"missing parameter", taskerr.MissingParameter("email not found"), taskerr.KindMissingParameter, 400},
		{"not found", taskerr.NotFound("dates.txt does not exist"), taskerr.KindNotFound, 500},
		{"path violation", taskerr.PathViolation("outside"), taskerr.KindPathViolation, 400},
		{"untyped", errors.New("exit status 1"), taskerr.KindHandlerExecution, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			mustRegister(t, r, "h", "A1", AllOf("go"), &recordingHandler{err: tt.err})
			env := NewDispatcher(r).Dispatch(context.Background(), "go")
			if env.Status != StatusError || env.Kind != tt.kind {
				t.Fatalf("envelope = %+v, want kind %s", env, tt.kind)
			}
			if env.HTTPStatus() != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", env.HTTPStatus(), tt.status)
			}
			if env.Detail == "" || env.Task != "A1" {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "boom", "A9", AllOf("boom"), HandlerFunc(func(ctx context.Context, req Request) (*Result, error) {
		panic("index out of range")
	}))

	env := NewDispatcher(r).Dispatch(context.Background(), "boom")
	if env.Kind != taskerr.KindHandlerExecution {
		t.Fatalf("envelope = %+v, want HandlerExecutionError", env)
	}
}

func TestDispatchNilResult(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "nil", "A0", AllOf("nil"), &recordingHandler{})
	env := NewDispatcher(r).Dispatch(context.Background(), "nil")
	if env.Kind != taskerr.KindHandlerExecution {
		t.Fatalf("envelope = %+v, want HandlerExecutionError", env)
	}
}

// ---------------------------------------------------------------------------
// Reader
// ---------------------------------------------------------------------------

func TestReader(t *testing.T) {
	sb, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sb.Root(), "out.txt"), []byte("2"), 0644); err != nil {
		t.Fatal(err)
	}
	rd := NewReader(sb)
	ctx := context.Background()

	data, err := rd.Read(ctx, "out.txt")
	if err != nil || string(data) != "2" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if _, err := rd.Read(ctx, "nope.txt"); !taskerr.IsKind(err, taskerr.KindNotFound) {
		t.Errorf("Read(missing) error = %v, want NotFound", err)
	}
	if _, err := rd.Read(ctx, "out.txt/nope"); !taskerr.IsKind(err, taskerr.KindNotFound) {
		t.Errorf("Read(through file) error = %v, want NotFound", err)
	}
	if _, err := rd.Read(ctx, "../../etc/passwd"); !taskerr.IsKind(err, taskerr.KindPathViolation) {
		t.Errorf("Read(escape) error = %v, want PathViolation", err)
	}
}

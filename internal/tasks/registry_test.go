package tasks

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gend/internal/textproc"
	"gend/pkg/types"
)

// waitTerminal polls Receive until the task reports a terminal state,
// returning the concatenated text and the final result.
func waitTerminal(t *testing.T, r *Registry, id int64) (string, Result) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var text strings.Builder
	for {
		res, err := r.Receive(id)
		if err != nil {
			t.Fatalf("receive %d: %v", id, err)
		}
		text.WriteString(res.Text)
		if res.Done {
			return text.String(), res
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %d did not finish in time", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRequestValidation(t *testing.T) {
	r := newTestRegistry(&fakeAdapter{})
	defer r.Close()

	cases := []struct {
		name string
		req  types.CompletionRequest
	}{
		{"empty prompt", types.CompletionRequest{}},
		{"blank prompt", types.CompletionRequest{Prompt: "   "}},
		{"negative max tokens", types.CompletionRequest{Prompt: "hi", MaxTokens: -1}},
		{"oversized max tokens", types.CompletionRequest{Prompt: "hi", MaxTokens: 1 << 20}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := r.Request(c.req); !IsInvalidParameters(err) {
				t.Fatalf("expected invalid parameters, got %v", err)
			}
		})
	}
}

func TestRequestRejectsBadGrammar(t *testing.T) {
	fake := &fakeAdapter{}
	r := newTestRegistry(fake)
	defer r.Close()

	_, err := r.Request(types.CompletionRequest{Prompt: "hi", Grammar: `root ::= [^abc`})
	if !IsInvalidGrammar(err) {
		t.Fatalf("expected invalid grammar, got %v", err)
	}
	if !textproc.IsMalformedPattern(errors.Unwrap(err)) {
		t.Fatalf("expected malformed pattern cause, got %v", errors.Unwrap(err))
	}
	// No task must be registered and the engine must never have started.
	if n := len(r.Status().Tasks); n != 0 {
		t.Fatalf("expected no registered tasks, got %d", n)
	}
	if fake.starts != 0 {
		t.Fatalf("engine started despite grammar failure")
	}
}

func TestRequestAssignsMonotonicIDs(t *testing.T) {
	r := newTestRegistry(&fakeAdapter{tokens: []string{"x"}})
	defer r.Close()

	id0, err := r.Request(types.CompletionRequest{Prompt: "a"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	id1, err := r.Request(types.CompletionRequest{Prompt: "b"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if id0 != 0 || id1 != 1 {
		t.Fatalf("expected ids 0,1 got %d,%d", id0, id1)
	}
	r.Release(id0)
	id2, err := r.Request(types.CompletionRequest{Prompt: "c"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if id2 != 2 {
		t.Fatalf("released id must not be reused: got %d", id2)
	}
}

func TestReceiveDrainsInOrder(t *testing.T) {
	r := newTestRegistry(&fakeAdapter{tokens: []string{"Hel", "lo", " wor", "ld"}})
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "greet", MaxTokens: 5})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	text, res := waitTerminal(t, r, id)
	if text != "Hello world" {
		t.Fatalf("expected %q got %q", "Hello world", text)
	}
	if res.State != StateCompleted {
		t.Fatalf("expected completed, got %s", res.State)
	}
	// Drained: further receives stay empty with Done set.
	again, err := r.Receive(id)
	if err != nil {
		t.Fatalf("receive after drain: %v", err)
	}
	if again.Text != "" || !again.Done {
		t.Fatalf("expected empty terminal result, got %+v", again)
	}
}

func TestReceiveUnknownTask(t *testing.T) {
	r := newTestRegistry(&fakeAdapter{})
	defer r.Close()
	if _, err := r.Receive(42); !IsUnknownTask(err) {
		t.Fatalf("expected unknown task, got %v", err)
	}
}

func TestGrammarNormalizedBeforeEngine(t *testing.T) {
	fake := &fakeAdapter{tokens: []string{"a"}}
	r := newTestRegistry(fake)
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "hi", Grammar: `root ::= [^a]+`})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	waitTerminal(t, r, id)

	want, err := textproc.PreprocessGrammar(`root ::= [^a]+`)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	fake.mu.Lock()
	got := fake.lastParams.Grammar
	fake.mu.Unlock()
	if got != want {
		t.Fatalf("engine saw grammar %q, expected %q", got, want)
	}
	if strings.Contains(got, "[^") {
		t.Fatalf("negated class leaked to the engine: %q", got)
	}
}

func TestCancelStopsRunningTask(t *testing.T) {
	fake := &fakeAdapter{tokens: []string{"tick"}, hang: true}
	r := newTestRegistry(fake)
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	// Wait until the worker produced something, then cancel.
	deadline := time.Now().Add(2 * time.Second)
	var got string
	for got == "" {
		res, err := r.Receive(id)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		got += res.Text
		if time.Now().After(deadline) {
			t.Fatalf("no output before cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Cancel(id)
	res, err := r.Receive(id)
	if err != nil {
		t.Fatalf("receive after cancel: %v", err)
	}
	if !res.Done || res.State != StateCancelled {
		t.Fatalf("expected cancelled terminal state, got %+v", res)
	}
	// Cancel is idempotent.
	r.Cancel(id)
	res2, err := r.Receive(id)
	if err != nil {
		t.Fatalf("receive after second cancel: %v", err)
	}
	if res2.State != StateCancelled {
		t.Fatalf("second cancel changed state: %+v", res2)
	}
}

func TestCancelUnknownOrTerminalIsNoop(t *testing.T) {
	r := newTestRegistry(&fakeAdapter{tokens: []string{"x"}})
	defer r.Close()

	r.Cancel(99) // unknown: silent

	id, err := r.Request(types.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_, res := waitTerminal(t, r, id)
	if res.State != StateCompleted {
		t.Fatalf("expected completed, got %s", res.State)
	}
	r.Cancel(id) // terminal: silent, state unchanged
	after, err := r.Receive(id)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if after.State != StateCompleted {
		t.Fatalf("cancel on terminal task changed state to %s", after.State)
	}
}

func TestReleaseNeverResurrects(t *testing.T) {
	r := newTestRegistry(&fakeAdapter{tokens: []string{"x"}})
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	waitTerminal(t, r, id)
	r.Release(id)

	if _, err := r.Receive(id); !IsUnknownTask(err) {
		t.Fatalf("released id resurrected: %v", err)
	}
	r.Cancel(id)  // no-op, no panic
	r.Release(id) // idempotent
	if _, err := r.Receive(id); !IsUnknownTask(err) {
		t.Fatalf("released id resurrected after second release: %v", err)
	}
}

func TestReleaseWhileRunningStopsWorker(t *testing.T) {
	fake := &fakeAdapter{tokens: []string{"tick"}, hang: true}
	r := newTestRegistry(fake)

	id, err := r.Request(types.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	r.Release(id)
	if _, err := r.Receive(id); !IsUnknownTask(err) {
		t.Fatalf("expected unknown task after release, got %v", err)
	}
	// Close waits for the worker; it must have observed the stop.
	r.Close()
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.closes != fake.starts {
		t.Fatalf("sessions not torn down: %d starts, %d closes", fake.starts, fake.closes)
	}
}

func TestFailedTaskDeliversErrorOnce(t *testing.T) {
	fake := &fakeAdapter{tokens: []string{"par"}, genErr: errors.New("decode blew up")}
	r := newTestRegistry(fake)
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	var failed Result
	for {
		res, err := r.Receive(id)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if res.Done {
			failed = res
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task did not fail in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if failed.State != StateFailed {
		t.Fatalf("expected failed, got %s", failed.State)
	}
	if failed.Err == "" {
		t.Fatalf("expected captured error in result")
	}
	next, err := r.Receive(id)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if next.Err != "" {
		t.Fatalf("error delivered twice: %+v", next)
	}
}

func TestEngineStartFailureFailsTask(t *testing.T) {
	fake := &fakeAdapter{startErr: errors.New("model file missing")}
	r := newTestRegistry(fake)
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("request must succeed before the engine starts: %v", err)
	}
	_, res := waitTerminal(t, r, id)
	if res.State != StateFailed || res.Err == "" {
		t.Fatalf("expected failed with captured error, got %+v", res)
	}
}

func TestTasksProgressIndependently(t *testing.T) {
	blocked := &fakeAdapter{tokens: []string{"slow"}, hang: true}
	r := newTestRegistry(blocked)
	defer r.Close()

	slow, err := r.Request(types.CompletionRequest{Prompt: "slow"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	fast, err := r.Request(types.CompletionRequest{Prompt: "fast"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	// Both share the hanging adapter, but control-plane calls on one id
	// must not block on the other's generation.
	if _, err := r.Receive(fast); err != nil {
		t.Fatalf("receive fast: %v", err)
	}
	r.Cancel(fast)
	res, err := r.Receive(fast)
	if err != nil {
		t.Fatalf("receive fast after cancel: %v", err)
	}
	if !res.Done {
		t.Fatalf("fast task not terminal after cancel")
	}
	r.Cancel(slow)
}

func TestRequestScenarioWithNegatedGrammar(t *testing.T) {
	fake := &fakeAdapter{tokens: []string{"ok"}}
	r := newTestRegistry(fake)
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "Hello", Grammar: `[^a]`, MaxTokens: 5})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if id < 0 {
		t.Fatalf("expected non-negative id, got %d", id)
	}
	if _, err := r.Receive(id); err != nil {
		t.Fatalf("immediate receive: %v", err)
	}
	_, res := waitTerminal(t, r, id)
	if res.State != StateCompleted {
		t.Fatalf("expected completed, got %s", res.State)
	}
	fake.mu.Lock()
	g := fake.lastParams.Grammar
	n := fake.lastParams.MaxTokens
	fake.mu.Unlock()
	want, err := textproc.PreprocessPattern(`[^a]`)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if g != want {
		t.Fatalf("engine saw grammar %q, expected expansion %q", g, want)
	}
	if n != 5 {
		t.Fatalf("expected n_predict 5, got %d", n)
	}
}

func TestCloseRefusesNewWork(t *testing.T) {
	r := newTestRegistry(&fakeAdapter{tokens: []string{"x"}})
	r.Close()
	if _, err := r.Request(types.CompletionRequest{Prompt: "hi"}); !IsInvalidParameters(err) {
		t.Fatalf("expected rejection after close, got %v", err)
	}
	if r.Ready() {
		t.Fatalf("registry still ready after close")
	}
}

func TestDefaultMaxTokensApplied(t *testing.T) {
	fake := &fakeAdapter{tokens: []string{"x"}}
	r := newTestRegistry(fake)
	defer r.Close()

	id, err := r.Request(types.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	waitTerminal(t, r, id)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.lastParams.MaxTokens != defaultMaxTokens {
		t.Fatalf("expected default n_predict %d, got %d", defaultMaxTokens, fake.lastParams.MaxTokens)
	}
}

package tasks

import (
	"context"
	"sync"
	"time"
)

// State represents the lifecycle state of a completion task.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further output can arrive in this state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Task is one in-flight or finished generation request. The registry owns
// tasks by id; the per-task worker is the only producer of result chunks.
type Task struct {
	id      int64
	created time.Time

	prompt    string
	maxTokens int
	grammar   string // normalized, empty for unconstrained

	// cancel stops the worker's generation context. Safe to call more
	// than once.
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	buf          []string // chunks produced but not yet received
	genErr       error    // captured runtime failure
	errDelivered bool
}

// Result is what one Receive call drains: the text produced since the
// previous call plus the terminal flag.
type Result struct {
	Text  string
	Done  bool
	State State
	Err   string
}

// drain moves buffered output out of the task. The captured generation
// error is delivered exactly once.
func (t *Task) drain() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	var text string
	if len(t.buf) > 0 {
		n := 0
		for _, c := range t.buf {
			n += len(c)
		}
		b := make([]byte, 0, n)
		for _, c := range t.buf {
			b = append(b, c...)
		}
		text = string(b)
		t.buf = nil
	}
	res := Result{Text: text, Done: t.state.Terminal(), State: t.state}
	if t.genErr != nil && !t.errDelivered {
		res.Err = t.genErr.Error()
		t.errDelivered = true
	}
	return res
}

// append buffers a produced chunk. Appends are refused once the task left
// the Running state so a racing cancel/release never revives output.
func (t *Task) append(chunk string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return false
	}
	t.buf = append(t.buf, chunk)
	return true
}

package tasks

import (
	"context"
	"errors"

	"gend/internal/engine"
)

// errStopAppend makes the engine callback unwind generation once the task
// left the Running state.
var errStopAppend = errors.New("task no longer accepts output")

// run drives one task's generation on its own goroutine. The worker owns
// the engine session end to end: it opens it, feeds chunks into the task
// buffer while Running, and tears the session down itself after observing
// a stop, so the control plane never races a live handle.
func (r *Registry) run(ctx context.Context, t *Task) {
	defer r.wg.Done()

	sess, err := r.adapter.Start(r.modelPath, engine.Params{
		MaxTokens: t.maxTokens,
		Grammar:   t.grammar,
		CtxSize:   r.ctxSize,
		Threads:   r.threads,
	})
	if err != nil {
		r.finish(t, StateFailed, err)
		return
	}

	t.mu.Lock()
	if t.state != StatePending {
		// Cancelled or released before the worker got going.
		t.mu.Unlock()
		_ = sess.Close()
		return
	}
	t.state = StateRunning
	t.mu.Unlock()

	_, genErr := sess.Generate(ctx, t.prompt, func(tok string) error {
		if !t.append(tok) {
			return errStopAppend
		}
		return nil
	})
	_ = sess.Close()

	switch {
	case errors.Is(genErr, errStopAppend), ctx.Err() != nil:
		// Stop was requested; Cancel/Release already set the state and
		// accounted for the task.
	case genErr != nil:
		r.finish(t, StateFailed, genErr)
	default:
		r.finish(t, StateCompleted, nil)
	}
}

// finish moves a task the worker still owns into a terminal state. Tasks
// already driven terminal by the control plane are left untouched.
func (r *Registry) finish(t *Task, state State, genErr error) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state = state
	t.genErr = genErr
	t.mu.Unlock()

	tasksFinished.WithLabelValues(string(state)).Inc()
	tasksInflight.Dec()
	if genErr != nil {
		r.log.Debug().Int64("task_id", t.id).Err(genErr).Msg("task failed")
	} else {
		r.log.Debug().Int64("task_id", t.id).Msg("task finished")
	}
}

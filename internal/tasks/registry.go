// Package tasks implements the completion task registry: asynchronous
// generation jobs keyed by a monotonically assigned integer id, with
// request/receive/cancel/release semantics over the engine runtime.
package tasks

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"gend/internal/engine"
	"gend/internal/textproc"
	"gend/pkg/types"
)

const (
	// defaultMaxTokens applies when the request leaves n_predict at 0.
	defaultMaxTokens = 10
	// maxTokensLimit bounds n_predict; beyond it the request is rejected.
	maxTokensLimit = 4096
)

// Config carries registry construction parameters. Zero values fall back
// to package defaults.
type Config struct {
	Adapter   engine.Adapter
	ModelPath string
	CtxSize   int
	Threads   int

	DefaultMaxTokens int
	MaxTokensLimit   int

	Logger zerolog.Logger
}

// Registry owns all completion tasks. The map is guarded as a whole for
// structural changes; each task carries its own lock so operations on
// distinct ids never contend.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[int64]*Task
	nextID int64
	closed bool

	adapter   engine.Adapter
	modelPath string
	ctxSize   int
	threads   int

	defMaxTokens int
	maxTokens    int

	started time.Time
	total   atomic.Uint64
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// New constructs a Registry around the given engine adapter.
func New(cfg Config) *Registry {
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = defaultMaxTokens
	}
	if cfg.MaxTokensLimit <= 0 {
		cfg.MaxTokensLimit = maxTokensLimit
	}
	return &Registry{
		tasks:        make(map[int64]*Task),
		adapter:      cfg.Adapter,
		modelPath:    cfg.ModelPath,
		ctxSize:      cfg.CtxSize,
		threads:      cfg.Threads,
		defMaxTokens: cfg.DefaultMaxTokens,
		maxTokens:    cfg.MaxTokensLimit,
		started:      time.Now(),
		log:          cfg.Logger,
	}
}

// Request validates and registers a new completion task and hands it to a
// worker goroutine. It returns the assigned id immediately and never
// blocks on generation. A grammar that fails preprocessing aborts the
// request; no task is left registered.
func (r *Registry) Request(req types.CompletionRequest) (int64, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return 0, ErrInvalidParameters("prompt is required")
	}
	if req.MaxTokens < 0 || req.MaxTokens > r.maxTokens {
		return 0, ErrInvalidParameters("n_predict out of range")
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = r.defMaxTokens
	}

	grammar := ""
	if req.Grammar != "" {
		g, err := textproc.PreprocessGrammar(req.Grammar)
		if err != nil {
			preprocessFailures.Inc()
			return 0, ErrInvalidGrammar(err)
		}
		grammar = g
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		created:   time.Now(),
		prompt:    req.Prompt,
		maxTokens: maxTokens,
		grammar:   grammar,
		cancel:    cancel,
		state:     StatePending,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return 0, ErrInvalidParameters("registry is shut down")
	}
	t.id = r.nextID
	r.nextID++
	r.tasks[t.id] = t
	r.mu.Unlock()

	r.total.Add(1)
	tasksStarted.Inc()
	tasksInflight.Inc()

	r.log.Debug().Int64("task_id", t.id).Int("n_predict", maxTokens).
		Bool("grammar", grammar != "").Msg("task registered")

	r.wg.Add(1)
	go r.run(ctx, t)
	return t.id, nil
}

// Receive drains the output accumulated since the previous call for id.
// Once a terminal state is reached the residue is delivered on the next
// call; after that Receive keeps returning empty results with Done set.
func (r *Registry) Receive(id int64) (Result, error) {
	r.mu.RLock()
	t := r.tasks[id]
	r.mu.RUnlock()
	if t == nil {
		return Result{}, ErrUnknownTask(id)
	}
	return t.drain(), nil
}

// Cancel requests a stop for a running task. Unknown or already terminal
// ids are silent no-ops: a caller racing cancellation against natural
// completion is expected, not an error. The task stays registered until
// Release.
func (r *Registry) Cancel(id int64) {
	r.mu.RLock()
	t := r.tasks[id]
	r.mu.RUnlock()
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state = StateCancelled
	t.mu.Unlock()
	// The worker observes the canceled context at its next checkpoint and
	// performs session teardown itself.
	t.cancel()
	tasksFinished.WithLabelValues(string(StateCancelled)).Inc()
	tasksInflight.Dec()
	r.log.Debug().Int64("task_id", id).Msg("task cancelled")
}

// Release unregisters id and frees its buffered results. A running task
// is stopped first, exactly like Cancel, so the worker never writes into
// a task the caller has let go. Unknown ids are silent no-ops. Released
// ids are never reused.
func (r *Registry) Release(id int64) {
	r.mu.Lock()
	t := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()
	if t == nil {
		return
	}
	t.mu.Lock()
	terminal := t.state.Terminal()
	if !terminal {
		t.state = StateCancelled
	}
	t.buf = nil
	t.mu.Unlock()
	if !terminal {
		t.cancel()
		tasksFinished.WithLabelValues(string(StateCancelled)).Inc()
		tasksInflight.Dec()
	}
	r.log.Debug().Int64("task_id", id).Msg("task released")
}

// ConvertPattern normalizes a regex-like pattern for the constrained
// sampler without registering a task.
func (r *Registry) ConvertPattern(input string) (string, error) {
	out, err := textproc.PreprocessPattern(input)
	if err != nil {
		preprocessFailures.Inc()
	}
	return out, err
}

// ConvertGrammar normalizes grammar text without registering a task.
func (r *Registry) ConvertGrammar(input string) (string, error) {
	out, err := textproc.PreprocessGrammar(input)
	if err != nil {
		preprocessFailures.Inc()
	}
	return out, err
}

// Ready reports whether the registry can accept work.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed
}

// Status returns a read-only projection of registered tasks.
func (r *Registry) Status() types.StatusResponse {
	r.mu.RLock()
	ts := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		ts = append(ts, t)
	}
	r.mu.RUnlock()

	out := types.StatusResponse{
		UptimeSeconds:  int64(time.Since(r.started).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		TasksTotal:     r.total.Load(),
		Tasks:          make([]types.TaskStatus, 0, len(ts)),
	}
	if r.modelPath != "" {
		out.ModelID = filepath.Base(r.modelPath)
	}
	for _, t := range ts {
		t.mu.Lock()
		out.Tasks = append(out.Tasks, types.TaskStatus{
			TaskID:         t.id,
			State:          string(t.state),
			BufferedChunks: len(t.buf),
			CreatedUnix:    t.created.Unix(),
		})
		t.mu.Unlock()
	}
	return out
}

// Close stops all running tasks and waits for their workers. Intended for
// process shutdown only; the registry refuses new requests afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	ts := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		ts = append(ts, t)
	}
	r.mu.Unlock()
	for _, t := range ts {
		r.Cancel(t.id)
	}
	r.wg.Wait()
}

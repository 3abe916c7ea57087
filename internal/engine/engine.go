// Package engine abstracts the native generation runtime. The real
// llama.cpp implementation is compiled in with the 'llama' build tag;
// default builds get a fail-fast stub so CI stays CGO-free.
package engine

import "context"

// Adapter starts generation sessions against a model file.
type Adapter interface {
	// Start loads the model and prepares a session with the given
	// parameters. The grammar, if any, must already be normalized.
	Start(modelPath string, params Params) (Session, error)
}

// Session is one generation handle. Generate streams produced text through
// onToken and returns when the runtime is done, the context is canceled,
// or onToken returns an error. Close releases runtime-side resources and
// must be called exactly once, by whoever drives the session.
type Session interface {
	Generate(ctx context.Context, prompt string, onToken func(string) error) (Final, error)
	Close() error
}

// Built reports whether the native runtime was compiled into this binary.
func Built() bool { return llamaBuilt }

// Params captures the generation parameters handed to the runtime.
type Params struct {
	MaxTokens int
	Grammar   string // normalized grammar text, empty for unconstrained
	CtxSize   int
	Threads   int
}

// Final summarizes a finished generation.
type Final struct {
	Content      string
	FinishReason string
}

// runtimeUnavailableError signals that the native runtime is not present
// in this build or failed to initialize.
type runtimeUnavailableError struct{ msg string }

func (e runtimeUnavailableError) Error() string { return e.msg }

// ErrRuntimeUnavailable constructs a runtimeUnavailableError.
func ErrRuntimeUnavailable(msg string) error { return runtimeUnavailableError{msg: msg} }

// IsRuntimeUnavailable reports whether err indicates a missing runtime.
func IsRuntimeUnavailable(err error) bool {
	_, ok := err.(runtimeUnavailableError)
	return ok
}

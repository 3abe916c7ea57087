//go:build !llama

package engine

// This file provides a no-CGO stub for the llama adapter. It is compiled
// when the 'llama' build tag is NOT set, keeping default builds CGO-free.
// The real adapter lives in llama.go (tagged 'llama').

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

type llamaAdapter struct{}

// NewLlamaAdapter returns a stub that satisfies Adapter but refuses to run
// generation without the 'llama' build tag. No mocked output in production
// binaries.
func NewLlamaAdapter() Adapter { return &llamaAdapter{} }

func (a *llamaAdapter) Start(modelPath string, params Params) (Session, error) {
	return nil, ErrRuntimeUnavailable("llama support not built (missing 'llama' build tag)")
}

//go:build llama

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"gend/internal/common/fsutil"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaAdapter loads GGUF models through go-llama.cpp.
type llamaAdapter struct{}

// NewLlamaAdapter returns the in-process llama.cpp adapter.
func NewLlamaAdapter() Adapter { return &llamaAdapter{} }

// llamaSession owns the loaded model for one generation.
type llamaSession struct {
	model  *llama.LLama
	params Params
}

func (a *llamaAdapter) Start(modelPath string, params Params) (Session, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if !fsutil.PathExists(modelPath) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	mo := []llama.ModelOption{}
	if params.CtxSize > 0 {
		mo = append(mo, llama.SetContext(params.CtxSize))
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaSession{model: m, params: params}, nil
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (Final, error) {
	if s.model == nil {
		return Final{}, errors.New("llama model not initialized")
	}

	// Bridge token streaming to onToken; a false return stops generation
	// at the runtime's next checkpoint.
	s.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if err := onToken(tok); err != nil {
			return false
		}
		return true
	})

	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, s.params.MaxTokens)),
		llama.SetThreads(maxInt(1, s.params.Threads)),
	}
	if s.params.Grammar != "" {
		po = append(po, llama.SetGrammar(s.params.Grammar))
	}
	text, err := s.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return Final{}, ctx.Err()
		}
		return Final{}, err
	}
	return Final{Content: text, FinishReason: "stop"}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

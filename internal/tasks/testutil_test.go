package tasks

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"gend/internal/engine"
)

// fakeAdapter is a scriptable engine for registry tests: it emits a fixed
// token sequence and can fail at start, fail mid-generation, or hang
// until canceled.
type fakeAdapter struct {
	mu         sync.Mutex
	startErr   error
	tokens     []string
	genErr     error
	hang       bool // after emitting tokens, wait for cancellation
	starts     int
	lastParams engine.Params
	closes     int
}

func (f *fakeAdapter) Start(modelPath string, params engine.Params) (engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.lastParams = params
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeSession{a: f}, nil
}

type fakeSession struct{ a *fakeAdapter }

func (s *fakeSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (engine.Final, error) {
	s.a.mu.Lock()
	tokens := s.a.tokens
	genErr := s.a.genErr
	hang := s.a.hang
	s.a.mu.Unlock()

	var content string
	for _, tok := range tokens {
		select {
		case <-ctx.Done():
			return engine.Final{}, ctx.Err()
		default:
		}
		if err := onToken(tok); err != nil {
			return engine.Final{}, err
		}
		content += tok
	}
	if hang {
		<-ctx.Done()
		return engine.Final{}, ctx.Err()
	}
	if genErr != nil {
		return engine.Final{}, genErr
	}
	return engine.Final{Content: content, FinishReason: "stop"}, nil
}

func (s *fakeSession) Close() error {
	s.a.mu.Lock()
	s.a.closes++
	s.a.mu.Unlock()
	return nil
}

func newTestRegistry(a engine.Adapter) *Registry {
	return New(Config{Adapter: a, ModelPath: "fake.gguf", Logger: zerolog.Nop()})
}

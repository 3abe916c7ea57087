package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"gend/internal/engine"
	"gend/internal/httpapi"
	"gend/internal/registry"
	"gend/internal/tasks"
)

// scriptedAdapter is an in-process engine that replays a fixed token
// sequence so the whole HTTP surface can be exercised without a native
// runtime.
type scriptedAdapter struct {
	mu         sync.Mutex
	tokens     []string
	hang       bool
	lastParams engine.Params
}

func (a *scriptedAdapter) Start(modelPath string, params engine.Params) (engine.Session, error) {
	a.mu.Lock()
	a.lastParams = params
	a.mu.Unlock()
	return &scriptedSession{a: a}, nil
}

type scriptedSession struct{ a *scriptedAdapter }

func (s *scriptedSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (engine.Final, error) {
	s.a.mu.Lock()
	tokens := s.a.tokens
	hang := s.a.hang
	s.a.mu.Unlock()

	var content string
	for _, tok := range tokens {
		if err := onToken(tok); err != nil {
			return engine.Final{}, err
		}
		content += tok
	}
	if hang {
		<-ctx.Done()
		return engine.Final{}, ctx.Err()
	}
	return engine.Final{Content: content, FinishReason: "stop"}, nil
}

func (s *scriptedSession) Close() error { return nil }

// createTempModelsDir creates a temporary directory populated with empty
// .gguf files and returns the directory path.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", n, err)
		}
	}
	return dir
}

func newServer(t *testing.T, a engine.Adapter) (*httptest.Server, *tasks.Registry) {
	t.Helper()
	dir := createTempModelsDir(t, "tiny.gguf")
	models, err := registry.LoadDir(dir)
	if err != nil {
		t.Fatalf("load models: %v", err)
	}
	model, ok := registry.Find(models, "")
	if !ok {
		t.Fatalf("expected a single model in %s", dir)
	}
	reg := tasks.New(tasks.Config{Adapter: a, ModelPath: model.Path, Logger: zerolog.Nop()})
	t.Cleanup(reg.Close)
	srv := httptest.NewServer(httpapi.NewMux(reg, models))
	t.Cleanup(srv.Close)
	return srv, reg
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out
}

func getJSON(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out
}

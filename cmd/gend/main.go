package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gend/internal/config"
	"gend/internal/engine"
	"gend/internal/httpapi"
	"gend/internal/registry"
	"gend/internal/tasks"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envOr("GEND_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	modelsDir := flag.String("models-dir", envOr("GEND_MODELS_DIR", "~/models/llm"), "Directory to scan for *.gguf model files")
	model := flag.String("model", envOr("GEND_MODEL", ""), "Model id to load (required when the directory holds more than one)")
	configPath := flag.String("config", envOr("GEND_CONFIG", ""), "Optional config file (.yaml/.json/.toml)")
	ctxSize := flag.Int("ctx-size", 0, "Context window size in tokens (0=engine default)")
	threads := flag.Int("threads", 0, "Inference threads (0=engine default)")
	defaultMaxTokens := flag.Int("default-max-tokens", 0, "Tokens generated when a request omits n_predict (0=built-in default)")
	logLevel := flag.String("log-level", envOr("GEND_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	corsOrigins := flag.String("cors-origins", envOr("GEND_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (empty disables CORS)")
	maxBodyBytes := flag.Int64("max-body-bytes", 0, "Maximum JSON request body size in bytes (0=built-in default)")
	flag.Parse()

	cfg := config.Config{}
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = c
	}
	// Flags win over the config file; config fills in what flags left unset.
	if cfg.Addr == "" || *addr != ":8080" {
		cfg.Addr = *addr
	}
	if cfg.ModelsDir == "" || *modelsDir != "~/models/llm" {
		cfg.ModelsDir = *modelsDir
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *ctxSize > 0 {
		cfg.CtxSize = *ctxSize
	}
	if *threads > 0 {
		cfg.Threads = *threads
	}
	if *defaultMaxTokens > 0 {
		cfg.DefaultMaxTokens = *defaultMaxTokens
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	httpapi.SetLogger(logger)

	if *corsOrigins != "" {
		httpapi.SetCORSOptions(true,
			strings.Split(*corsOrigins, ","),
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Content-Type"})
	}
	httpapi.SetMaxBodyBytes(*maxBodyBytes)

	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.ModelsDir).Msg("failed to load models")
	}
	selected, ok := registry.Find(models, cfg.Model)
	if !ok {
		if cfg.Model == "" {
			logger.Fatal().Int("count", len(models)).Msg("no single model to select; pass -model")
		}
		logger.Fatal().Str("model", cfg.Model).Msg("model not found in models dir")
	}

	if !engine.Built() {
		logger.Warn().Msg("built without the llama tag; completion tasks will fail at start")
	}

	reg := tasks.New(tasks.Config{
		Adapter:          engine.NewLlamaAdapter(),
		ModelPath:        selected.Path,
		CtxSize:          cfg.CtxSize,
		Threads:          cfg.Threads,
		DefaultMaxTokens: cfg.DefaultMaxTokens,
		MaxTokensLimit:   cfg.MaxTokensLimit,
		Logger:           logger,
	})

	mux := httpapi.NewMux(reg, models)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("model", selected.ID).Msg("gend listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	// Stop accepting work and wait for in-flight generations to unwind.
	reg.Close()
}

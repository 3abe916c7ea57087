package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gend/internal/tasks"
	"gend/internal/textproc"
	"gend/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Request(req types.CompletionRequest) (int64, error)
	Receive(id int64) (tasks.Result, error)
	Cancel(id int64)
	Release(id int64)
	ConvertPattern(input string) (string, error)
	ConvertGrammar(input string) (string, error)
	Status() types.StatusResponse
	Ready() bool
}

// NewMux builds the HTTP handler. models is the static list discovered at
// startup, served on /models.
func NewMux(svc Service, models []types.Model) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/completions", func(w http.ResponseWriter, r *http.Request) {
		var req types.CompletionRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		start := time.Now()
		id, err := svc.Request(req)
		if err != nil {
			writeJSONError(w, submitStatus(err), err.Error())
			logRequest(r, "completion rejected", submitStatus(err), start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.CompletionResponse{TaskID: id})
		logRequest(r, "completion registered", http.StatusOK, start, nil)
	})

	r.Get("/completions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskID(w, r)
		if !ok {
			return
		}
		res, err := svc.Receive(id)
		if err != nil {
			if tasks.IsUnknownTask(err) {
				writeJSONError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		chunk := types.CompletionChunk{TaskID: id, Text: res.Text, Done: res.Done, Error: res.Err}
		if res.Done {
			chunk.State = string(res.State)
		}
		writeJSON(w, http.StatusOK, chunk)
	})

	r.Post("/completions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskID(w, r)
		if !ok {
			return
		}
		// Fail-silent by contract: cancelling an unknown or finished task
		// is an expected race, not an error.
		svc.Cancel(id)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/completions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskID(w, r)
		if !ok {
			return
		}
		svc.Release(id)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/convert/pattern", func(w http.ResponseWriter, r *http.Request) {
		convertHandler(w, r, svc.ConvertPattern)
	})

	r.Post("/convert/grammar", func(w http.ResponseWriter, r *http.Request) {
		convertHandler(w, r, svc.ConvertGrammar)
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("shutting down"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeJSONBody enforces the JSON content type and body limit, decoding
// into dst. It writes the error response itself and reports success.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// taskID parses the {id} route parameter.
func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func convertHandler(w http.ResponseWriter, r *http.Request, convert func(string) (string, error)) {
	var req types.ConvertRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	out, err := convert(req.Input)
	if err != nil {
		writeJSONError(w, convertStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.ConvertResponse{Output: out})
}

// submitStatus maps well-known registry errors to HTTP status codes.
func submitStatus(err error) int {
	switch {
	case tasks.IsInvalidParameters(err):
		return http.StatusBadRequest
	case tasks.IsInvalidGrammar(err):
		return http.StatusUnprocessableEntity
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}

func convertStatus(err error) int {
	if textproc.IsMalformedPattern(err) || textproc.IsInvalidGrammar(err) || textproc.IsInvalidCodepoint(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}

func logRequest(r *http.Request, msg string, status int, start time.Time, err error) {
	if requestLogLevel(r) < LevelInfo {
		return
	}
	if zlog == nil {
		log.Printf("%s status=%d path=%s dur=%s err=%v", msg, status, r.URL.Path, time.Since(start), err)
		return
	}
	z := zlog.Info().Int("status", status).Dur("dur", time.Since(start)).Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg(msg)
}

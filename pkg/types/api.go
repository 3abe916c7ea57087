package types

// CompletionRequest is the payload accepted by POST /completions.
type CompletionRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate. 0 means the server default.
	// example: 128
	MaxTokens int `json:"n_predict,omitempty" example:"128"`
	// Optional GBNF grammar or regex-like pattern constraining generation.
	// Converted server-side before the runtime sees it.
	// example: root ::= [^a]+
	Grammar string `json:"grammar,omitempty" example:"root ::= [^a]+"`
}

// CompletionResponse is returned by POST /completions on success.
type CompletionResponse struct {
	// Identifier for the registered task; use it to poll, cancel, release.
	// example: 3
	TaskID int64 `json:"task_id" example:"3"`
}

// CompletionChunk is returned by GET /completions/{id}. Text holds only
// the output produced since the previous poll, never cumulative text.
type CompletionChunk struct {
	// example: 3
	TaskID int64 `json:"task_id" example:"3"`
	// Newly generated text since the last poll (may be empty).
	Text string `json:"text"`
	// True once the task reached a terminal state; no further text will arrive.
	// example: false
	Done bool `json:"done" example:"false"`
	// Terminal state name when done (completed, cancelled, failed).
	// example: completed
	State string `json:"state,omitempty" example:"completed"`
	// Generation error captured from the runtime, delivered once.
	Error string `json:"error,omitempty"`
}

// ConvertRequest is the payload for POST /convert/pattern and /convert/grammar.
type ConvertRequest struct {
	// Input pattern or grammar text.
	// example: [^a-z]
	Input string `json:"input" example:"[^a-z]"`
}

// ConvertResponse carries the normalized text the grammar compiler accepts.
type ConvertResponse struct {
	Output string `json:"output"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// TaskStatus summarizes one registered completion task for /status.
type TaskStatus struct {
	// example: 3
	TaskID int64 `json:"task_id" example:"3"`
	// Lifecycle state (pending, running, completed, cancelled, failed).
	// example: running
	State string `json:"state" example:"running"`
	// Number of result chunks buffered and not yet polled.
	// example: 4
	BufferedChunks int `json:"buffered_chunks" example:"4"`
	// Creation time in unix seconds.
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Registered tasks, including terminal ones not yet released.
	Tasks []TaskStatus `json:"tasks"`
	// Model the daemon serves.
	// example: tinyllama-q4
	ModelID string `json:"model_id,omitempty" example:"tinyllama-q4"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total tasks submitted since start.
	// example: 12
	TasksTotal uint64 `json:"tasks_total" example:"12"`
}

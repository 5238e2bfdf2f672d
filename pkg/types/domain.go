package types

// Model describes the model served by this process.
type Model struct {
	// Stable identifier for the model.
	// example: google/gemma-3-4b-it
	ID string `json:"id" example:"google/gemma-3-4b-it"`
	// Backend serving the model (onnx, toy).
	// example: onnx
	Backend string `json:"backend" example:"onnx"`
	// Local directory holding the model files, if any.
	// example: /home/user/models/gemma-3-4b-it
	Path string `json:"path,omitempty" example:"/home/user/models/gemma-3-4b-it"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall manager state (loading, ready, draining, closed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Served model.
	Model Model `json:"model"`
	// Requests waiting for the generation slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Generations currently running (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Total generations started since boot.
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	// Total tokens generated since boot.
	// example: 3400
	TokensTotal uint64 `json:"tokens_total" example:"3400"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

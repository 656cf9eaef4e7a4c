package api

import (
	"encoding/json"
	"time"
)

// StatusResponse is served on GET /.
type StatusResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Connected bool       `json:"connected"`
	Timestamp *time.Time `json:"timestamp"` // last snapshot update
}

// HealthResponse is served on GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"` // current server time, RFC3339
}

// DebugResponse is served on GET /debug.
type DebugResponse struct {
	RawResponse json.RawMessage `json:"rawResponse"`
	Timestamp   *time.Time      `json:"timestamp"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

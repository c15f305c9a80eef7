// Package events defines the WebSocket event contracts ChurnPulse pushes to
// connected viewers. Every frame is a JSON object with a type, an ISO 8601
// timestamp, and a type-specific payload under "data".
package events

import "time"

// Event types.
const (
	TypeConnection       = "connection"
	TypeRefreshStarted   = "refresh:started"
	TypeRefreshProgress  = "refresh:progress"
	TypeRefreshCompleted = "refresh:completed"
	TypeRefreshFailed    = "refresh:failed"
)

// Refresh stages reported through RefreshProgress, in pipeline order.
const (
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageLabel     = "label"
	StageSwap      = "swap"
)

// Envelope is the common frame shape.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// ConnectionData greets a newly registered client.
type ConnectionData struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// RefreshStartedData announces a dataset refresh run.
type RefreshStartedData struct {
	RunID string `json:"run_id"`
}

// RefreshProgressData reports refresh progress per stage.
type RefreshProgressData struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// RefreshCompletedData reports a successful refresh.
type RefreshCompletedData struct {
	RunID       string `json:"run_id"`
	Rows        int    `json:"rows"`
	SourceKind  string `json:"source_kind"`
	Fingerprint string `json:"fingerprint"`
}

// RefreshFailedData reports a failed refresh. Error is the user-facing
// message, not the wrapped cause chain.
type RefreshFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

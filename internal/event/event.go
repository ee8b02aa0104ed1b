// Package event broadcasts structured lifecycle events to subscribers such
// as the desktop UI stream.
package event

// Event types emitted during a chat turn.
const (
	LLMRequestStarted    = "llm.request.started"
	LLMResponseCompleted = "llm.response.completed"
	LLMResponseError     = "llm.response.error"
	ToolRequested        = "tool.requested"
	ToolCompleted        = "tool.completed"
	ToolError            = "tool.error"
)

// Sources label the component that emitted an event.
const (
	SourceChat  = "sidecar.chat"
	SourceTools = "sidecar.tools"
)

// TimeLayout is ISO-8601 with millisecond precision. Times are always UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Event is an immutable lifecycle record.
type Event struct {
	ID        string         `json:"event_id"`
	Type      string         `json:"type"`
	Timestamp string         `json:"ts"`
	SessionID string         `json:"session_id"`
	Source    string         `json:"source"`
	Seq       int64          `json:"seq"`
	Payload   map[string]any `json:"payload"`
	CostUSD   *float64       `json:"cost_usd"`
}

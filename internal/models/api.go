package models

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventLibraryUpdated  = "library_updated"
	EventSessionUpdated  = "session_updated"
	EventSessionCleared  = "session_cleared"
	EventAttemptRecorded = "attempt_recorded"
	EventDraftsUpdated   = "drafts_updated"
)

type LibraryUpdatedEvent struct {
	Subject string `json:"subject"`
	Chapter string `json:"chapter"`
	Added   int    `json:"added"`
}

type SessionUpdatedEvent struct {
	CurrentIndex  int `json:"current_index"`
	Total         int `json:"total"`
	AnsweredCount int `json:"answered_count"`
}

type AttemptRecordedEvent struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

type DraftsUpdatedEvent struct {
	Count int `json:"count"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

package models

import (
	"github.com/google/uuid"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"` // "status_update" | "completed" | "error"
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	RunID    uuid.UUID `json:"run_id"`
	Stage    Stage     `json:"stage"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
}

type CompletedEvent struct {
	RunID  uuid.UUID   `json:"run_id"`
	Output RecapOutput `json:"output"`
}

type ErrorEvent struct {
	RunID        uuid.UUID `json:"run_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
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

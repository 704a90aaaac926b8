package services

import (
	"fmt"
	"strings"
)

type ErrorClass string

const (
	ClassOverloaded        ErrorClass = "overloaded"
	ClassInvalidCredential ErrorClass = "invalid_credential"
	ClassMalformedResponse ErrorClass = "malformed_response"
	ClassUnknown           ErrorClass = "unknown"
)

// APIError is a classified failure of the text generation API.
type APIError struct {
	Class      ErrorClass
	StatusCode int
	// Message is the server-provided error message, when there was one.
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("script api %s (HTTP %d): %s", e.Class, e.StatusCode, msg)
	}
	return fmt.Sprintf("script api %s: %s", e.Class, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the person who started the run.
func (e *APIError) UserMessage() string {
	switch e.Class {
	case ClassOverloaded:
		return "The AI model is currently overloaded. Please try again in a few moments."
	case ClassInvalidCredential:
		return "The Gemini API key was rejected. Please check your API key."
	case ClassMalformedResponse:
		return "The AI model returned no script. Please try again."
	}
	if e.Message != "" {
		return e.Message
	}
	return "Script generation failed. Please try again."
}

// classifyStatus maps an HTTP status and server message onto an error class.
func classifyStatus(status int, message string) ErrorClass {
	switch {
	case status == 503:
		return ClassOverloaded
	case status == 401 || status == 403:
		return ClassInvalidCredential
	case mentionsAPIKey(message):
		return ClassInvalidCredential
	}
	return ClassUnknown
}

func mentionsAPIKey(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "api key") || strings.Contains(lower, "api_key")
}

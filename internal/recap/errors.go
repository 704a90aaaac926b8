package recap

import (
	"errors"
	"fmt"

	"recapstudio-backend/internal/media"
	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/services"
)

// ErrRunInProgress is returned when a run is requested while another one
// still holds the engine.
var ErrRunInProgress = errors.New("a recap run is already in progress")

type Kind string

const (
	KindValidation Kind = "validation"
	KindEngineLoad Kind = "engine_load"
	KindSampling   Kind = "sampling"
	KindScriptAPI  Kind = "script_api"
	KindUnknown    Kind = "unknown"
)

// RunError is the classified failure of a run. Message is meant for the
// user; Err keeps the technical cause.
type RunError struct {
	Kind    Kind
	Stage   models.Stage
	Reason  string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *RunError) Error() string {
	s := string(e.Kind)
	if e.Reason != "" {
		s += "(" + e.Reason + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", s, e.Message, e.Err)
	}
	return s + ": " + e.Message
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Code is the short machine-readable form, such as "script_api:overloaded".
func (e *RunError) Code() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ":" + e.Reason
}

func validationError(fields map[string]string) *RunError {
	return &RunError{
		Kind:    KindValidation,
		Stage:   models.StageIdle,
		Message: "The recap request is incomplete.",
		Fields:  fields,
	}
}

func engineLoadError(err error) *RunError {
	return &RunError{
		Kind:    KindEngineLoad,
		Stage:   models.StageLoadingEngine,
		Message: "The media engine failed to load. Please try again later.",
		Err:     err,
	}
}

func samplingError(err error) *RunError {
	reason := media.ReasonEngineFault
	var se *media.SamplingError
	if errors.As(err, &se) {
		reason = se.Reason
	}

	msg := "Sampling the video failed. Please try again."
	switch reason {
	case media.ReasonBadInput:
		msg = "The video file could not be read. Please try a different file."
	case media.ReasonEngineFault:
		msg = "The media engine failed while sampling the video. Please try again."
	}

	return &RunError{
		Kind:    KindSampling,
		Stage:   models.StageSamplingVideo,
		Reason:  string(reason),
		Message: msg,
		Err:     err,
	}
}

func scriptError(err error) *RunError {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		return &RunError{
			Kind:    KindScriptAPI,
			Stage:   models.StageGeneratingScript,
			Reason:  string(apiErr.Class),
			Message: apiErr.UserMessage(),
			Err:     err,
		}
	}
	return unknownError(models.StageGeneratingScript, err)
}

func unknownError(stage models.Stage, err error) *RunError {
	return &RunError{
		Kind:    KindUnknown,
		Stage:   stage,
		Message: "Something went wrong while creating the recap. Please try again.",
		Err:     err,
	}
}

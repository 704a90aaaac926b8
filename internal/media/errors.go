package media

import (
	"errors"
	"strings"
)

// ErrEngineLoad wraps every failure of EnsureLoaded.
var ErrEngineLoad = errors.New("media engine failed to load")

type FailureReason string

const (
	ReasonBadInput    FailureReason = "bad_input"
	ReasonEngineFault FailureReason = "engine_fault"
	ReasonIO          FailureReason = "io"
)

// SamplingError is returned by Engine.Run for every failure after loading.
type SamplingError struct {
	Reason FailureReason
	Err    error
}

func (e *SamplingError) Error() string {
	return "sampling failed (" + string(e.Reason) + "): " + e.Err.Error()
}

func (e *SamplingError) Unwrap() error {
	return e.Err
}

// Messages ffmpeg prints when the input itself is the problem.
var badInputMarkers = []string{
	"invalid data found when processing input",
	"moov atom not found",
	"does not contain any stream",
	"could not find codec parameters",
	"decoder not found",
	"unsupported codec",
	"no such file or directory",
}

// classifyLog decides between a bad input and an engine fault from the tail
// of ffmpeg's log output.
func classifyLog(lines []string) FailureReason {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range badInputMarkers {
			if strings.Contains(lower, marker) {
				return ReasonBadInput
			}
		}
	}
	return ReasonEngineFault
}

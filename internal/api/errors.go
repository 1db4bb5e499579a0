package api

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// Sentinel errors for client operations.
var (
	ErrJobNotFound    = errors.New("job not found")
	ErrEmptyJobID     = errors.New("job id is required")
	ErrEmptyResponse  = errors.New("empty response body")
	ErrReconNotReady  = errors.New("reconciliation report has no download url")
	ErrInvalidPayload = errors.New("response does not match the expected schema")
)

// StepError is a failure attributed to one Oracle sub-step. Transport
// failures use Step "network".
type StepError struct {
	Step    types.Step
	RawStep string
	Message string
	JobID   string
	Status  string
	Err     error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s failed: %s", e.RawStep, e.Message)
	if e.JobID != "" {
		msg += fmt.Sprintf(" (job %s", e.JobID)
		if e.Status != "" {
			msg += ", status " + e.Status
		}
		msg += ")"
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// IsNetwork reports whether the failure happened before any backend answer.
func (e *StepError) IsNetwork() bool {
	return e.Step == types.StepNetwork
}

func networkError(err error) *StepError {
	return &StepError{
		Step:    types.StepNetwork,
		RawStep: string(types.StepNetwork),
		Message: err.Error(),
		Err:     err,
	}
}

// APIError is any other non-2xx answer.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

package services

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrDiscovery     = errors.New("discovery error")
)

// ServiceError is the error produced by Wrap. It matches both its marker and
// its cause with errors.Is.
type ServiceError struct {
	Marker    error
	Step      string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Step, e.Operation, e.Message)
	if e.Cause != nil {
		return e.Marker.Error() + ": " + detail + ": " + e.Cause.Error()
	}
	return e.Marker.Error() + ": " + detail
}

func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error message that includes step context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above. A cause that is a context deadline is
// re-tagged as ErrTimeout.
func Wrap(marker error, step, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && marker != ErrTimeout {
		marker = ErrTimeout
	}
	return &ServiceError{
		Marker:    marker,
		Step:      strings.TrimSpace(step),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the structured view of a wrapped error used for logging.
type ErrorDetails struct {
	Kind      string
	Step      string
	Operation string
	Message   string
	Cause     string
}

// Details extracts the structured fields of the outermost ServiceError in
// err's chain. Plain errors are reported with kind "unknown".
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		return ErrorDetails{Kind: "unknown", Message: err.Error()}
	}
	details := ErrorDetails{
		Kind:      Kind(svcErr.Marker),
		Step:      svcErr.Step,
		Operation: svcErr.Operation,
		Message:   svcErr.Message,
	}
	if svcErr.Cause != nil {
		details.Cause = svcErr.Cause.Error()
	}
	return details
}

// Kind returns a short classification label for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDiscovery):
		return "discovery"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

// Hint returns an operator-facing next step for a failure kind.
func Hint(err error) string {
	switch Kind(err) {
	case "timeout":
		return "step exceeded its timeout; raise the pipeline timeout or check the external service"
	case "external_tool":
		return "check ffmpeg/ffprobe installation and the logged tool output"
	case "configuration":
		return "fix the configuration then retry the job"
	case "discovery":
		return "check drive credentials and folder id; the next tick retries"
	default:
		return "check logs for details then retry the job"
	}
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{step, operation, message} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

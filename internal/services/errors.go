package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails summarizes a wrapped error for structured failure logs.
type ErrorDetails struct {
	Kind string
	Hint string
}

// Details classifies err by its marker and suggests where an operator should look next.
func Details(err error) ErrorDetails {
	switch {
	case err == nil:
		return ErrorDetails{}
	case errors.Is(err, ErrValidation):
		return ErrorDetails{Kind: "validation", Hint: "fix the script document and run the batch again"}
	case errors.Is(err, ErrConfiguration):
		return ErrorDetails{Kind: "configuration", Hint: "check manimate config (manimate config show)"}
	case errors.Is(err, ErrNotFound):
		return ErrorDetails{Kind: "not_found", Hint: "run manimate doctor to verify required binaries and paths"}
	case errors.Is(err, ErrTimeout):
		return ErrorDetails{Kind: "timeout", Hint: "raise render.timeout_seconds or inspect the job log for a hung engine"}
	case errors.Is(err, ErrExternalTool):
		return ErrorDetails{Kind: "external_tool", Hint: "inspect the job log for engine output"}
	default:
		return ErrorDetails{Kind: "transient", Hint: "retry the batch; the job stays pending"}
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

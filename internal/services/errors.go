package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIO            = errors.New("io error")
	ErrSchema        = errors.New("schema error")
	ErrSpawn         = errors.New("spawn error")
	ErrProcess       = errors.New("process error")
	ErrProbe         = errors.New("probe error")
	ErrRevert        = errors.New("revert error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short classification label for err, suitable for log fields
// and history rows. Unclassified errors report "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRevert):
		return "revert"
	case errors.Is(err, ErrSpawn):
		return "spawn"
	case errors.Is(err, ErrProcess):
		return "process"
	case errors.Is(err, ErrProbe):
		return "probe"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

// RequiresAcknowledgement reports whether a per-file failure should stop and
// wait for the operator before the run continues. Tool failures and failed
// reverts usually mean the environment is misconfigured or a file is in an
// inconsistent state.
func RequiresAcknowledgement(err error) bool {
	return errors.Is(err, ErrRevert) || errors.Is(err, ErrSpawn) || errors.Is(err, ErrProcess)
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

package bridge

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure that leaves the bridge wraps exactly one of these,
// so callers can branch with errors.Is without caring which stage failed.
var (
	ErrDecode           = errors.New("transfer decode failed")
	ErrTransformFailure = errors.New("module transform failed")
	ErrLengthMismatch   = errors.New("output length mismatch")
	ErrModuleNotReady   = errors.New("module not ready")
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageReady      Stage = "ready"
	StageConversion Stage = "conversion"
	StageDecode     Stage = "decode"
	StageLength     Stage = "length_query"
	StagePointer    Stage = "pointer_query"
	StageExtract    Stage = "extract"
)

// Error is a pipeline failure: which kind, at which stage, caused by what.
type Error struct {
	Kind  error
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf maps an error to the short code used in API responses and
// conversion records.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrTransformFailure):
		return "transform_failure"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, ErrModuleNotReady):
		return "module_not_ready"
	default:
		return "internal_error"
	}
}

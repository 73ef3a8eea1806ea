package audio

import (
	"errors"
	"fmt"
)

// ErrorKind classifies capture failures. All kinds are terminal for
// the current session; callers retry by starting a new session.
type ErrorKind string

const (
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindDeviceUnavailable  ErrorKind = "device_unavailable"
	KindDeviceDisconnected ErrorKind = "device_disconnected"
	KindUnknown            ErrorKind = "unknown"
)

// CaptureError wraps a device-layer failure with its classification.
type CaptureError struct {
	Kind ErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture error: %s", e.Kind)
	}
	return fmt.Sprintf("capture error (%s): %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// NewCaptureError wraps err with the given kind.
func NewCaptureError(kind ErrorKind, err error) *CaptureError {
	return &CaptureError{Kind: kind, Err: err}
}

// KindOf extracts the error kind from err, returning KindUnknown for
// errors that are not capture errors.
func KindOf(err error) ErrorKind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

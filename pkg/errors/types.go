package errors

import (
	"fmt"
	"net/http"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// DeviceError is returned when a request to the device's filesystem API
// fails, either because the transport failed or because the device
// responded with a non-2xx status.
type DeviceError struct {
	Method string
	Path   string

	// StatusCode is zero when the request never got a response.
	StatusCode int

	// Body is the response body, if the device sent one.
	Body string

	// Err is the transport error, if any.
	Err error
}

func (err DeviceError) Error() string {
	prefix := fmt.Sprintf("%s %s", err.Method, err.Path)
	if err.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", prefix, err.Err)
	}

	msg := fmt.Sprintf("%s: %d %s", prefix, err.StatusCode, http.StatusText(err.StatusCode))
	if err.Body != "" {
		msg += ": " + err.Body
	}
	return msg
}

func (err DeviceError) Unwrap() error {
	return err.Err
}

// UnknownDevice is returned when the device doesn't report an identity, so
// there's no way to tell which local cache belongs to it.
type UnknownDevice struct {
	URL string
}

func (err UnknownDevice) Error() string {
	return fmt.Sprintf("unknown device at %s: version info has no UID", err.URL)
}

// RestoreFailed is returned by a pull that failed and then also failed to
// roll the local cache back. Cause is the error that aborted the pull.
type RestoreFailed struct {
	Cause  error
	Backup string
	Err    error
}

func (err RestoreFailed) Error() string {
	return fmt.Sprintf("%s (restore from %s also failed: %s)", err.Cause, err.Backup, err.Err)
}

func (err RestoreFailed) Unwrap() error {
	return err.Cause
}

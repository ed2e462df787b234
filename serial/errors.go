package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when a port cannot be opened or read.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrUploadFailed marks any nonzero flash outcome.
	ErrUploadFailed = errors.New("upload failed")
	// ErrLinkBusy is returned when a link is asked to read and flash at the same time.
	ErrLinkBusy = errors.New("serial link busy")
)

// ResultCode is the per-device outcome of an image write. Zero means success.
type ResultCode int

const (
	CodeOK      ResultCode = 0
	CodeIOError ResultCode = 1
	CodeNack    ResultCode = 2
	CodeTimeout ResultCode = 3
	CodeBusy    ResultCode = 4
)

// UploadError carries the port and result code of a failed image write.
type UploadError struct {
	Port string
	Code ResultCode
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: upload failed with code %d", e.Port, e.Code)
	}
	return fmt.Sprintf("%s: upload failed with code %d: %v", e.Port, e.Code, e.Err)
}

// Unwrap lets errors.Is match both ErrUploadFailed and the underlying cause.
func (e *UploadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUploadFailed}
	}
	return []error{ErrUploadFailed, e.Err}
}

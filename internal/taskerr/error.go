// Package taskerr defines the errors returned when processing an event fails.
package taskerr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/simplesurance/taskbot/internal/stringutils"
)

// maxErrBodyLen is the max. number of bytes of a response body that are
// included in the message of a RemoteError.
const maxErrBodyLen = 512

// ErrNotFound is matched by a RemoteError with a 404 status code.
var ErrNotFound = errors.New("not found")

// DecodeError is returned when the webhook payload is malformed or
// incomplete.
type DecodeError struct {
	Err error
}

func NewDecodeError(err error) *DecodeError {
	return &DecodeError{Err: err}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding event failed: %s", e.Err)
}

// AddressingError is returned when the bitbucket instance or repository can
// not be derived from an event.
type AddressingError struct {
	Err error
}

func NewAddressingError(err error) *AddressingError {
	return &AddressingError{Err: err}
}

func (e *AddressingError) Unwrap() error {
	return e.Err
}

func (e *AddressingError) Error() string {
	return fmt.Sprintf("deriving repository address from event failed: %s", e.Err)
}

// ConfigError is returned when the workflow configuration file could not be
// retrieved or parsed.
type ConfigError struct {
	// Path is the path of the configuration file in the repository.
	Path string
	Err  error
}

func NewConfigError(path string, err error) *ConfigError {
	return &ConfigError{Path: path, Err: err}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("loading %s failed: %s", e.Path, e.Err)
}

// RemoteError is returned when a bitbucket API call failed or did not
// respond with the expected status code.
type RemoteError struct {
	// Operation is a short description of the failed API call.
	Operation string
	// StatusCode is 0 if no response was received.
	StatusCode int
	Body       []byte
	// Err is the transport error, if no response was received.
	Err error
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Operation, e.Err)
	}

	if len(e.Body) == 0 {
		return fmt.Sprintf("%s: unexpected status code: %d", e.Operation, e.StatusCode)
	}

	return fmt.Sprintf("%s: unexpected status code: %d, response: %q", e.Operation, e.StatusCode, stringutils.Truncate(string(e.Body), maxErrBodyLen))
}

// NotFound returns true if the remote resource does not exist.
func (e *RemoteError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Is makes errors.Is(err, ErrNotFound) true for 404 responses.
func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.NotFound()
}

// ReportError is returned when a ConfigError should have been reported as a
// pull request comment but creating the comment failed.
// Both errors are accessible via errors.Is and errors.As.
type ReportError struct {
	// Err is the error that happened when creating the comment.
	Err error
	// Original is the error that should have been reported.
	Original error
}

func (e *ReportError) Unwrap() []error {
	return []error{e.Err, e.Original}
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("reporting error as pull request comment failed: %s, reported error: %s", e.Err, e.Original)
}

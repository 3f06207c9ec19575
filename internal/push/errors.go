package push

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kind classifies a push failure.
type Kind int

const (
	// KindUnknown is any failure not covered by another kind.
	KindUnknown Kind = iota
	// KindFileAccess means the blueprint could not be read or decrypted.
	KindFileAccess
	// KindParse means the blueprint is not a valid YAML document or template.
	KindParse
	// KindTransport means no response was received.
	KindTransport
	// KindHTTPStatus means the server answered with a 4xx or 5xx status.
	KindHTTPStatus
)

func (k Kind) String() string {
	switch k {
	case KindFileAccess:
		return "FileAccessError"
	case KindParse:
		return "ParseError"
	case KindTransport:
		return "TransportError"
	case KindHTTPStatus:
		return "HTTPStatusError"
	default:
		return "UnknownError"
	}
}

// ExitCode is the process exit status for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindFileAccess:
		return 3
	case KindParse:
		return 4
	case KindTransport:
		return 5
	case KindHTTPStatus:
		return 6
	default:
		return 1
	}
}

// maxBodyInMessage caps how much of a response body Error() includes.
const maxBodyInMessage = 1024

// Error is the outcome of a failed push.
type Error struct {
	Kind Kind

	// Path is the blueprint file.
	Path string

	// URL is the endpoint, set once the request stage is reached.
	URL string

	// StatusCode, Status and Body are set for KindHTTPStatus.
	StatusCode int
	Status     string
	Body       []byte

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindFileAccess:
		if errors.Is(e.Err, fs.ErrNotExist) {
			return fmt.Sprintf("The file '%s' was not found.", e.Path)
		}
		return fmt.Sprintf("The file '%s' could not be read: %v", e.Path, e.Err)
	case KindParse:
		return fmt.Sprintf("Error parsing YAML file: %v", e.Err)
	case KindTransport:
		return fmt.Sprintf("An error occurred during the API request: %v", e.Err)
	case KindHTTPStatus:
		body := strings.TrimSpace(string(e.Body))
		if len(body) > maxBodyInMessage {
			body = body[:maxBodyInMessage] + "..."
		}
		return fmt.Sprintf("An error occurred during the API request: %s for url: %s: %s", e.Status, e.URL, body)
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors not produced by a Pusher are
// KindUnknown.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// ExitCode maps err to a process exit status. Nil is 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

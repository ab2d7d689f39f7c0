package client

import (
	"errors"
	"fmt"
)

// TransportError means the request never produced a response: the host
// was unreachable, the connection dropped, or the deadline passed.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is a response outside the 2xx range.
type HTTPStatusError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string // trimmed for messages

	raw []byte
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

// DecodeError is a 2xx response whose body is not the expected JSON.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decoding response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CleanupFailure is a cleanup request the API answered but refused.
type CleanupFailure struct {
	Result CleanupResult
}

func (e *CleanupFailure) Error() string {
	if e.Result.Message == "" {
		return "cleanup failed"
	}
	return "cleanup failed: " + e.Result.Message
}

// IsConnectivity reports errors that mean the upstream could not be read:
// transport failures, bad status codes and undecodable bodies.
func IsConnectivity(err error) bool {
	var (
		te *TransportError
		se *HTTPStatusError
		de *DecodeError
	)
	return errors.As(err, &te) || errors.As(err, &se) || errors.As(err, &de)
}

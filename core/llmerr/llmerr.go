package llmerr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the five failure kinds an error belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindTransport
	KindAPI
	KindDecode
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	case KindDecode:
		return "decode"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of err, looking through wrapped errors.
func KindOf(err error) Kind {
	var (
		configErr    *ConfigurationError
		transportErr *TransportError
		apiErr       *APIError
		decodeErr    *DecodeError
		streamErr    *StreamError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &configErr):
		return KindConfiguration
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &apiErr):
		return KindAPI
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.As(err, &streamErr):
		return KindStream
	default:
		return KindUnknown
	}
}

// ConfigurationError reports missing or invalid credentials or a missing
// required request field. It is always raised before any network traffic.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Configuration is shorthand for a *ConfigurationError.
func Configuration(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransportError wraps a network-level failure from the HTTP client,
// including context cancellation and timeouts.
type TransportError struct {
	Provider string
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// APIError is a non-2xx answer from the provider. Type and Message come from
// the provider's error payload when it could be parsed; RawBody always holds
// the body as received.
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
	Param      string
	Code       string
	RawBody    string
}

func (e *APIError) Error() string {
	if e.Type == "" && e.Message == "" {
		return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.RawBody)
	}
	return fmt.Sprintf("%s api error (status %d, %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}

// DecodeError reports a response body that does not match the expected
// schema. Field is a path such as "choices[0].finish_reason".
type DecodeError struct {
	Field string
	Cause error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("decode error: %v", e.Cause)
	case e.Cause == nil:
		return fmt.Sprintf("decode error: field %q is missing", e.Field)
	default:
		return fmt.Sprintf("decode error: field %q: %v", e.Field, e.Cause)
	}
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// StreamError reports a malformed, truncated or server-aborted stream. The
// partial result accumulated before the failure stays available from the
// stream and is marked incomplete.
type StreamError struct {
	Field   string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	msg := "stream error"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StreamError) Unwrap() error { return e.Cause }

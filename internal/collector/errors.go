package collector

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means something required was never set up (base uri, credentials,
	// temp storage path) or a life-cycle step was called out of order.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport wraps network failures and http error statuses.
	ErrTransport = errors.New("transport error")
	// ErrLoginFailure means the bank rejected the login, usually because a previous session
	// was never logged out.
	ErrLoginFailure = errors.New("login failure")
	// ErrExtendedProcess means the bank wants a verification step that cannot be done in-band,
	// the session has to be suspended and continued later.
	ErrExtendedProcess = errors.New("extended process required")
	// ErrParsing means the page does not have the structure it is expected to have.
	ErrParsing = errors.New("parsing error")
	// ErrUnderMaintenance means the bank is showing its maintenance page.
	ErrUnderMaintenance = errors.New("under maintenance")
)

// Kind is the class an error belongs to, it lets callers decide what is recoverable.
type Kind int

const (
	KindGeneric Kind = iota
	KindConfiguration
	KindTransport
	KindLoginFailure
	KindExtendedProcess
	KindParsing
	KindUnderMaintenance
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindLoginFailure:
		return "login_failure"
	case KindExtendedProcess:
		return "extended_process"
	case KindParsing:
		return "parsing"
	case KindUnderMaintenance:
		return "under_maintenance"
	default:
		return "generic"
	}
}

// KindOf classifies err, the most specific kind wins when an error wraps several.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindGeneric
	case errors.Is(err, ErrExtendedProcess):
		return KindExtendedProcess
	case errors.Is(err, ErrLoginFailure):
		return KindLoginFailure
	case errors.Is(err, ErrUnderMaintenance):
		return KindUnderMaintenance
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrParsing):
		return KindParsing
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindGeneric
	}
}

// TransportError is a failed request, Body holds the response body if there was one.
type TransportError struct {
	Method string
	URL    string
	// Status is 0 if no response was received.
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func configurationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}

// Precondition is the error returned when a life-cycle step is called before the one it depends on.
func Precondition(msg string) error {
	return configurationError(msg)
}

// ParsingError is the error returned when a page is missing something it should have.
func ParsingError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParsing, fmt.Sprintf(format, args...))
}

package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport error seen by the feed
type NetworkError struct {
	Op        string // Operation that failed (e.g., "read", "close")
	Err       error  // Underlying error
	Retriable bool   // Whether the host may reconnect and resume
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a push message at the ingestion boundary.
// It always matches ErrMalformedEvent under errors.Is.
type ValidationError struct {
	Kind  string // Message type being decoded
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	msg := "malformed " + e.Kind
	if e.Field != "" {
		msg += " [" + e.Field + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) IsRetriable() bool {
	return false
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrMalformedEvent
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var (
	// ErrMalformedEvent is matched by every ValidationError.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrMissingField is wrapped when a required payload field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrUnknownSide is returned for a side label other than bid/ask.
	ErrUnknownSide = errors.New("unknown side")

	// ErrUnhandledMessage is returned for push types the engine does not consume
	// (lobby, room, trade and position updates). Not an error for the session.
	ErrUnhandledMessage = errors.New("unhandled message type")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

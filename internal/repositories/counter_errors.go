package repositories

// CounterErrorCode is a machine readable reason for a counter failure.
type CounterErrorCode string

const (
	// CounterErrorUnknown is an unspecified failure.
	CounterErrorUnknown CounterErrorCode = "counter_unknown"
	// CounterErrorInvalidInput means the caller supplied bad arguments.
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
	// CounterErrorExhausted means the counter hit its configured maximum.
	// Order sequence numbers stop here rather than wrapping around.
	CounterErrorExhausted CounterErrorCode = "counter_exhausted"
)

// CounterError carries a code alongside the failure so services can map
// counter problems to their own sentinel errors.
type CounterError struct {
	Op      string
	Code    CounterErrorCode
	Message string
	Err     error
}

func (e *CounterError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *CounterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCounterError builds a CounterError, defaulting the message to the code.
func NewCounterError(code CounterErrorCode, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{Code: code, Message: message, Err: err}
}

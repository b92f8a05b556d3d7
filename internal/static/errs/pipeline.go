package errs

import (
	"errors"
	"fmt"
)

var MalformedPayload = errors.New("malformed payload")

var (
	ComparisonTransientError = errors.New("comparison transient error")
	ComparisonPermanentError = errors.New("comparison permanent error")
	BaselineMisconfiguration = errors.New("baseline misconfiguration")
	DuplicateJobIgnored      = errors.New("duplicate job ignored")
)

var (
	SuiteNotFound     = errors.New("suite not found")
	BatchNotFound     = errors.New("batch not found")
	ElementNotFound   = errors.New("element not found")
	JobNotFound       = errors.New("job not found")
	InvalidTransition = errors.New("invalid batch state transition")
	BatchNotOpen      = errors.New("batch is not accepting submissions")
	ConcurrentUpdate  = errors.New("concurrent update")
	LeaseLost         = errors.New("job lease lost")
	JobCancelled      = errors.New("job cancelled")
	InvalidArgument   = errors.New("invalid argument")
)

// classified keeps both the class sentinel and the cause reachable by errors.Is
type classified struct {
	class error
	cause error
}

func (e *classified) Error() string {
	return fmt.Sprintf("%s: %s", e.class, e.cause)
}

func (e *classified) Unwrap() []error {
	return []error{e.class, e.cause}
}

// Transient marks err as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: ComparisonTransientError, cause: err}
}

// Permanent marks err as not retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: ComparisonPermanentError, cause: err}
}

// Malformed wraps a decoding failure of a submitted payload
func Malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", MalformedPayload, fmt.Sprintf(format, args...))
}

// IsTransient reports whether a job failing with err may be retried.
// Unclassified errors are treated as transient.
func IsTransient(err error) bool {
	if errors.Is(err, ComparisonPermanentError) {
		return false
	}
	return true
}

// ClassOf returns the persisted error class of err, "transient" or "permanent"
func ClassOf(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

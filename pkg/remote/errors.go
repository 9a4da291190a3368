package remote

import "github.com/pkg/errors"

// Gateway failure classes. Callers branch on these with errors.Is: network
// and timeout failures degrade to the sync queue, conflict and validation
// failures are surfaced since retrying would repeat the same rejection.
var (
	ErrNetwork    = errors.New("remote unreachable")
	ErrTimeout    = errors.New("remote call timed out")
	ErrAuth       = errors.New("remote rejected credentials")
	ErrConflict   = errors.New("remote rejected write due to a constraint")
	ErrValidation = errors.New("remote rejected malformed payload")
)

type classifiedError struct {
	kind  error
	cause error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *classifiedError) Is(target error) bool {
	return target == e.kind
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func classify(kind, cause error) error {
	return &classifiedError{kind: kind, cause: cause}
}

// IsRetryable reports whether a failed call may succeed later without any
// change to the payload. Only connectivity-class failures qualify; timeouts
// are treated identically to network errors.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

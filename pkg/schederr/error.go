// Package schederr defines the closed error taxonomy surfaced by the
// scheduler to clients, plus two kinds added to resolve open questions:
// NotSupportedFeature (pitch capability gating) and Canceled (internal
// tagging of a driver-cancelled in-flight call).
package schederr

import "fmt"

// Kind is a closed enum of error kinds. Every scheduler operation returns a
// *Error whose Kind is one of these values, never a bare string.
type Kind int

const (
	None Kind = iota
	OutOfMemory
	InvalidParameter
	InvalidState
	InvalidVoice
	EngineNotFound
	OperationFailed
	OutOfNetwork
	TimedOut
	AudioPolicyBlocked
	// NotSupportedFeature is returned when a client requests an engine
	// capability (e.g. non-default pitch) the loaded engine doesn't report.
	NotSupportedFeature
	// Canceled tags an in-flight synthesis call torn down by stop/finalize.
	// Never surfaced to a client directly; stop/finalize return success.
	Canceled
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case OutOfMemory:
		return "out_of_memory"
	case InvalidParameter:
		return "invalid_parameter"
	case InvalidState:
		return "invalid_state"
	case InvalidVoice:
		return "invalid_voice"
	case EngineNotFound:
		return "engine_not_found"
	case OperationFailed:
		return "operation_failed"
	case OutOfNetwork:
		return "out_of_network"
	case TimedOut:
		return "timed_out"
	case AudioPolicyBlocked:
		return "audio_policy_blocked"
	case NotSupportedFeature:
		return "not_supported_feature"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so callers can
// use errors.Is(err, schederr.New(schederr.InvalidState, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, otherwise
// returns OperationFailed for any other non-nil error and None for nil.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	var se *Error
	if as(err, &se) {
		return se.Kind
	}
	return OperationFailed
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

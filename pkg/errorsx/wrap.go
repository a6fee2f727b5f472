package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError carries the reason code of the first layer that classified
// the failure. Outer layers keep it.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e *ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e *ReasonedError) Unwrap() error { return e.Err }

// Is lets errors.Is match a bare ReasonCode.
func (e *ReasonedError) Is(target error) bool {
	code, ok := target.(ReasonCode)
	return ok && code == e.Reason
}

// Wrap attaches reason to err. Nil and already-reasoned errors pass through.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re *ReasonedError
	if errors.As(err, &re) {
		return err
	}
	return &ReasonedError{Err: err, Reason: reason}
}

func Newf(reason ReasonCode, format string, args ...any) error {
	return &ReasonedError{Err: fmt.Errorf(format, args...), Reason: reason}
}

// Reason returns the first code found in err's chain, or ReasonUnknown.
func Reason(err error) ReasonCode {
	var re *ReasonedError
	if err != nil && errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

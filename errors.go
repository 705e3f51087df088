package upscale

import (
	"errors"
	"fmt"
)

// Kind classifies conversion failures.
type Kind int

const (
	KindUnsupportedFormat Kind = iota + 1
	KindInvalidScale
	KindCorruptContainer
	KindEncode
	KindCanceled
)

// Sentinel errors, one per Kind. An *Error matches its kind's sentinel with
// errors.Is.
var (
	ErrUnsupportedFormat = errors.New("upscale: unsupported format")
	ErrInvalidScale      = errors.New("upscale: invalid scale")
	ErrCorruptContainer  = errors.New("upscale: corrupt container")
	ErrEncode            = errors.New("upscale: encode failed")
	ErrCanceled          = errors.New("upscale: canceled")

	// ErrTooLarge is wrapped by EncodeError failures whose output would
	// exceed a format or memory limit.
	ErrTooLarge = errors.New("upscale: output too large")

	// ErrAlreadyRun is returned by Run on a coordinator that has already
	// been used.
	ErrAlreadyRun = errors.New("upscale: coordinator already run")
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnsupportedFormat:
		return ErrUnsupportedFormat
	case KindInvalidScale:
		return ErrInvalidScale
	case KindCorruptContainer:
		return ErrCorruptContainer
	case KindEncode:
		return ErrEncode
	case KindCanceled:
		return ErrCanceled
	default:
		return errors.New("upscale: unknown error")
	}
}

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindInvalidScale:
		return "InvalidScale"
	case KindCorruptContainer:
		return "CorruptContainer"
	case KindEncode:
		return "EncodeError"
	case KindCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error returned by a failed conversion.
type Error struct {
	Kind  Kind
	Stage State // stage that failed; StateIdle for request validation
	Frame int   // failing frame index, -1 if unknown
	Err   error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	switch {
	case e.Stage != StateIdle && e.Frame >= 0:
		msg = fmt.Sprintf("%s (%s, frame %d)", msg, e.Stage, e.Frame)
	case e.Stage != StateIdle:
		msg = fmt.Sprintf("%s (%s)", msg, e.Stage)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the Kind of err, or 0 if err is not a conversion error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

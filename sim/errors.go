package sim

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a SimError.
type ErrorKind int

const (
	// KindFileFormat covers unreadable files, malformed headers, cross-table
	// extent mismatches, out-of-range values and line-count mismatches.
	// Always fatal.
	KindFileFormat ErrorKind = iota + 1
	// KindDomainValue covers race, sex or birth year outside the configured
	// domain, invalid seeds and invalid output modes. A batch driver may skip
	// the offending record and continue.
	KindDomainValue
	// KindInternalState covers use of an unseeded stream or unloaded table.
	// Always fatal; indicates a construction-order bug.
	KindInternalState
)

func (k ErrorKind) String() string {
	switch k {
	case KindFileFormat:
		return "file format"
	case KindDomainValue:
		return "domain value"
	case KindInternalState:
		return "internal state"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrFileFormat    = &SimError{Kind: KindFileFormat}
	ErrDomainValue   = &SimError{Kind: KindDomainValue}
	ErrInternalState = &SimError{Kind: KindInternalState}
)

// SimError is the single structured error type raised by the engine.
// Frames records the operations the error passed through, innermost first.
type SimError struct {
	Kind   ErrorKind
	Msg    string
	Frames []string
	Err    error
}

func newError(kind ErrorKind, frame, format string, args ...any) *SimError {
	return &SimError{Kind: kind, Msg: fmt.Sprintf(format, args...), Frames: []string{frame}}
}

func fileFormatErrorf(frame, format string, args ...any) *SimError {
	return newError(KindFileFormat, frame, format, args...)
}

func domainErrorf(frame, format string, args ...any) *SimError {
	return newError(KindDomainValue, frame, format, args...)
}

func internalErrorf(frame, format string, args ...any) *SimError {
	return newError(KindInternalState, frame, format, args...)
}

func (e *SimError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// CallPath joins the recorded frames with "|", innermost first.
func (e *SimError) CallPath() string {
	return strings.Join(e.Frames, "|")
}

func (e *SimError) Unwrap() error { return e.Err }

// Is matches any SimError of the same kind, so errors.Is(err, ErrDomainValue) works.
func (e *SimError) Is(target error) bool {
	t, ok := target.(*SimError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && len(t.Frames) == 0
}

// Fatal reports whether the error must abort a batch run.
func (e *SimError) Fatal() bool {
	return e.Kind != KindDomainValue
}

// WithFrame appends frame to err's call path. Errors that are not a
// *SimError are wrapped as internal-state errors. Returns nil for nil.
func WithFrame(err error, frame string) error {
	if err == nil {
		return nil
	}
	var se *SimError
	if !errors.As(err, &se) {
		return &SimError{Kind: KindInternalState, Frames: []string{frame}, Err: err}
	}
	frames := make([]string, len(se.Frames), len(se.Frames)+1)
	copy(frames, se.Frames)
	return &SimError{Kind: se.Kind, Msg: se.Msg, Frames: append(frames, frame), Err: se.Err}
}

// IsFatal reports whether err must abort a run. Only domain-value errors are
// recoverable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrDomainValue)
}

// CallPath returns err's call path, or "" when err carries none.
func CallPath(err error) string {
	var se *SimError
	if errors.As(err, &se) {
		return se.CallPath()
	}
	return ""
}

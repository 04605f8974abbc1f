// Package errors provides an API compatible with the popular
// github.com/pkg/errors package.
//
// Every error produced here carries a stack trace. Unlike pkg/errors, traces
// that share a caller with the cause are dropped, so a wrapped error usually
// reports a single root trace instead of one per wrap.
package errors

import (
	stderrors "errors" //nolint: depguard
	"fmt"
	"io"

	"github.com/pkg/errors" //nolint: depguard
)

// New returns an error with the supplied message.
// New also records the stack trace at the point it was called.
func New(message string) error {
	return newStackErr(nil, message)
}

// Errorf formats according to a format specifier and returns the string
// as a value that satisfies error.
// Errorf also records the stack trace at the point it was called.
func Errorf(format string, args ...interface{}) error {
	return newStackErr(nil, fmt.Sprintf(format, args...))
}

// Wrapf returns an error annotating err with a stack trace
// at the point Wrapf is called, and the format specifier.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return newStackErr(err, fmt.Sprintf(format, args...))
}

// Wrap returns an error annotating err with a stack trace
// at the point Wrap is called, and the supplied message.
// If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return newStackErr(err, message)
}

// WithStack annotates err with a stack trace at the point WithStack was called.
// If err is nil, WithStack returns nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return newStackErr(err, "")
}

// Cause returns the underlying cause of the error, if possible.
// An error value has a cause if it implements the following
// interface:
//
//	type causer interface {
//	       Cause() error
//	}
//
// If the error does not implement Cause, the original error will
// be returned. If the error is nil, nil will be returned without further
// investigation.
func Cause(err error) error {
	for err != nil {
		cause, ok := err.(causer)
		if !ok {
			break
		}
		// all stackErr errors implement Cause, so check if this is the last error
		if cause.Cause() == nil {
			break
		}
		err = cause.Cause()
	}
	return err
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target, and if so, sets
// target to that error value and returns true.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

type stackErr struct {
	cause error
	stack errors.StackTrace
	msg   string
}

func newStackErr(cause error, msg string) error {
	// make a stack trace for the error. remove 2 frames to account for this method and the public api calling method
	// (e.g Wrapf)
	stack := errors.New("").(stackTracer).StackTrace()[2:]
	return &stackErr{
		cause: cause,
		stack: stack,
		msg:   msg,
	}
}

func (e *stackErr) Error() string {
	if e.cause != nil {
		if e.msg != "" {
			return e.msg + ": " + e.cause.Error()
		}
		return e.cause.Error()
	}
	return e.msg
}

func (e *stackErr) Cause() error {
	return e.cause
}

// StackTrace returns the error's trace, or nil when the cause already carries
// a longer trace ending in the same frames. Wrapping at every propagation
// point would otherwise report the same root trace many times over.
func (e *stackErr) StackTrace() errors.StackTrace {
	var cStack errors.StackTrace
	if sCause, ok := e.cause.(stackTracer); ok {
		if pCause, ok := e.cause.(*stackErr); ok {
			// special case stackErr so we don't recursively call this method
			cStack = pCause.stack
		} else {
			cStack = sCause.StackTrace()
		}
	}
	if cStack == nil || len(cStack) < len(e.stack) {
		return e.stack
	}
	// walk up from the bottom of the stack comparing frames against the cause
	for i := 1; i <= len(e.stack); i++ {
		if cStack[len(cStack)-i] != e.stack[len(e.stack)-i] {
			return e.stack
		}
	}
	return nil
}

// Unwrap provides compatibility for Go 1.13 error chains.
func (e *stackErr) Unwrap() error { return e.cause }

// nolint:errcheck
func (e *stackErr) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			if e.cause != nil {
				fmt.Fprintf(s, "%+v", e.cause)
			}
			if e.msg != "" {
				if e.cause != nil {
					io.WriteString(s, "\n")
				}
				fmt.Fprintf(s, "%s", e.msg)
			}
			stack := e.StackTrace()
			if stack != nil {
				fmt.Fprintf(s, "%+v", stack)
			}
		} else {
			io.WriteString(s, e.Error())
		}
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}

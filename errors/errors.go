package errors

import (
	"fmt"
)

type ErrorCode int

const (
	InternalError ErrorCode = iota
	InvalidConfiguration
	OnlySupportAsciiChars
	StoreClosed
	InvalidTxnRequest
)

func NewInvalidConfigurationError(msg string) MetaError {
	return NewMetaErrorf(InvalidConfiguration, "Invalid configuration: %s", msg)
}

// NewOnlySupportAsciiCharsError is returned when a key or prefix contains a
// character outside the ASCII range. Keys are ASCII by contract, so this
// always signals a caller bug.
func NewOnlySupportAsciiCharsError(c rune) MetaError {
	return NewMetaErrorf(OnlySupportAsciiChars, "Only support ASCII characters: %q", c)
}

func NewStoreClosedError(engine string) MetaError {
	return NewMetaErrorf(StoreClosed, "Store has been closed: %s", engine)
}

func NewInvalidTxnRequestError(msg string) MetaError {
	return NewMetaErrorf(InvalidTxnRequest, msg)
}

func NewMetaErrorf(errorCode ErrorCode, msgFormat string, args ...interface{}) MetaError {
	msg := fmt.Sprintf(fmt.Sprintf("META%04d - %s", errorCode, msgFormat), args...)
	return MetaError{Code: errorCode, Msg: msg}
}

func NewMetaError(errorCode ErrorCode, msg string) MetaError {
	return MetaError{Code: errorCode, Msg: msg}
}

func Error(msg string) error {
	return New(msg)
}

// MetaError is any kind of error that is exposed to callers of the meta KV API
// via external interfaces like the metactl tool
type MetaError struct {
	Code ErrorCode
	Msg  string
}

func (m MetaError) Error() string {
	return m.Msg
}

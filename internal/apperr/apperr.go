// Package apperr defines coded errors returned by the decode, storage and
// export layers.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that need to branch on it.
type Code string

const (
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	DecodeFailed      Code = "DECODE_FAILED"
	StorageFailed     Code = "STORAGE_FAILED"
	NotFound          Code = "NOT_FOUND"
	ExportFailed      Code = "EXPORT_FAILED"
	Invalid           Code = "INVALID"
	AssetFailed       Code = "ASSET_FAILED"
)

// Error is a coded error with the operation and subject that failed.
type Error struct {
	Code    Code
	Op      string
	Subject string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error.
func New(code Code, op, subject string, cause error) *Error {
	return &Error{Code: code, Op: op, Subject: subject, Cause: cause}
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

func NewUnsupportedFormat(name string) *Error {
	return New(UnsupportedFormat, "accept image", name, nil)
}

func NewDecodeFailed(name string, cause error) *Error {
	return New(DecodeFailed, "decode image", name, cause)
}

func NewStorageFailed(op, key string, cause error) *Error {
	return New(StorageFailed, op, key, cause)
}

func NewNotFound(op, key string) *Error {
	return New(NotFound, op, key, nil)
}

func NewExportFailed(format string, cause error) *Error {
	return New(ExportFailed, "export report", format, cause)
}

func NewInvalid(op, reason string) *Error {
	return New(Invalid, op, reason, nil)
}

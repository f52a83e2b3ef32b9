package models

import (
	"errors"
	"fmt"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Error constructors.
var (
	ErrNotFound = func(msg string) *AppError {
		return &AppError{Code: "NOT_FOUND", Message: msg, Status: 404}
	}
	ErrBadRequest = func(msg string) *AppError {
		return &AppError{Code: "BAD_REQUEST", Message: msg, Status: 400}
	}
	ErrConfirmationRequired = &AppError{
		Code:    "CONFIRMATION_REQUIRED",
		Message: "reset must be confirmed",
		Field:   "confirm",
		Status:  400,
	}
	ErrInternal = func(msg string) *AppError {
		return &AppError{Code: "INTERNAL", Message: msg, Status: 500}
	}
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrOutOfRange         = errors.New("counter index out of range")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrParse              = errors.New("malformed counts data")
	ErrWriteFailure       = errors.New("counts write failed")
)

// OutOfRangeError is returned when a caller addresses a counter that does not exist.
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("counter index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// StorageUnavailableError means the counts file could not be created or read.
type StorageUnavailableError struct {
	Path string
	Err  error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Path, e.Err)
}

func (e *StorageUnavailableError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

// FieldError describes one field of the counts record that could not be used.
type FieldError struct {
	Column int
	Value  string
	Err    error
}

// ParseError collects the problems found while decoding a counts record.
// Err is set when the record as a whole could not be read; otherwise Fields
// lists the columns that fell back to zero.
type ParseError struct {
	Path   string
	Fields []FieldError
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unreadable counts record: %v", e.Path, e.Err)
	}
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: malformed counts record", e.Path)
	}
	first := e.Fields[0]
	return fmt.Sprintf("%s: %d malformed field(s), first at column %d (%q)",
		e.Path, len(e.Fields), first.Column, first.Value)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// WriteFailure means a save did not reach disk. In-memory state is ahead of
// the file until the next successful save.
type WriteFailure struct {
	Path string
	Err  error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteFailure) Unwrap() []error { return []error{ErrWriteFailure, e.Err} }

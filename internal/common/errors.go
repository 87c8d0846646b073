// Package common holds the error taxonomy and timing helpers shared by the
// intake pipeline.
package common

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a per-file processing failure.
type ErrorCode string

const (
	ErrorGeometry       ErrorCode = "GEOMETRY_ERROR"
	ErrorInvalidImage   ErrorCode = "INVALID_IMAGE"
	ErrorImageRead      ErrorCode = "IMAGE_READ_ERROR"
	ErrorSchemaNotFound ErrorCode = "TEMPLATE_SCHEMA_NOT_FOUND"
	ErrorOCREngine      ErrorCode = "OCR_ENGINE_ERROR"
	ErrorDateFormat     ErrorCode = "DATE_FORMAT_ERROR"
	ErrorRemoteIO       ErrorCode = "REMOTE_IO_ERROR"
	ErrorSubmission     ErrorCode = "SUBMISSION_ERROR"
	ErrorFieldMissing   ErrorCode = "FIELD_MISSING"
	ErrorInternal       ErrorCode = "INTERNAL_ERROR"
)

// ProcessingError is a classified failure for one file.
type ProcessingError struct {
	Code ErrorCode
	Op   string // stage that failed, e.g. "load", "ocr", "submit"
	Path string
	Err  error
}

func (e *ProcessingError) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a code.
func NewError(code ErrorCode, op, path string, err error) *ProcessingError {
	return &ProcessingError{Code: code, Op: op, Path: path, Err: err}
}

// CodeOf returns the code of the first ProcessingError in err's chain, or
// ErrorInternal when there is none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrorInternal
}

// IsRetryable reports whether another attempt on the same file may succeed.
// Only image reads and OCR failures are transient.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrorImageRead, ErrorOCREngine:
		return true
	default:
		return false
	}
}

package cipher

import (
	"encoding/json"
	"fmt"

	"github.com/ytget/ytlinks/errs"
)

// Error codes
const (
	ErrCodeEntryNotFound      = "ENTRY_FUNCTION_NOT_FOUND"
	ErrCodeBodyNotFound       = "ENTRY_BODY_NOT_FOUND"
	ErrCodeNoCalls            = "NO_TRANSFORM_CALLS"
	ErrCodeHelperNotFound     = "HELPER_NOT_FOUND"
	ErrCodeHelperUnknown      = "HELPER_UNCLASSIFIABLE"
	ErrCodeOperandInvalid     = "OPERAND_INVALID"
	ErrCodeSpliceOutOfRange   = "SPLICE_OUT_OF_RANGE"
	ErrCodeSignatureEmpty     = "SIGNATURE_EMPTY"
	ErrCodeUnknownOperation   = "UNKNOWN_OPERATION"
	ErrCodeVerifyMismatch     = "VERIFY_MISMATCH"
	ErrCodeJSExecutionFailed  = "JS_EXECUTION_FAILED"
	ErrCodeJSExecutionTimeout = "JS_EXECUTION_TIMEOUT"
)

// Error represents a structured error with code and details
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the pipeline error kind, so callers can use errors.Is
// with errs.ErrCipherProgramNotFound or errs.ErrSignatureDecodeFailed.
func (e *Error) Unwrap() error {
	if IsDecodeError(e) {
		return errs.ErrSignatureDecodeFailed
	}
	return errs.ErrCipherProgramNotFound
}

// MarshalJSON implements json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		*Alias
		Error string `json:"error"`
	}{
		Alias: (*Alias)(e),
		Error: e.Error(),
	})
}

// NewError creates a new Error with the given code and message
func NewError(code string, message string, details ...any) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// IsNotFound returns true if part of the program could not be located
func IsNotFound(err error) bool {
	if e, ok := err.(*Error); ok {
		switch e.Code {
		case ErrCodeEntryNotFound, ErrCodeBodyNotFound, ErrCodeNoCalls, ErrCodeHelperNotFound:
			return true
		}
	}
	return false
}

// IsDecodeError returns true if the error came from applying a program
func IsDecodeError(err error) bool {
	if e, ok := err.(*Error); ok {
		switch e.Code {
		case ErrCodeOperandInvalid, ErrCodeSpliceOutOfRange, ErrCodeSignatureEmpty, ErrCodeUnknownOperation:
			return true
		}
	}
	return false
}

// IsJSError returns true if the error is a JavaScript execution error
func IsJSError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == ErrCodeJSExecutionFailed || e.Code == ErrCodeJSExecutionTimeout
	}
	return false
}

/*
Package errs provides custom error types and application-level result code constants.

This file defines the CustomError struct, which implements the standard Go error
interface and pairs a result code with a user-friendly message, plus the Normalize
function that reduces any outcome to the uniform (code, message) contract.
*/
package errs

import (
	"errors"
	"fmt"
	"strings"

	"blobparty/internal/pkg/logx"
)

// CustomError is the custom error structure used throughout the application.
// It wraps the Go error interface, adding an application result code.
type CustomError struct {
	// Code is the application result code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string
}

// Error implements the standard Go error interface. It returns a formatted
// error string containing the result code and message.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d: %s", e.Code, e.Message)
}

// NewError constructs and returns a new *CustomError instance based on a predefined result code.
// The optional details parameter allows for formatting arguments (printf-style) to be supplied
// for the error message. If an unknown code is provided, it defaults to returning ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
		}
	}

	customErr := templateErr

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			)
		}
	}

	return &customErr
}

// FromServer lifts a structured error received from the server into a *CustomError.
// The server's code and message are carried verbatim so that callers up the stack
// observe exactly what the server reported.
func FromServer(code int, message string) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
	}
}

// FromTransport wraps a raw transport failure (timeout, refused connection,
// dropped socket) as ErrTransportUnavailable, preserving its description.
func FromTransport(err error) *CustomError {
	return NewError(ErrTransportUnavailable, err.Error())
}

// Normalize reduces any operation outcome to the uniform (code, message) pair.
// A nil error yields (CodeOK, ""). A *CustomError yields its own code and message,
// whether raised locally or lifted from a server response. Any other error is a
// raw transport failure and yields ErrTransportUnavailable with its description.
func Normalize(err error) (int, string) {
	if err == nil {
		return CodeOK, ""
	}

	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code, customErr.Message
	}

	return ErrTransportUnavailable, err.Error()
}

/*
Package errs provides custom error types and application-level result code constants.

This file defines the map from result codes to the CustomError struct, used to
standardize messages attached to locally raised errors.
*/
package errs

// errorMap stores the detailed CustomError struct corresponding to every application result code.
// The key is the result code (int), and the value contains the user message template.
var errorMap = map[int]CustomError{
	// 1xxx: Account and Session Errors
	ErrUnauthenticated:    {Code: ErrUnauthenticated, Message: "Please sign in to continue."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect email or password."},
	ErrNameTaken:          {Code: ErrNameTaken, Message: "An account with this email already exists."},

	// 2xxx: Character Store Errors
	ErrNameUnavailable: {Code: ErrNameUnavailable, Message: "Character name %q is already taken."},
	ErrNotFound:        {Code: ErrNotFound, Message: "Character %q was not found."},
	ErrIndexOutOfRange: {Code: ErrIndexOutOfRange, Message: "Character index %d is out of range."},

	// 3xxx: Connection Errors
	ErrUnavailable:      {Code: ErrUnavailable, Message: "Not connected."},
	ErrMalformedPayload: {Code: ErrMalformedPayload, Message: "Received a malformed message: %s"},

	// 5xxx: Transport and Internal Errors
	ErrUnknown:              {Code: ErrUnknown, Message: "Something went wrong. Please try again."},
	ErrTransportUnavailable: {Code: ErrTransportUnavailable, Message: "Server unreachable: %s"},
}

/*
Package errs provides custom error types and application-level result code constants.

These result codes form the uniform error contract shared by every component of the
client: each fallible operation returns one of these codes plus a human-readable
message, and codes received from the server are propagated upward unchanged.
*/
package errs

// CodeOK is the result code for a successful operation.
const CodeOK = 0

// 1xxx: Account and Session Errors
const (
	// ErrUnauthenticated indicates that no live session exists for an authenticated call.
	ErrUnauthenticated = 1001

	// ErrInvalidCredentials indicates that the email/password pair was rejected by the server.
	ErrInvalidCredentials = 1002

	// ErrNameTaken indicates that the account email is already registered.
	ErrNameTaken = 1003
)

// 2xxx: Character Store Errors
const (
	// ErrNameUnavailable indicates that the requested character name is already reserved.
	ErrNameUnavailable = 2001

	// ErrNotFound indicates that the referenced character does not exist for this user.
	ErrNotFound = 2002

	// ErrIndexOutOfRange indicates that a character index was outside the stored list bounds.
	ErrIndexOutOfRange = 2003
)

// 3xxx: Connection Errors
const (
	// ErrUnavailable indicates that the requested operation needs an active
	// connection or world membership that is not currently established.
	ErrUnavailable = 3001

	// ErrMalformedPayload indicates that a wire payload failed to decode
	// (missing required fields or an unparsable color string).
	ErrMalformedPayload = 3002
)

// 5xxx: Transport and Internal Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrTransportUnavailable indicates a network or server failure
	// (timeout, refused connection, dropped socket).
	ErrTransportUnavailable = 5001
)

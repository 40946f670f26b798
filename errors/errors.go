package errors

import (
	"errors"
	"fmt"
)

var (
	// Connection-fatal: the handshake is rejected and the connection closed.
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")

	// Per-operation failures: reported to the initiating connection only.
	ErrUnauthorized      = fmt.Errorf("not authorized for this channel")
	ErrInvalidPayload    = fmt.Errorf("invalid payload")
	ErrPersistenceFailed = fmt.Errorf("message persistence failed")

	// Race/programming guards: logged, operation rejected.
	ErrNotAMember          = fmt.Errorf("user is not a member of the channel")
	ErrDuplicateConnection = fmt.Errorf("connection already registered")
	ErrUnknownConnection   = fmt.Errorf("unknown connection")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// MapToWireMessage converts an internal error into the string carried by the
// wire-level error payload. Sentinel text is stable; anything unexpected is
// collapsed into a generic message so internals never leak to clients.
func MapToWireMessage(err error) string {
	for _, sentinel := range []error{
		ErrAuthenticationFailed,
		ErrUnauthorized,
		ErrInvalidPayload,
		ErrPersistenceFailed,
		ErrNotAMember,
		ErrDuplicateConnection,
		ErrUnknownConnection,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

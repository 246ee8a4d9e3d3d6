package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by a command handler wraps exactly one.
var (
	// ErrAuth: missing or invalid credential. Reported to the sender.
	ErrAuth = errors.New("unauthorized")
	// ErrProtocol: malformed frame, missing field, unknown type, unknown room.
	// Reported to the sender.
	ErrProtocol = errors.New("protocol error")
	// ErrTransient: room store or bus unreachable. Logged, never reported.
	ErrTransient = errors.New("transient failure")
)

// ErrRoomNotFound is the protocol error for commands on an unknown room.
var ErrRoomNotFound = fmt.Errorf("%w: room not found", ErrProtocol)

// Error codes carried by error frames.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeRoomNotFound = "ROOM_NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Protocolf builds a protocol error.
func Protocolf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// Unauthorized wraps cause as an auth error.
func Unauthorized(cause error) error {
	return fmt.Errorf("%w: %w", ErrAuth, cause)
}

// Transient wraps an infrastructure failure during op.
func Transient(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, cause)
}

// ErrorCode maps an error to the code sent in error frames.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrRoomNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrProtocol):
		return ErrCodeBadRequest
	default:
		return ErrCodeInternal
	}
}

// IsReportable reports whether err should be answered with an error frame.
func IsReportable(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrProtocol)
}

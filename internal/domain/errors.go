package domain

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	// ErrRoomGone: комната истекла между приходом запроса и записью сообщения.
	ErrRoomGone = errors.New("room is gone")
)

// AuthError: отказ Auth Guard. Причина (missing/invalid) остаётся внутри,
// наружу отдаётся только 401.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Reason
}

func NewAuthError(reason string) *AuthError {
	return &AuthError{Reason: reason}
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

package core

import "errors"

// Commands that fail are dropped without a reply; errors exist for logs and tests.
var (
	// protocol
	ErrBadRequest     = errors.New("bad request")
	ErrUnknownCommand = errors.New("unknown command")

	// state consistency
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNotInRoom          = errors.New("not in room")
	ErrAlreadyJoined      = errors.New("already joined")
	ErrRoomClosed         = errors.New("room closed")
	ErrChatDisabled       = errors.New("chat disabled")
	ErrOutOfRange         = errors.New("position out of range")

	// policy
	ErrQuotaExceeded  = errors.New("note quota exceeded")
	ErrNotCrownHolder = errors.New("crown required to play")

	ErrClosed = errors.New("router closed")
)

// DropClass groups an error into the categories used when logging dropped commands.
func DropClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrUnknownCommand):
		return "protocol"
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrNotCrownHolder):
		return "policy"
	case errors.Is(err, ErrClosed):
		return "shutdown"
	default:
		return "state"
	}
}

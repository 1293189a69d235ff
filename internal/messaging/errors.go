package messaging

import "errors"

// Domain outcomes the API layer maps to status codes.
var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotParticipant  = errors.New("user is not a participant of this thread")
	ErrNotSender       = errors.New("only the sender can modify a message")
	ErrMessageDeleted  = errors.New("message has been deleted")
	ErrBadCursor       = errors.New("invalid cursor")
	ErrEmptyContent    = errors.New("message content is empty")
)

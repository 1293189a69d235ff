package models

import (
	"time"
)

// Messaging models

// Thread represents a direct-message conversation owned by its participants.
// LastMessageAt is bumped on every send and drives thread-list ordering.
type Thread struct {
	ID            string    `json:"id" db:"id"`
	PairKey       string    `json:"-" db:"pair_key"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	LastMessageAt time.Time `json:"lastMessageAt" db:"last_message_at"`
}

// Participant is one (thread, user) membership row. A thread with exactly
// one participant is a self-thread (notes to self).
type Participant struct {
	ThreadID string `json:"threadId" db:"thread_id"`
	UserID   string `json:"userId" db:"user_id"`
}

// Message is a single message in a thread. Deletes are soft: content stays
// in storage and only DeletedAt is set. Edits update Content and EditedAt
// but never ID or CreatedAt.
type Message struct {
	ID        string     `json:"id" db:"id"`
	ThreadID  string     `json:"threadId" db:"thread_id"`
	SenderID  string     `json:"senderId" db:"sender_id"`
	Content   string     `json:"content" db:"content"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	EditedAt  *time.Time `json:"editedAt,omitempty" db:"edited_at"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// Deleted reports whether the message carries a soft-delete tombstone.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Notification is the ephemeral envelope carried over NOTIFY and returned by
// the poll endpoint. It is never persisted; a listener that is not
// subscribed at emission time simply misses it and catches up on its next
// explicit fetch.
type Notification struct {
	Message   Message   `json:"message"`
	ThreadID  string    `json:"threadId"`
	Timestamp time.Time `json:"timestamp"`
}

// ThreadWithParticipants bundles a thread with its membership for list views.
type ThreadWithParticipants struct {
	Thread
	Participants []string `json:"participants"`
}

// Page is the cursor-pagination response envelope shared by the thread-list
// and message-history endpoints. NextCursor is the timestamp of the last
// returned row, or nil when HasMore is false.
type Page[T any] struct {
	Data       []T     `json:"data"`
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
}

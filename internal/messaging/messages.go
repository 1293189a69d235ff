package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wallie/pkg/models"
)

// MessageRepo handles database operations for messages.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a new message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create inserts a message and bumps the thread's last-activity timestamp in
// the same transaction, so thread-list ordering can never disagree with the
// stored history.
func (r *MessageRepo) Create(ctx context.Context, threadID, senderID, content string) (*models.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin message insert: %w", err)
	}
	defer tx.Rollback()

	msg := &models.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.ThreadID, msg.SenderID, msg.Content, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE threads SET last_message_at = $1 WHERE id = $2
	`, msg.CreatedAt, threadID); err != nil {
		return nil, fmt.Errorf("failed to bump thread activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message insert: %w", err)
	}
	return msg, nil
}

// GetByID returns a message (including soft-deleted ones) or nil when it
// does not exist.
func (r *MessageRepo) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	msg := &models.Message{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, thread_id, sender_id, content, created_at, edited_at, deleted_at
		FROM messages WHERE id = $1
	`, messageID).Scan(&msg.ID, &msg.ThreadID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// Edit replaces the body and stamps edited_at. Identity and created_at never
// change, so edits do not disturb pagination cursors.
func (r *MessageRepo) Edit(ctx context.Context, messageID, content string) (*models.Message, error) {
	msg := &models.Message{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE messages SET content = $1, edited_at = $2
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING id, thread_id, sender_id, content, created_at, edited_at, deleted_at
	`, content, time.Now().UTC(), messageID).Scan(
		&msg.ID, &msg.ThreadID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMessageDeleted
		}
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}
	return msg, nil
}

// SoftDelete sets the tombstone timestamp. Content is never physically
// removed; a deleted message keeps its row but leaves history pages.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, time.Now().UTC(), messageID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// ListHistory returns one page of a thread's messages. Rows are fetched
// newest-first for keyset efficiency, then reversed so the returned page is
// ascending (oldest-first) as the API promises. Soft-deleted messages are
// excluded entirely and never occupy a pagination slot.
func (r *MessageRepo) ListHistory(ctx context.Context, threadID string, cursor *time.Time, limit int) (models.Page[models.Message], error) {
	page := models.Page[models.Message]{Data: make([]models.Message, 0, limit)}

	query := `
		SELECT id, thread_id, sender_id, content, created_at, edited_at, deleted_at
		FROM messages
		WHERE thread_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{threadID}
	if cursor != nil {
		query += " AND created_at < $2"
		args = append(args, *cursor)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	fetched := make([]models.Message, 0, limit+1)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Content, &m.CreatedAt, &m.EditedAt, &m.DeletedAt); err != nil {
			return page, fmt.Errorf("failed to scan message: %w", err)
		}
		fetched = append(fetched, m)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("error iterating messages: %w", err)
	}

	fetched, hasMore := trimPage(fetched, limit)
	if len(fetched) == 0 {
		return page, nil
	}

	// Cursor comes from the oldest fetched row, before reversal.
	page.HasMore = hasMore
	page.NextCursor = nextCursor(hasMore, fetched[len(fetched)-1].CreatedAt)

	for i := len(fetched) - 1; i >= 0; i-- {
		page.Data = append(page.Data, fetched[i])
	}
	return page, nil
}

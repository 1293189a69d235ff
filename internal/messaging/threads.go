package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wallie/pkg/models"
)

// ThreadRepo handles database operations for threads and participants.
type ThreadRepo struct {
	db *sql.DB
}

// NewThreadRepo creates a new thread repository.
func NewThreadRepo(db *sql.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// PairKey derives the canonical key for a two-party (or self) conversation.
// Ordering the pair makes the key independent of who initiates, and the
// UNIQUE constraint on it closes the concurrent get-or-create race.
func PairKey(userA, userB string) string {
	if userA == userB {
		return userA
	}
	if userA < userB {
		return userA + ":" + userB
	}
	return userB + ":" + userA
}

// GetOrCreate returns the thread between userA and userB, creating it if
// needed. A self pair (userA == userB) gets exactly one participant row.
// Concurrent creations collide on the pair_key constraint; the loser
// re-reads the winner's row. The second return value reports creation.
func (r *ThreadRepo) GetOrCreate(ctx context.Context, userA, userB string) (*models.Thread, bool, error) {
	key := PairKey(userA, userB)

	thread, err := r.getByPairKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if thread != nil {
		return thread, false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin thread creation: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := &models.Thread{
		ID:            uuid.NewString(),
		PairKey:       key,
		CreatedAt:     now,
		LastMessageAt: now,
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, pair_key, created_at, last_message_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pair_key) DO NOTHING
	`, created.ID, created.PairKey, created.CreatedAt, created.LastMessageAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert thread: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if inserted == 0 {
		// Lost the race; the constraint guarantees the other row exists.
		existing, err := r.getByPairKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("thread for pair key vanished after conflict")
		}
		return existing, false, nil
	}

	participantIDs := []string{userA}
	if userA != userB {
		participantIDs = append(participantIDs, userB)
	}
	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_participants (thread_id, user_id)
			VALUES ($1, $2)
		`, created.ID, userID); err != nil {
			return nil, false, fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit thread creation: %w", err)
	}

	return created, true, nil
}

func (r *ThreadRepo) getByPairKey(ctx context.Context, key string) (*models.Thread, error) {
	thread := &models.Thread{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, pair_key, created_at, last_message_at
		FROM threads WHERE pair_key = $1
	`, key).Scan(&thread.ID, &thread.PairKey, &thread.CreatedAt, &thread.LastMessageAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get thread by pair key: %w", err)
	}
	return thread, nil
}

// GetByID returns a thread or nil when it does not exist.
func (r *ThreadRepo) GetByID(ctx context.Context, threadID string) (*models.Thread, error) {
	thread := &models.Thread{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, pair_key, created_at, last_message_at
		FROM threads WHERE id = $1
	`, threadID).Scan(&thread.ID, &thread.PairKey, &thread.CreatedAt, &thread.LastMessageAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return thread, nil
}

// ParticipantIDs returns the user ids of every participant of a thread.
func (r *ThreadRepo) ParticipantIDs(ctx context.Context, threadID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM thread_participants WHERE thread_id = $1
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 2)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return ids, nil
}

// IsParticipant reports whether userID belongs to the thread.
func (r *ThreadRepo) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM thread_participants
			WHERE thread_id = $1 AND user_id = $2
		)
	`, threadID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}

// ListForUser returns one page of the user's threads ordered by most recent
// activity, with participants attached for display.
func (r *ThreadRepo) ListForUser(ctx context.Context, userID string, cursor *time.Time, limit int) (models.Page[models.ThreadWithParticipants], error) {
	page := models.Page[models.ThreadWithParticipants]{Data: make([]models.ThreadWithParticipants, 0, limit)}

	query := `
		SELECT t.id, t.pair_key, t.created_at, t.last_message_at
		FROM threads t
		JOIN thread_participants p ON p.thread_id = t.id
		WHERE p.user_id = $1
	`
	args := []interface{}{userID}
	if cursor != nil {
		query += " AND t.last_message_at < $2"
		args = append(args, *cursor)
	}
	query += fmt.Sprintf(" ORDER BY t.last_message_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	threads := make([]models.Thread, 0, limit+1)
	for rows.Next() {
		var t models.Thread
		if err := rows.Scan(&t.ID, &t.PairKey, &t.CreatedAt, &t.LastMessageAt); err != nil {
			return page, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("error iterating threads: %w", err)
	}

	threads, hasMore := trimPage(threads, limit)
	if len(threads) == 0 {
		return page, nil
	}

	participants, err := r.participantsFor(ctx, threads)
	if err != nil {
		return page, err
	}

	for _, t := range threads {
		page.Data = append(page.Data, models.ThreadWithParticipants{
			Thread:       t,
			Participants: participants[t.ID],
		})
	}
	page.HasMore = hasMore
	page.NextCursor = nextCursor(hasMore, threads[len(threads)-1].LastMessageAt)
	return page, nil
}

func (r *ThreadRepo) participantsFor(ctx context.Context, threads []models.Thread) (map[string][]string, error) {
	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT thread_id, user_id FROM thread_participants
		WHERE thread_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query page participants: %w", err)
	}
	defer rows.Close()

	byThread := make(map[string][]string, len(threads))
	for rows.Next() {
		var threadID, userID string
		if err := rows.Scan(&threadID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan page participant: %w", err)
		}
		byThread[threadID] = append(byThread[threadID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page participants: %w", err)
	}
	return byThread, nil
}

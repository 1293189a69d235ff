package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wallie/pkg/models"
)

// DefaultWaitTimeout is the long-poll budget when none is configured.
const DefaultWaitTimeout = 60 * time.Second

// Listener is the server-side half of the long-poll bridge. Each Wait call
// holds one dedicated pooled connection, subscribed to a single channel,
// until a notification arrives or the budget elapses.
type Listener struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewListener creates a listener with the given wait budget.
func NewListener(pool *pgxpool.Pool, timeout time.Duration) *Listener {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Listener{pool: pool, timeout: timeout}
}

// Wait blocks until one notification arrives for userID (scoped to threadID
// when non-empty) or the budget elapses. It is single-shot: the first
// resolution wins and later notifications on the channel are never seen.
//
// Returns (nil, nil) on timeout and for malformed payloads, which resolve
// exactly like a timeout rather than re-arming the wait. Cancellation of ctx
// (client went away) surfaces as an error; callers treat it as teardown.
//
// Participant authorization is the caller's responsibility.
func (l *Listener) Wait(ctx context.Context, userID, threadID string) (*models.Notification, error) {
	channel := UserChannel(userID)
	if threadID != "" {
		channel = ThreadChannel(userID, threadID)
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	// Single cleanup guard for every exit path. UNLISTEN must run before the
	// connection returns to the pool or a later checkout inherits the
	// subscription; if cleanup fails the connection is discarded instead.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(cleanupCtx, "UNLISTEN *"); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("failed to unlisten, closing connection")
			conn.Conn().Close(cleanupCtx)
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	pgNotification, err := conn.Conn().WaitForNotification(waitCtx)
	if err != nil {
		// Budget elapsed with nothing to deliver: the normal steady state.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("wait for notification on %s: %w", channel, err)
	}

	var envelope models.Notification
	if err := json.Unmarshal([]byte(pgNotification.Payload), &envelope); err != nil {
		// A bad emission must not kill a live connection; resolve as timeout.
		log.Warn().Err(err).Str("channel", channel).Msg("discarding malformed notification payload")
		return nil, nil
	}

	return &envelope, nil
}

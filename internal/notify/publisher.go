package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wallie/pkg/models"
)

// Publisher fans a message event out over Postgres NOTIFY. Delivery is
// fire-and-forget: there is no backlog, so a client with no live listener at
// emission time misses the event and recovers on its next page fetch.
type Publisher struct {
	pool *pgxpool.Pool
}

// NewPublisher creates a publisher on the given connection pool.
func NewPublisher(pool *pgxpool.Pool) *Publisher {
	return &Publisher{pool: pool}
}

// PublishMessage emits one notification per participant per channel kind
// (per-user and per-thread), 2N emissions total, all carrying the same
// payload. The sender is included so its other tabs and self-threads update.
// Emission failures are logged and skipped; the message row is already
// committed and its durability always wins over notification delivery.
func (p *Publisher) PublishMessage(ctx context.Context, msg models.Message, participantIDs []string) {
	envelope := models.Notification{
		Message:   msg,
		ThreadID:  msg.ThreadID,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to marshal notification payload")
		return
	}

	for _, userID := range participantIDs {
		p.emit(ctx, UserChannel(userID), payload)
		p.emit(ctx, ThreadChannel(userID, msg.ThreadID), payload)
	}
}

func (p *Publisher) emit(ctx context.Context, channel string, payload []byte) {
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, string(payload)); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("failed to emit notification")
	}
}

package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallie/pkg/models"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database integration test")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestListenerReceivesPublishedMessage(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	userID := uuid.NewString()
	threadID := uuid.NewString()
	msg := models.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderID:  userID,
		Content:   "hi",
		CreatedAt: time.Now().UTC(),
	}

	listener := NewListener(pool, 10*time.Second)
	publisher := NewPublisher(pool)

	type result struct {
		n   *models.Notification
		err error
	}
	results := make(chan result, 1)
	go func() {
		n, err := listener.Wait(ctx, userID, threadID)
		results <- result{n, err}
	}()

	// Give the listener time to establish its subscription; a notification
	// emitted before LISTEN is simply lost (fire-and-forget, no backlog).
	time.Sleep(500 * time.Millisecond)
	publisher.PublishMessage(ctx, msg, []string{userID})

	select {
	case r := <-results:
		require.NoError(t, r.err)
		require.NotNil(t, r.n, "listener should have resolved with the notification")
		assert.Equal(t, "hi", r.n.Message.Content)
		assert.Equal(t, userID, r.n.Message.SenderID)
		assert.Equal(t, threadID, r.n.ThreadID)
	case <-time.After(15 * time.Second):
		t.Fatal("listener did not resolve")
	}
}

func TestListenerTimesOutQuietly(t *testing.T) {
	pool := testPool(t)

	listener := NewListener(pool, 1*time.Second)
	start := time.Now()
	n, err := listener.Wait(context.Background(), uuid.NewString(), "")
	require.NoError(t, err)
	assert.Nil(t, n, "timeout resolves with no notification")
	assert.GreaterOrEqual(t, time.Since(start), 1*time.Second)
}

func TestListenerDiscardsMalformedPayload(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	userID := uuid.NewString()
	listener := NewListener(pool, 10*time.Second)

	type result struct {
		n   *models.Notification
		err error
	}
	results := make(chan result, 1)
	go func() {
		n, err := listener.Wait(ctx, userID, "")
		results <- result{n, err}
	}()

	time.Sleep(500 * time.Millisecond)
	_, err := pool.Exec(ctx, "SELECT pg_notify($1, $2)", UserChannel(userID), "{not json")
	require.NoError(t, err)

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Nil(t, r.n, "malformed payload resolves like a timeout")
	case <-time.After(15 * time.Second):
		t.Fatal("listener did not resolve")
	}
}

func TestPublisherFanOutReachesUserAndThreadChannels(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	userA := uuid.NewString()
	userB := uuid.NewString()
	threadID := uuid.NewString()
	msg := models.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderID:  userA,
		Content:   "fan-out",
		CreatedAt: time.Now().UTC(),
	}

	listener := NewListener(pool, 10*time.Second)

	// One listener per channel kind, for both participants: all four must
	// resolve from a single send.
	waits := []struct {
		user   string
		thread string
	}{
		{userA, ""},
		{userA, threadID},
		{userB, ""},
		{userB, threadID},
	}

	results := make(chan *models.Notification, len(waits))
	for _, w := range waits {
		go func(user, thread string) {
			n, err := listener.Wait(ctx, user, thread)
			assert.NoError(t, err)
			results <- n
		}(w.user, w.thread)
	}

	time.Sleep(500 * time.Millisecond)
	NewPublisher(pool).PublishMessage(ctx, msg, []string{userA, userB})

	for i := 0; i < len(waits); i++ {
		select {
		case n := <-results:
			require.NotNil(t, n)
			assert.Equal(t, msg.ID, n.Message.ID, "payload is identical across emissions")
		case <-time.After(15 * time.Second):
			t.Fatal("not all channels received the notification")
		}
	}
}

// Package pollclient consumes the Wallie long-poll endpoint: one
// outstanding request at a time, reissued immediately on timeout or
// delivery, with a fixed delay only after transport errors. Notifications
// are fire-and-forget on the server side, so anything emitted while no
// request was in flight is missed; callers recover by refetching history.
package pollclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/wallie/pkg/models"
)

// DefaultRetryDelay is the pause after a transport or decode error. Timeout
// and success responses reconnect with no delay at all.
const DefaultRetryDelay = 2 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "https://wallie.example.com".
	BaseURL string
	// Token is the bearer session token identifying the polling user.
	Token string
	// ThreadID scopes the subscription to one thread; empty subscribes to
	// the per-user channel.
	ThreadID string

	// OnMessage is invoked for every delivered notification, before the
	// next poll is issued.
	OnMessage func(models.Notification)
	// OnError is invoked for transport and decode errors. The loop keeps
	// running; errors are never fatal to it.
	OnError func(error)

	// HTTPClient defaults to a client whose timeout comfortably exceeds the
	// server's 60s wait budget.
	HTTPClient *http.Client
	// RetryDelay defaults to DefaultRetryDelay.
	RetryDelay time.Duration
}

// Client runs the poll loop. Each instance is one logical subscription;
// independent instances (one per tab, per consumer) each receive their own
// copy of every notification.
type Client struct {
	cfg  Config
	http *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poll client. Start must be called to begin polling.
func New(cfg Config) *Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Start launches the poll loop. Calling Start while the loop is already
// running is a no-op. The loop stops when ctx is cancelled or Stop is
// called.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(loopCtx, c.done)
}

// Stop aborts any in-flight request and halts the loop. It blocks until the
// loop has exited and is safe to call more than once.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Driven loop rather than self-recursion: the stop condition is checked
// before every iteration, so long-lived sessions cannot grow a call stack.
func (c *Client) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		notification, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if c.cfg.OnError != nil {
				c.cfg.OnError(err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.RetryDelay):
			}
			continue
		}

		if notification != nil && c.cfg.OnMessage != nil {
			c.cfg.OnMessage(*notification)
		}
		// Timeout and success both reconnect immediately to keep the pipe
		// open.
	}
}

// poll issues one long-poll request. (nil, nil) means the server's wait
// budget elapsed with nothing to deliver.
func (c *Client) poll(ctx context.Context) (*models.Notification, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "/api/v1/messages/poll")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if c.cfg.ThreadID != "" {
		endpoint += "?threadId=" + url.QueryEscape(c.cfg.ThreadID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var notification models.Notification
		if err := json.NewDecoder(resp.Body).Decode(&notification); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		return &notification, nil
	default:
		return nil, fmt.Errorf("poll returned unexpected status %d", resp.StatusCode)
	}
}

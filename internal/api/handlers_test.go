package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallie/internal/api/auth"
	"github.com/wallie/internal/messaging"
	"github.com/wallie/pkg/models"
)

// stubService satisfies MessagingService with canned results.
type stubService struct {
	thread      *models.Thread
	message     *models.Message
	messagePage models.Page[models.Message]
	threadPage  models.Page[models.ThreadWithParticipants]
	err         error
}

func (s *stubService) ResolveThread(context.Context, string, string) (*models.Thread, bool, error) {
	return s.thread, s.thread != nil, s.err
}
func (s *stubService) SendMessage(context.Context, string, string, string) (*models.Message, error) {
	return s.message, s.err
}
func (s *stubService) EditMessage(context.Context, string, string, string) (*models.Message, error) {
	return s.message, s.err
}
func (s *stubService) DeleteMessage(context.Context, string, string) error { return s.err }
func (s *stubService) ListThreads(context.Context, string, string, int) (models.Page[models.ThreadWithParticipants], error) {
	return s.threadPage, s.err
}
func (s *stubService) ListMessages(context.Context, string, string, string, int) (models.Page[models.Message], error) {
	return s.messagePage, s.err
}
func (s *stubService) GetMessage(context.Context, string, string) (*models.Message, error) {
	return s.message, s.err
}
func (s *stubService) RequireParticipant(context.Context, string, string) error { return s.err }

// stubWaiter satisfies NotificationWaiter.
type stubWaiter struct {
	notification *models.Notification
	err          error
}

func (w *stubWaiter) Wait(context.Context, string, string) (*models.Notification, error) {
	return w.notification, w.err
}

func newContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set(string(auth.UserIDContextKey), "user-1")
	return c, rec
}

func TestPollEndpoint(t *testing.T) {
	t.Run("TimeoutMapsToNoContent", func(t *testing.T) {
		h := NewMessagesHandler(&stubService{}, &stubWaiter{})
		c, rec := newContext(t, http.MethodGet, "/api/v1/messages/poll", "")

		require.NoError(t, h.Poll(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("NotificationMapsToOK", func(t *testing.T) {
		n := &models.Notification{
			Message:   models.Message{ID: "m1", ThreadID: "t1", SenderID: "user-2", Content: "hi"},
			ThreadID:  "t1",
			Timestamp: time.Now().UTC(),
		}
		h := NewMessagesHandler(&stubService{}, &stubWaiter{notification: n})
		c, rec := newContext(t, http.MethodGet, "/api/v1/messages/poll", "")

		require.NoError(t, h.Poll(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got models.Notification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "hi", got.Message.Content)
		assert.Equal(t, "t1", got.ThreadID)
	})

	t.Run("NonParticipantThreadPollIsForbidden", func(t *testing.T) {
		h := NewMessagesHandler(&stubService{err: messaging.ErrNotParticipant}, &stubWaiter{})
		c, _ := newContext(t, http.MethodGet, "/api/v1/messages/poll?threadId=t1", "")

		err := h.Poll(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}

func TestThreadEndpoints(t *testing.T) {
	t.Run("ResolveCreatedThread", func(t *testing.T) {
		thread := &models.Thread{ID: "t1", CreatedAt: time.Now(), LastMessageAt: time.Now()}
		h := NewMessagesHandler(&stubService{thread: thread}, &stubWaiter{})
		c, rec := newContext(t, http.MethodPost, "/api/v1/threads", `{"recipientId":"user-2"}`)

		require.NoError(t, h.ResolveThread(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("ResolveRequiresRecipient", func(t *testing.T) {
		h := NewMessagesHandler(&stubService{}, &stubWaiter{})
		c, _ := newContext(t, http.MethodPost, "/api/v1/threads", `{}`)

		err := h.ResolveThread(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})

	t.Run("ListThreadsReturnsEnvelope", func(t *testing.T) {
		cursor := "2025-06-01T12:00:00Z"
		h := NewMessagesHandler(&stubService{threadPage: models.Page[models.ThreadWithParticipants]{
			Data:       []models.ThreadWithParticipants{{Thread: models.Thread{ID: "t1"}}},
			NextCursor: &cursor,
			HasMore:    true,
		}}, &stubWaiter{})
		c, rec := newContext(t, http.MethodGet, "/api/v1/threads?limit=5", "")

		require.NoError(t, h.ListThreads(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Contains(t, got, "data")
		assert.Contains(t, got, "nextCursor")
		assert.Contains(t, got, "hasMore")
	})
}

func TestMessageEndpoints(t *testing.T) {
	t.Run("SendReturnsCreated", func(t *testing.T) {
		msg := &models.Message{ID: "m1", ThreadID: "t1", SenderID: "user-1", Content: "hi"}
		h := NewMessagesHandler(&stubService{message: msg}, &stubWaiter{})
		c, rec := newContext(t, http.MethodPost, "/api/v1/threads/t1/messages", `{"content":"hi"}`)
		c.SetParamNames("id")
		c.SetParamValues("t1")

		require.NoError(t, h.SendMessage(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("EditByNonSenderIsForbidden", func(t *testing.T) {
		h := NewMessagesHandler(&stubService{err: messaging.ErrNotSender}, &stubWaiter{})
		c, _ := newContext(t, http.MethodPatch, "/api/v1/messages/m1", `{"content":"edit"}`)
		c.SetParamNames("id")
		c.SetParamValues("m1")

		err := h.EditMessage(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})

	t.Run("DeleteReturnsNoContent", func(t *testing.T) {
		h := NewMessagesHandler(&stubService{}, &stubWaiter{})
		c, rec := newContext(t, http.MethodDelete, "/api/v1/messages/m1", "")
		c.SetParamNames("id")
		c.SetParamValues("m1")

		require.NoError(t, h.DeleteMessage(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("GetReturnsTombstoneFields", func(t *testing.T) {
		deletedAt := time.Now().UTC()
		msg := &models.Message{ID: "m1", ThreadID: "t1", SenderID: "user-1", Content: "hi", DeletedAt: &deletedAt}
		h := NewMessagesHandler(&stubService{message: msg}, &stubWaiter{})
		c, rec := newContext(t, http.MethodGet, "/api/v1/messages/m1", "")
		c.SetParamNames("id")
		c.SetParamValues("m1")

		require.NoError(t, h.GetMessage(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got models.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.NotNil(t, got.DeletedAt)
		assert.True(t, got.Deleted())
	})

	t.Run("BadCursorIsBadRequest", func(t *testing.T) {
		h := NewMessagesHandler(&stubService{err: messaging.ErrBadCursor}, &stubWaiter{})
		c, _ := newContext(t, http.MethodGet, "/api/v1/threads/t1/messages?cursor=junk", "")
		c.SetParamNames("id")
		c.SetParamValues("t1")

		err := h.ListMessages(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})

	t.Run("UnknownMessageIsNotFound", func(t *testing.T) {
		h := NewMessagesHandler(&stubService{err: messaging.ErrMessageNotFound}, &stubWaiter{})
		c, _ := newContext(t, http.MethodDelete, "/api/v1/messages/m404", "")
		c.SetParamNames("id")
		c.SetParamValues("m404")

		err := h.DeleteMessage(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/wallie/internal/api/auth"
	"github.com/wallie/internal/messaging"
	"github.com/wallie/pkg/models"
)

// MessagingService is the slice of the messaging domain the handlers need.
type MessagingService interface {
	ResolveThread(ctx context.Context, userID, recipientID string) (*models.Thread, bool, error)
	SendMessage(ctx context.Context, threadID, senderID, content string) (*models.Message, error)
	EditMessage(ctx context.Context, messageID, userID, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID, userID string) error
	ListThreads(ctx context.Context, userID, cursor string, limit int) (models.Page[models.ThreadWithParticipants], error)
	ListMessages(ctx context.Context, threadID, userID, cursor string, limit int) (models.Page[models.Message], error)
	GetMessage(ctx context.Context, messageID, userID string) (*models.Message, error)
	RequireParticipant(ctx context.Context, threadID, userID string) error
}

// NotificationWaiter is the long-poll bridge: it blocks until a notification
// arrives for the user (optionally scoped to a thread) or the budget
// elapses, in which case it returns (nil, nil).
type NotificationWaiter interface {
	Wait(ctx context.Context, userID, threadID string) (*models.Notification, error)
}

// MessagesHandler serves the thread, message and poll endpoints.
type MessagesHandler struct {
	service  MessagingService
	listener NotificationWaiter
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(service MessagingService, listener NotificationWaiter) *MessagesHandler {
	return &MessagesHandler{service: service, listener: listener}
}

// Poll handles GET /api/v1/messages/poll. It holds the request open until a
// message notification arrives (200 with the envelope) or the wait budget
// elapses (204); either way the client reconnects immediately.
func (h *MessagesHandler) Poll(c echo.Context) error {
	userID := auth.GetUserID(c)
	threadID := c.QueryParam("threadId")

	// Thread-scoped polls are participant-only, checked before any
	// subscription work happens.
	if threadID != "" {
		if err := h.service.RequireParticipant(c.Request().Context(), threadID, userID); err != nil {
			return domainError(err)
		}
	}

	notification, err := h.listener.Wait(c.Request().Context(), userID, threadID)
	if err != nil {
		// The client aborting its request tears the listener down; there is
		// nobody left to answer.
		if c.Request().Context().Err() != nil {
			return nil
		}
		return domainError(err)
	}
	if notification == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, notification)
}

// ListThreads handles GET /api/v1/threads
func (h *MessagesHandler) ListThreads(c echo.Context) error {
	page, err := h.service.ListThreads(
		c.Request().Context(),
		auth.GetUserID(c),
		c.QueryParam("cursor"),
		intQueryParam(c, "limit"),
	)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, page)
}

type resolveThreadRequest struct {
	RecipientID string `json:"recipientId"`
}

// ResolveThread handles POST /api/v1/threads
func (h *MessagesHandler) ResolveThread(c echo.Context) error {
	var req resolveThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.RecipientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipientId is required")
	}

	thread, created, err := h.service.ResolveThread(c.Request().Context(), auth.GetUserID(c), req.RecipientID)
	if err != nil {
		return domainError(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, thread)
}

// ListMessages handles GET /api/v1/threads/:id/messages
func (h *MessagesHandler) ListMessages(c echo.Context) error {
	page, err := h.service.ListMessages(
		c.Request().Context(),
		c.Param("id"),
		auth.GetUserID(c),
		c.QueryParam("cursor"),
		intQueryParam(c, "limit"),
	)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, page)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage handles POST /api/v1/threads/:id/messages
func (h *MessagesHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	msg, err := h.service.SendMessage(c.Request().Context(), c.Param("id"), auth.GetUserID(c), req.Content)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

type editMessageRequest struct {
	Content string `json:"content"`
}

// EditMessage handles PATCH /api/v1/messages/:id
func (h *MessagesHandler) EditMessage(c echo.Context) error {
	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	msg, err := h.service.EditMessage(c.Request().Context(), c.Param("id"), auth.GetUserID(c), req.Content)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, msg)
}

// GetMessage handles GET /api/v1/messages/:id. Soft-deleted messages stay
// retrievable by id, tombstone included.
func (h *MessagesHandler) GetMessage(c echo.Context) error {
	msg, err := h.service.GetMessage(c.Request().Context(), c.Param("id"), auth.GetUserID(c))
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, msg)
}

// DeleteMessage handles DELETE /api/v1/messages/:id
func (h *MessagesHandler) DeleteMessage(c echo.Context) error {
	if err := h.service.DeleteMessage(c.Request().Context(), c.Param("id"), auth.GetUserID(c)); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func intQueryParam(c echo.Context, name string) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// domainError maps messaging outcomes to HTTP status codes.
func domainError(err error) error {
	switch {
	case errors.Is(err, messaging.ErrThreadNotFound),
		errors.Is(err, messaging.ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, messaging.ErrNotParticipant),
		errors.Is(err, messaging.ErrNotSender):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, messaging.ErrBadCursor),
		errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, messaging.ErrMessageDeleted):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled error in messages handler")
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

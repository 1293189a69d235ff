package messaging

import (
	"context"
	"database/sql"
	"strings"

	"github.com/wallie/pkg/models"
)

// NotificationPublisher is the outbound side of message delivery. Publishing
// happens after the message write commits and must never fail the send.
type NotificationPublisher interface {
	PublishMessage(ctx context.Context, msg models.Message, participantIDs []string)
}

// Service wires thread resolution, message operations and pagination behind
// the authorization checks the API relies on: participant-only read/poll,
// sender-only edit/delete.
type Service struct {
	threads   *ThreadRepo
	messages  *MessageRepo
	publisher NotificationPublisher

	defaultLimit int
	maxLimit     int
}

// NewService creates the messaging service.
func NewService(db *sql.DB, publisher NotificationPublisher, defaultLimit, maxLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 15
	}
	if maxLimit < defaultLimit {
		maxLimit = 30
	}
	return &Service{
		threads:      NewThreadRepo(db),
		messages:     NewMessageRepo(db),
		publisher:    publisher,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// ResolveThread gets or creates the conversation between the caller and
// recipientID. The caller messaging itself yields a single-participant
// self-thread. Repeated calls return the same thread.
func (s *Service) ResolveThread(ctx context.Context, userID, recipientID string) (*models.Thread, bool, error) {
	return s.threads.GetOrCreate(ctx, userID, recipientID)
}

// RequireParticipant verifies the user may read or poll the thread.
func (s *Service) RequireParticipant(ctx context.Context, threadID, userID string) error {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return ErrThreadNotFound
	}
	ok, err := s.threads.IsParticipant(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

// SendMessage persists a message from senderID into threadID and fans the
// notification out to every participant. The notification is best-effort;
// the committed row is the durable truth.
func (s *Service) SendMessage(ctx context.Context, threadID, senderID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if err := s.RequireParticipant(ctx, threadID, senderID); err != nil {
		return nil, err
	}

	msg, err := s.messages.Create(ctx, threadID, senderID, content)
	if err != nil {
		return nil, err
	}

	participants, err := s.threads.ParticipantIDs(ctx, threadID)
	if err != nil {
		// The send already succeeded; delivery degrades to the next fetch.
		return msg, nil
	}
	s.publisher.PublishMessage(ctx, *msg, participants)

	return msg, nil
}

// EditMessage updates the body of the caller's own message.
func (s *Service) EditMessage(ctx context.Context, messageID, userID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if err := s.requireSender(ctx, messageID, userID); err != nil {
		return nil, err
	}
	return s.messages.Edit(ctx, messageID, content)
}

// DeleteMessage soft-deletes the caller's own message.
func (s *Service) DeleteMessage(ctx context.Context, messageID, userID string) error {
	if err := s.requireSender(ctx, messageID, userID); err != nil {
		return err
	}
	return s.messages.SoftDelete(ctx, messageID)
}

func (s *Service) requireSender(ctx context.Context, messageID, userID string) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}
	return nil
}

// ListThreads returns one page of the caller's threads, newest activity
// first.
func (s *Service) ListThreads(ctx context.Context, userID, rawCursor string, limit int) (models.Page[models.ThreadWithParticipants], error) {
	cursor, err := ParseCursor(rawCursor)
	if err != nil {
		return models.Page[models.ThreadWithParticipants]{Data: []models.ThreadWithParticipants{}}, err
	}
	return s.threads.ListForUser(ctx, userID, cursor, ClampLimit(limit, s.defaultLimit, s.maxLimit))
}

// ListMessages returns one page of thread history, ascending within the
// page, for a verified participant.
func (s *Service) ListMessages(ctx context.Context, threadID, userID, rawCursor string, limit int) (models.Page[models.Message], error) {
	empty := models.Page[models.Message]{Data: []models.Message{}}
	if err := s.RequireParticipant(ctx, threadID, userID); err != nil {
		return empty, err
	}
	cursor, err := ParseCursor(rawCursor)
	if err != nil {
		return empty, err
	}
	return s.messages.ListHistory(ctx, threadID, cursor, ClampLimit(limit, s.defaultLimit, s.maxLimit))
}

// GetMessage returns a message by id, including soft-deleted ones, for a
// verified participant of its thread.
func (s *Service) GetMessage(ctx context.Context, messageID, userID string) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if err := s.RequireParticipant(ctx, msg.ThreadID, userID); err != nil {
		return nil, err
	}
	return msg, nil
}

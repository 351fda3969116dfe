package messaging

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/golang/glog"

	"github.com/vsocial/minichat/auth"
	"github.com/vsocial/minichat/sanitize"
	"github.com/vsocial/minichat/store"
)

// MaxContentLen caps message bodies, counted in runes after sanitization.
const MaxContentLen = 2000

// createdAtLayout is ISO-8601 with millisecond precision, always UTC.
// Stored verbatim; lexicographic order equals chronological order.
const createdAtLayout = "2006-01-02T15:04:05.000Z"

// Service validates, persists and delivers direct messages.
type Service struct {
	messages store.Messages
	users    store.Users
	registry Registry
}

func NewService(messages store.Messages, users store.Users, registry Registry) *Service {
	return &Service{
		messages: messages,
		users:    users,
		registry: registry,
	}
}

// Send accepts one message from sender to receiverID. Steps, in order:
// sanitize, validate recipient, durably insert, then best-effort live push
// to the recipient's channel. The durable write always precedes the push;
// a missed push is recoverable via Conversation. The sender's own "sent"
// acknowledgement is the transport's job, only the websocket path has a
// sender channel.
//
// There is no retry: on storage failure the message is dropped and the
// caller reports a delivery failure (at-most-once).
func (s *Service) Send(ctx context.Context, sender *auth.Identity, receiverID int64, content string) (*store.Message, error) {
	clean := sanitize.Clean(content)
	if clean == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(clean) > MaxContentLen {
		return nil, ErrContentTooLong
	}
	if receiverID == sender.UserID {
		return nil, ErrSelfMessage
	}
	if receiverID <= 0 {
		return nil, ErrRecipientNotFound
	}

	if _, err := s.users.ByID(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		glog.Errorf("Send(): recipient lookup error, receiver: %d, err: %v", receiverID, err)
		messagesFailed.Inc()
		return nil, ErrDeliveryFailed
	}

	m := &store.Message{
		SenderID:       sender.UserID,
		ReceiverID:     receiverID,
		Content:        clean,
		CreatedAt:      time.Now().UTC().Format(createdAtLayout),
		SenderUsername: sender.Username,
	}

	if err := s.messages.Insert(ctx, m); err != nil {
		// The store-level FK check is a backstop for a recipient deleted
		// between the lookup above and the insert.
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		glog.Errorf("Send(): insert error, sender: %d, receiver: %d, err: %v", sender.UserID, receiverID, err)
		messagesFailed.Inc()
		return nil, ErrDeliveryFailed
	}
	messagesAccepted.Inc()

	if ch, ok := s.registry.Lookup(receiverID); ok {
		if ch.Enqueue(&ServerFrame{Status: StatusReceived, Message: m}) {
			messagesPushed.Inc()
		}
	}

	return m, nil
}

// Conversation returns the full ordered history between uid and otherID.
func (s *Service) Conversation(ctx context.Context, uid, otherID int64) ([]*store.Message, error) {
	return s.messages.Conversation(ctx, uid, otherID)
}

// Contacts returns everyone uid has exchanged messages with.
func (s *Service) Contacts(ctx context.Context, uid int64) ([]*store.Contact, error) {
	return s.messages.Contacts(ctx, uid)
}

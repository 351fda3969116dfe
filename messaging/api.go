// Package messaging holds the single accept-message operation shared by the
// websocket frame handler and the REST fallback, so the two delivery paths
// cannot drift apart.
package messaging

import (
	"errors"

	"github.com/vsocial/minichat/store"
)

// ClientFrame is one inbound websocket frame: a request to deliver
// Content to ReceiverID.
type ClientFrame struct {
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
}

const (
	// StatusSent acknowledges a durably stored message to its sender.
	StatusSent = "sent"
	// StatusReceived is the live push to a connected recipient.
	StatusReceived = "received"
)

// ServerFrame is one outbound websocket frame. Exactly one of Error or
// Status is set; Message accompanies a status.
type ServerFrame struct {
	Error   string         `json:"error,omitempty"`
	Status  string         `json:"status,omitempty"`
	Message *store.Message `json:"message,omitempty"`
}

// Channel is a live outbound connection to one user.
type Channel interface {
	// Enqueue hands a frame to the connection's writer without blocking
	// on the network. Reports false when the connection is closing.
	Enqueue(f *ServerFrame) bool
}

// Registry resolves a user id to its live channel, if any.
type Registry interface {
	Lookup(uid int64) (Channel, bool)
}

var (
	ErrEmptyContent      = errors.New("content empty after sanitization")
	ErrContentTooLong    = errors.New("content too long")
	ErrSelfMessage       = errors.New("sender and recipient are the same user")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrDeliveryFailed    = errors.New("message could not be stored")
)

// ClientText maps a Send error to the user-facing message, shared by the
// websocket error frame and the REST error body.
func ClientText(err error) string {
	switch {
	case errors.Is(err, ErrEmptyContent):
		return "Conteúdo inválido"
	case errors.Is(err, ErrContentTooLong):
		return "Conteúdo muito longo"
	case errors.Is(err, ErrSelfMessage):
		return "Destinatário inválido"
	case errors.Is(err, ErrRecipientNotFound):
		return "Destinatário não encontrado"
	default:
		return "Erro ao enviar mensagem"
	}
}

package store

import (
	"context"
	"errors"
)

// Message is one direct message between two users. Rows are immutable:
// there is no edit, retraction or delete path.
type Message struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
	// CreatedAt is the ISO-8601 UTC timestamp assigned at accept time,
	// not a database default.
	CreatedAt      string `json:"createdAt"`
	SenderUsername string `json:"senderUsername,omitempty"`
}

// Contact is a user that exchanged at least one message with someone.
type Contact struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type User struct {
	ID       int64
	Username string
	Password string // bcrypt hash
}

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username already taken")
)

type Messages interface {
	// Insert persists m and sets m.ID from the assigned row id.
	// A foreign key violation surfaces as ErrUserNotFound; callers are
	// expected to have checked the recipient first, this is a backstop.
	Insert(ctx context.Context, m *Message) error

	// Conversation returns all messages between uid and otherID, in both
	// directions, ascending by creation time, with SenderUsername filled.
	Conversation(ctx context.Context, uid, otherID int64) ([]*Message, error)

	// Contacts returns every user that exchanged at least one message
	// with uid, excluding uid itself, ordered by username.
	Contacts(ctx context.Context, uid int64) ([]*Contact, error)
}

type Users interface {
	ByID(ctx context.Context, id int64) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)

	// Create inserts a new user and returns its id.
	// Returns ErrDuplicateUser when the username is taken.
	Create(ctx context.Context, username, passwordHash string) (int64, error)
}

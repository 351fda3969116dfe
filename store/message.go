package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
)

const (
	insertMessageSQL = "INSERT INTO messages (sender_id, receiver_id, content, created_at) VALUES (?,?,?,?)"

	conversationSQL = "SELECT m.id, m.sender_id, m.receiver_id, m.content, m.created_at, u.username " +
		"FROM messages AS m JOIN users AS u ON m.sender_id = u.id " +
		"WHERE (m.sender_id = ? AND m.receiver_id = ?) OR (m.sender_id = ? AND m.receiver_id = ?) " +
		"ORDER BY m.created_at ASC, m.id ASC"

	contactsSQL = "SELECT u.id, u.username FROM users AS u WHERE u.id IN (" +
		"SELECT sender_id FROM messages WHERE receiver_id = ? " +
		"UNION SELECT receiver_id FROM messages WHERE sender_id = ?" +
		") AND u.id <> ? ORDER BY u.username ASC"
)

// messageStore implements `Messages` on MySQL.
type messageStore struct {
	*sql.DB
}

func NewMessages(db *sql.DB) *messageStore {
	return &messageStore{db}
}

func (s *messageStore) Insert(ctx context.Context, m *Message) error {
	res, err := s.ExecContext(ctx, insertMessageSQL, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt)
	if err != nil {
		if isFKError(err) {
			return fmt.Errorf("insert message: %w", ErrUserNotFound)
		}
		glog.Errorf("insert message exec err: %v", err)
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		glog.Errorf("insert message last id err: %v", err)
		return err
	}
	m.ID = id
	return nil
}

func (s *messageStore) Conversation(ctx context.Context, uid, otherID int64) ([]*Message, error) {
	rows, err := s.QueryContext(ctx, conversationSQL, uid, otherID, otherID, uid)
	if err != nil {
		glog.Errorf("conversation query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.SenderUsername); err != nil {
			glog.Errorf("conversation scan err: %v", err)
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *messageStore) Contacts(ctx context.Context, uid int64) ([]*Contact, error) {
	rows, err := s.QueryContext(ctx, contactsSQL, uid, uid, uid)
	if err != nil {
		glog.Errorf("contacts query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Username); err != nil {
			glog.Errorf("contacts scan err: %v", err)
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// isFKError reports whether err is a MySQL foreign key violation (1452).
func isFKError(err error) bool {
	if val, ok := err.(*mysql.MySQLError); ok {
		return val.Number == 1452
	}
	return false
}

// isDupKeyError reports whether err is a MySQL duplicate key error (1062).
func isDupKeyError(err error) bool {
	if val, ok := err.(*mysql.MySQLError); ok {
		return val.Number == 1062
	}
	return false
}

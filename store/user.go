package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"
)

const (
	getUserSQL       = "SELECT id, username, password FROM users WHERE id = ?"
	getUserByNameSQL = "SELECT id, username, password FROM users WHERE username = ?"
	insertUserSQL    = "INSERT INTO users (username, password) VALUES (?,?)"
)

// userStore implements `Users` on MySQL. The rest of the user-account
// surface (profiles, avatars) lives in another service; the messaging
// core only needs existence checks and credentials.
type userStore struct {
	*sql.DB
}

func NewUsers(db *sql.DB) *userStore {
	return &userStore{db}
}

func (s *userStore) ByID(ctx context.Context, id int64) (*User, error) {
	return s.scanOne(s.QueryRowContext(ctx, getUserSQL, id))
}

func (s *userStore) ByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanOne(s.QueryRowContext(ctx, getUserByNameSQL, username))
}

func (s *userStore) scanOne(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Password); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		glog.Errorf("get user scan err: %v", err)
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.ExecContext(ctx, insertUserSQL, username, passwordHash)
	if err != nil {
		if isDupKeyError(err) {
			return 0, fmt.Errorf("create user `%s`: %w", username, ErrDuplicateUser)
		}
		glog.Errorf("insert user exec err: %v", err)
		return 0, err
	}
	return res.LastInsertId()
}

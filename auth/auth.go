package auth

import "errors"

// Identity is the authenticated user derived from a verified token.
// It is never persisted here; the account store owns user records.
type Identity struct {
	UserID   int64
	Username string
}

var (
	ErrMissingToken = errors.New("no token supplied")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type Verifier interface {
	// Verify validates an opaque bearer token and returns the identity it
	// carries, or one of ErrMissingToken, ErrInvalidToken, ErrExpiredToken.
	Verify(token string) (*Identity, error)
}

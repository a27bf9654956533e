package store

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"gridmatch/internal/apperr"
)

// NewSessionToken generates a 24-byte random bearer token, hex-encoded for
// transport. The store only ever persists its SHA-256 hash (spec.md §3).
func NewSessionToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateSession persists a session for userID, expiring after ttl.
func (s *Store) CreateSession(token, userID string, ttl time.Duration) error {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err := s.DB.Exec(
		fmt.Sprintf(`INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES (%s, %s, %s, %s)`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4)),
		hashToken(token), userID, now, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// ResolveSession returns the userID bound to token, failing with
// CodeUnauthorized if the token is unknown or expired.
func (s *Store) ResolveSession(token string) (string, error) {
	var (
		userID    string
		expiresAt time.Time
	)

	row := s.DB.QueryRow(
		fmt.Sprintf(`SELECT user_id, expires_at FROM sessions WHERE token_hash = %s`, s.placeholder(1)),
		hashToken(token),
	)
	err := row.Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return "", apperr.New(apperr.CodeUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}

	if time.Now().UTC().After(expiresAt) {
		return "", apperr.New(apperr.CodeUnauthorized)
	}

	return userID, nil
}

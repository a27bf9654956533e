package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gridmatch/internal/apperr"
)

// User mirrors the User entity of spec.md §3.
type User struct {
	UserID       string
	Username     sql.NullString
	DisplayName  string
	GameNickname sql.NullString
	ReferralCode sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// GetOrCreateUser returns the user for userID, creating one with the given
// display name on first authenticated login (spec.md §3).
func (s *Store) GetOrCreateUser(userID, displayName string) (*User, error) {
	u, err := s.GetUserByID(userID)
	if err == nil {
		return u, nil
	}
	if apperr.CodeOf(err) != apperr.CodeUserMissing {
		return nil, err
	}

	now := time.Now().UTC()
	ph := s.placeholder
	_, err = s.DB.Exec(
		fmt.Sprintf(`INSERT INTO users (user_id, display_name, created_at, updated_at) VALUES (%s, %s, %s, %s)`,
			ph(1), ph(2), ph(3), ph(4)),
		userID, displayName, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetUserByID(userID)
}

// GetUserByID fetches a user row, returning a CodeUserMissing apperr.Error
// when absent so callers can branch without string matching.
func (s *Store) GetUserByID(userID string) (*User, error) {
	u := &User{}
	row := s.DB.QueryRow(
		fmt.Sprintf(`SELECT user_id, username, display_name, game_nickname, referral_code, created_at, updated_at
		 FROM users WHERE user_id = %s`, s.placeholder(1)),
		userID,
	)
	err := row.Scan(&u.UserID, &u.Username, &u.DisplayName, &u.GameNickname, &u.ReferralCode, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.CodeUserMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// SetNickname validates and sets a user's unique, case-insensitive game
// nickname per spec.md §3's `[A-Za-z0-9_]{3,16}` rule.
func (s *Store) SetNickname(userID, nickname string) error {
	if !nicknamePattern.MatchString(nickname) {
		return apperr.New("invalid_nickname")
	}

	lower := strings.ToLower(nickname)
	var existing string
	row := s.DB.QueryRow(
		fmt.Sprintf(`SELECT user_id FROM users WHERE LOWER(game_nickname) = %s AND user_id != %s`, s.placeholder(1), s.placeholder(2)),
		lower, userID,
	)
	switch err := row.Scan(&existing); err {
	case nil:
		return apperr.New("nickname_taken")
	case sql.ErrNoRows:
		// fall through, nickname is free
	default:
		return fmt.Errorf("failed to check nickname uniqueness: %w", err)
	}

	_, err := s.DB.Exec(
		fmt.Sprintf(`UPDATE users SET game_nickname = %s, updated_at = %s WHERE user_id = %s`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3)),
		nickname, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set nickname: %w", err)
	}
	return nil
}

package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"gridmatch/internal/apperr"
)

// Room mirrors the Room entity of spec.md §3.
type Room struct {
	RoomCode        string
	OwnerUserID     string
	Name            sql.NullString
	Capacity        int
	Status          string
	Phase           string
	IsPublic        bool
	HasPassword     bool
	PasswordHash    sql.NullString
	PasswordSalt    sql.NullString
	StartedAt       sql.NullTime
	StartedByUserID sql.NullString
	CreatedAt       time.Time
}

// Member mirrors the RoomMember entity of spec.md §3.
type Member struct {
	RoomCode string
	UserID   string
	JoinedAt time.Time
	Ready    bool
}

// roomCodeAlphabet excludes visually ambiguous characters (spec.md §3, §9).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateRoomCode() string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))])
	}
	return b.String()
}

func (s *Store) forUpdate() string {
	if s.Dialect == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// CreateRoom creates a LOBBY/OPEN room owned by ownerUserID and inserts the
// owner as an implicitly-ready member, retrying room-code collisions up to
// 8 times before giving up (spec.md §4.3).
func (s *Store) CreateRoom(ownerUserID string, capacity int, name string, isPublic bool, passwordHash, passwordSalt string) (*Room, error) {
	if capacity < 2 || capacity > 4 {
		return nil, apperr.New(apperr.CodeCapacityInvalid)
	}

	var nameArg sql.NullString
	if name != "" {
		nameArg = sql.NullString{String: name, Valid: true}
	}
	var hashArg, saltArg sql.NullString
	hasPassword := passwordHash != ""
	if hasPassword {
		hashArg = sql.NullString{String: passwordHash, Valid: true}
		saltArg = sql.NullString{String: passwordSalt, Valid: true}
	}

	const maxAttempts = 8
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := generateRoomCode()

		tx, err := s.DB.Begin()
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		var existing string
		err = tx.QueryRow(fmt.Sprintf(`SELECT room_code FROM rooms WHERE room_code = %s`, s.placeholder(1)), code).Scan(&existing)
		if err == nil {
			tx.Rollback()
			continue // collision, retry with a fresh code
		}
		if err != sql.ErrNoRows {
			tx.Rollback()
			return nil, fmt.Errorf("failed to check room code: %w", err)
		}

		now := time.Now().UTC()
		_, err = tx.Exec(
			fmt.Sprintf(`INSERT INTO rooms (room_code, owner_user_id, name, capacity, status, phase, is_public, has_password, password_hash, password_salt, created_at)
			 VALUES (%s, %s, %s, %s, 'OPEN', 'LOBBY', %s, %s, %s, %s, %s)`,
				s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
				s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9)),
			code, ownerUserID, nameArg, capacity, isPublic, hasPassword, hashArg, saltArg, now,
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert room: %w", err)
		}

		_, err = tx.Exec(
			fmt.Sprintf(`INSERT INTO room_members (room_code, user_id, joined_at, ready) VALUES (%s, %s, %s, %s)`,
				s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4)),
			code, ownerUserID, now, true,
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert owner membership: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit room creation: %w", err)
		}

		return s.GetRoom(code)
	}

	return nil, apperr.New(apperr.CodeRoomCodeConflict)
}

// JoinRoom inserts userID as a member of code if the room is OPEN, in LOBBY
// phase, not full, and (when a password is set) verify returns true for the
// stored hash/salt. Already being a member is idempotent: the existing
// membership is returned without modification (spec.md §8).
func (s *Store) JoinRoom(userID, code, password string, verify func(hash, salt, password string) bool) (*Room, error) {
	code = strings.ToUpper(code)

	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	room, err := s.getRoomTx(tx, code)
	if err != nil {
		return nil, err
	}
	if room.Status != "OPEN" {
		return nil, apperr.New(apperr.CodeRoomClosed)
	}

	var already string
	err = tx.QueryRow(
		fmt.Sprintf(`SELECT user_id FROM room_members WHERE room_code = %s AND user_id = %s`, s.placeholder(1), s.placeholder(2)),
		code, userID,
	).Scan(&already)
	if err == nil {
		tx.Commit()
		return s.GetRoom(code)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	if room.Phase != "LOBBY" {
		return nil, apperr.New(apperr.CodeRoomStarted)
	}

	if room.HasPassword {
		if !room.PasswordHash.Valid || !room.PasswordSalt.Valid || !verify(room.PasswordHash.String, room.PasswordSalt.String, password) {
			return nil, apperr.New(apperr.CodeWrongPassword)
		}
	}

	var count int
	if err := tx.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM room_members WHERE room_code = %s`, s.placeholder(1)), code).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= room.Capacity {
		return nil, apperr.New(apperr.CodeRoomFull)
	}

	_, err = tx.Exec(
		fmt.Sprintf(`INSERT INTO room_members (room_code, user_id, joined_at, ready) VALUES (%s, %s, %s, %s)`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4)),
		code, userID, time.Now().UTC(), false,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}
	return s.GetRoom(code)
}

// SetReady updates a member's ready flag.
func (s *Store) SetReady(userID, code string, ready bool) error {
	code = strings.ToUpper(code)

	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	room, err := s.getRoomTx(tx, code)
	if err != nil {
		return err
	}
	if room.Status != "OPEN" {
		return apperr.New(apperr.CodeRoomClosed)
	}
	if room.Phase != "LOBBY" {
		return apperr.New(apperr.CodeRoomStarted)
	}

	res, err := tx.Exec(
		fmt.Sprintf(`UPDATE room_members SET ready = %s WHERE room_code = %s AND user_id = %s`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3)),
		ready, code, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ready state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.CodeNotAMember)
	}

	return tx.Commit()
}

// StartRoom transitions a room LOBBY -> STARTED when the caller is the
// owner, membership is within [2, capacity], and every non-owner member is
// ready (spec.md §4.3).
func (s *Store) StartRoom(ownerUserID, code string) error {
	code = strings.ToUpper(code)

	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	room, err := s.getRoomTx(tx, code)
	if err != nil {
		return err
	}
	if room.OwnerUserID != ownerUserID {
		return apperr.New(apperr.CodeForbidden)
	}
	if room.Phase != "LOBBY" {
		return apperr.New(apperr.CodeRoomStarted)
	}

	members, err := s.listMembersTx(tx, code)
	if err != nil {
		return err
	}
	if len(members) < 2 || len(members) > room.Capacity {
		return apperr.New(apperr.CodeNotEnoughPlayers)
	}
	for _, m := range members {
		if m.UserID == ownerUserID {
			continue
		}
		if !m.Ready {
			return apperr.New(apperr.CodeNotAllReady)
		}
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		fmt.Sprintf(`UPDATE rooms SET phase = 'STARTED', started_at = %s, started_by_user_id = %s WHERE room_code = %s`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3)),
		now, ownerUserID, code,
	)
	if err != nil {
		return fmt.Errorf("failed to start room: %w", err)
	}

	return tx.Commit()
}

// LeaveRoom removes userID's membership from whichever OPEN room they
// belong to. If the caller is the owner the room is closed and all
// memberships removed; if the caller was the last member the room is
// deleted (spec.md §4.3).
func (s *Store) LeaveRoom(userID string) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var code string
	err = tx.QueryRow(
		fmt.Sprintf(`SELECT rm.room_code FROM room_members rm JOIN rooms r ON r.room_code = rm.room_code
		 WHERE rm.user_id = %s AND r.status = 'OPEN'`, s.placeholder(1)),
		userID,
	).Scan(&code)
	if err == sql.ErrNoRows {
		return apperr.New(apperr.CodeRoomNotJoined)
	}
	if err != nil {
		return fmt.Errorf("failed to find membership: %w", err)
	}

	room, err := s.getRoomTx(tx, code)
	if err != nil {
		return err
	}

	if room.OwnerUserID == userID {
		if err := s.closeAndWipeTx(tx, code); err != nil {
			return err
		}
		return tx.Commit()
	}

	if _, err := tx.Exec(
		fmt.Sprintf(`DELETE FROM room_members WHERE room_code = %s AND user_id = %s`, s.placeholder(1), s.placeholder(2)),
		code, userID,
	); err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	var remaining int
	if err := tx.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM room_members WHERE room_code = %s`, s.placeholder(1)), code).Scan(&remaining); err != nil {
		return fmt.Errorf("failed to count remaining members: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM rooms WHERE room_code = %s`, s.placeholder(1)), code); err != nil {
			return fmt.Errorf("failed to delete empty room: %w", err)
		}
	}

	return tx.Commit()
}

// CloseRoom closes a room owned by ownerUserID and deletes its memberships.
func (s *Store) CloseRoom(ownerUserID, code string) error {
	code = strings.ToUpper(code)

	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	room, err := s.getRoomTx(tx, code)
	if err != nil {
		return err
	}
	if room.OwnerUserID != ownerUserID {
		return apperr.New(apperr.CodeForbidden)
	}

	if err := s.closeAndWipeTx(tx, code); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) closeAndWipeTx(tx *sql.Tx, code string) error {
	if _, err := tx.Exec(fmt.Sprintf(`UPDATE rooms SET status = 'CLOSED' WHERE room_code = %s`, s.placeholder(1)), code); err != nil {
		return fmt.Errorf("failed to close room: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM room_members WHERE room_code = %s`, s.placeholder(1)), code); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	return nil
}

// SetRoomPhase force-sets a room's phase, keeping startedAt idempotent when
// transitioning to STARTED (spec.md §4.3).
func (s *Store) SetRoomPhase(code, phase string) error {
	code = strings.ToUpper(code)

	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if phase == "STARTED" {
		var startedAt sql.NullTime
		if err := tx.QueryRow(fmt.Sprintf(`SELECT started_at FROM rooms WHERE room_code = %s`, s.placeholder(1)), code).Scan(&startedAt); err != nil {
			if err == sql.ErrNoRows {
				return apperr.New(apperr.CodeRoomNotFound)
			}
			return fmt.Errorf("failed to read room: %w", err)
		}
		if !startedAt.Valid {
			if _, err := tx.Exec(
				fmt.Sprintf(`UPDATE rooms SET phase = %s, started_at = %s WHERE room_code = %s`, s.placeholder(1), s.placeholder(2), s.placeholder(3)),
				phase, time.Now().UTC(), code,
			); err != nil {
				return fmt.Errorf("failed to set phase: %w", err)
			}
			return tx.Commit()
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(`UPDATE rooms SET phase = %s WHERE room_code = %s`, s.placeholder(1), s.placeholder(2)), phase, code); err != nil {
		return fmt.Errorf("failed to set phase: %w", err)
	}
	return tx.Commit()
}

// GetRoom fetches a room by code without locking.
func (s *Store) GetRoom(code string) (*Room, error) {
	code = strings.ToUpper(code)
	room := &Room{}
	row := s.DB.QueryRow(
		fmt.Sprintf(`SELECT room_code, owner_user_id, name, capacity, status, phase, is_public, has_password,
		 password_hash, password_salt, started_at, started_by_user_id, created_at FROM rooms WHERE room_code = %s`, s.placeholder(1)),
		code,
	)
	err := row.Scan(&room.RoomCode, &room.OwnerUserID, &room.Name, &room.Capacity, &room.Status, &room.Phase,
		&room.IsPublic, &room.HasPassword, &room.PasswordHash, &room.PasswordSalt, &room.StartedAt, &room.StartedByUserID, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.CodeRoomNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (s *Store) getRoomTx(tx *sql.Tx, code string) (*Room, error) {
	room := &Room{}
	row := tx.QueryRow(
		fmt.Sprintf(`SELECT room_code, owner_user_id, name, capacity, status, phase, is_public, has_password,
		 password_hash, password_salt, started_at, started_by_user_id, created_at FROM rooms WHERE room_code = %s`+s.forUpdate(), s.placeholder(1)),
		code,
	)
	err := row.Scan(&room.RoomCode, &room.OwnerUserID, &room.Name, &room.Capacity, &room.Status, &room.Phase,
		&room.IsPublic, &room.HasPassword, &room.PasswordHash, &room.PasswordSalt, &room.StartedAt, &room.StartedByUserID, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.CodeRoomNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListMembers returns all members of a room ordered by join time.
func (s *Store) ListMembers(code string) ([]Member, error) {
	code = strings.ToUpper(code)
	rows, err := s.DB.Query(
		fmt.Sprintf(`SELECT room_code, user_id, joined_at, ready FROM room_members WHERE room_code = %s ORDER BY joined_at`, s.placeholder(1)),
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.RoomCode, &m.UserID, &m.JoinedAt, &m.Ready); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, nil
}

func (s *Store) listMembersTx(tx *sql.Tx, code string) ([]Member, error) {
	rows, err := tx.Query(
		fmt.Sprintf(`SELECT room_code, user_id, joined_at, ready FROM room_members WHERE room_code = %s ORDER BY joined_at`, s.placeholder(1)),
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.RoomCode, &m.UserID, &m.JoinedAt, &m.Ready); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, nil
}

// ListPublicRooms returns OPEN, LOBBY-phase public rooms for the "listed
// public set" join flow mentioned in spec.md §1.
func (s *Store) ListPublicRooms(limit int) ([]Room, error) {
	rows, err := s.DB.Query(
		fmt.Sprintf(`SELECT room_code, owner_user_id, name, capacity, status, phase, is_public, has_password,
		 password_hash, password_salt, started_at, started_by_user_id, created_at
		 FROM rooms WHERE is_public = %s AND status = 'OPEN' AND phase = 'LOBBY' ORDER BY created_at DESC LIMIT %s`,
			s.placeholder(1), s.placeholder(2)),
		true, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.RoomCode, &room.OwnerUserID, &room.Name, &room.Capacity, &room.Status, &room.Phase,
			&room.IsPublic, &room.HasPassword, &room.PasswordHash, &room.PasswordSalt, &room.StartedAt, &room.StartedByUserID, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

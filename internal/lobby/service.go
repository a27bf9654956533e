// Package lobby implements the Room Lobby Service (spec component C3): the
// business-rule layer over internal/store's transactional room operations,
// adding password hashing/verification and exposing the API the gateway
// calls directly.
package lobby

import (
	"gridmatch/internal/store"
)

type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// CreateRoom hashes password (if provided) and delegates to the store's
// transactional room creation.
func (s *Service) CreateRoom(ownerUserID string, capacity int, name string, isPublic bool, password string) (*store.Room, error) {
	var hash, salt string
	if password != "" {
		var err error
		hash, salt, err = hashPassword(password)
		if err != nil {
			return nil, err
		}
	}
	return s.store.CreateRoom(ownerUserID, capacity, name, isPublic, hash, salt)
}

// JoinRoom delegates to the store, supplying the constant-time password
// verifier so the comparison happens inside the same transaction that
// checks capacity and phase.
func (s *Service) JoinRoom(userID, code, password string) (*store.Room, error) {
	return s.store.JoinRoom(userID, code, password, verifyPassword)
}

func (s *Service) SetReady(userID, code string, ready bool) error {
	return s.store.SetReady(userID, code, ready)
}

func (s *Service) StartRoom(ownerUserID, code string) error {
	return s.store.StartRoom(ownerUserID, code)
}

func (s *Service) LeaveRoom(userID string) error {
	return s.store.LeaveRoom(userID)
}

func (s *Service) CloseRoom(ownerUserID, code string) error {
	return s.store.CloseRoom(ownerUserID, code)
}

func (s *Service) SetRoomPhase(code, phase string) error {
	return s.store.SetRoomPhase(code, phase)
}

func (s *Service) GetRoom(code string) (*store.Room, error) {
	return s.store.GetRoom(code)
}

func (s *Service) ListMembers(code string) ([]store.Member, error) {
	return s.store.ListMembers(code)
}

func (s *Service) ListPublicRooms(limit int) ([]store.Room, error) {
	return s.store.ListPublicRooms(limit)
}

func (s *Service) GetUser(userID string) (*store.User, error) {
	return s.store.GetUserByID(userID)
}

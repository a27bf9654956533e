package lobby

import (
	"testing"

	"gridmatch/internal/apperr"
	"gridmatch/internal/config"
	"gridmatch/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{
		DBType:           "sqlite",
		DatabaseURL:      ":memory:",
		DBMaxConnections: 1,
		DBMaxIdleConns:   1,
	}

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := st.GetOrCreateUser("owner", "Owner"); err != nil {
		t.Fatalf("failed to seed owner user: %v", err)
	}
	if _, err := st.GetOrCreateUser("joiner", "Joiner"); err != nil {
		t.Fatalf("failed to seed joiner user: %v", err)
	}

	return NewService(st)
}

func TestCreateRoomWithoutPasswordThenJoin(t *testing.T) {
	s := newTestService(t)

	room, err := s.CreateRoom("owner", 4, "Test Room", true, "")
	if err != nil {
		t.Fatalf("unexpected error creating room: %v", err)
	}
	if room.HasPassword {
		t.Fatalf("expected no password on the created room")
	}

	joined, err := s.JoinRoom("joiner", room.RoomCode, "")
	if err != nil {
		t.Fatalf("unexpected error joining room: %v", err)
	}

	members, err := s.ListMembers(joined.RoomCode)
	if err != nil {
		t.Fatalf("unexpected error listing members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestCreateRoomWithPasswordRejectsWrongPassword(t *testing.T) {
	s := newTestService(t)

	room, err := s.CreateRoom("owner", 4, "Locked Room", false, "secret123")
	if err != nil {
		t.Fatalf("unexpected error creating room: %v", err)
	}
	if !room.HasPassword {
		t.Fatalf("expected the room to require a password")
	}

	_, err = s.JoinRoom("joiner", room.RoomCode, "wrong-password")
	if apperr.CodeOf(err) != apperr.CodeWrongPassword {
		t.Fatalf("expected CodeWrongPassword, got %v", err)
	}

	joined, err := s.JoinRoom("joiner", room.RoomCode, "secret123")
	if err != nil {
		t.Fatalf("expected the correct password to succeed, got %v", err)
	}
	if joined.RoomCode != room.RoomCode {
		t.Fatalf("expected to join the same room")
	}
}

func TestStartRoomRequiresAllNonOwnerMembersReady(t *testing.T) {
	s := newTestService(t)

	room, err := s.CreateRoom("owner", 2, "", true, "")
	if err != nil {
		t.Fatalf("unexpected error creating room: %v", err)
	}
	if _, err := s.JoinRoom("joiner", room.RoomCode, ""); err != nil {
		t.Fatalf("unexpected error joining room: %v", err)
	}

	if err := s.StartRoom("owner", room.RoomCode); apperr.CodeOf(err) != apperr.CodeNotAllReady {
		t.Fatalf("expected CodeNotAllReady, got %v", err)
	}

	if err := s.SetReady("joiner", room.RoomCode, true); err != nil {
		t.Fatalf("unexpected error setting ready: %v", err)
	}

	if err := s.StartRoom("owner", room.RoomCode); err != nil {
		t.Fatalf("expected room to start once everyone is ready, got %v", err)
	}

	got, err := s.GetRoom(room.RoomCode)
	if err != nil {
		t.Fatalf("unexpected error fetching room: %v", err)
	}
	if got.Phase != "STARTED" {
		t.Fatalf("expected phase STARTED, got %s", got.Phase)
	}
}

func TestLeaveRoomByOwnerClosesIt(t *testing.T) {
	s := newTestService(t)

	room, err := s.CreateRoom("owner", 4, "", true, "")
	if err != nil {
		t.Fatalf("unexpected error creating room: %v", err)
	}

	if err := s.LeaveRoom("owner"); err != nil {
		t.Fatalf("unexpected error leaving room: %v", err)
	}

	if _, err := s.JoinRoom("joiner", room.RoomCode, ""); apperr.CodeOf(err) != apperr.CodeRoomClosed {
		t.Fatalf("expected CodeRoomClosed after the owner leaves, got %v", err)
	}
}

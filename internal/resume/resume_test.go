package resume

import (
	"testing"
	"time"
)

func TestTouchMultiplayerThenGetActiveSession(t *testing.T) {
	s := New(nil)
	s.TouchMultiplayer("u1", "ROOM1", "m1")

	rec, ok := s.GetActiveSession("u1")
	if !ok {
		t.Fatalf("expected an active session")
	}
	if rec.Mode != ModeMultiplayer || rec.RoomCode != "ROOM1" || rec.MatchID != "m1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestTouchSingleplayerRecordsMode(t *testing.T) {
	s := New(nil)
	s.TouchSingleplayer("u1")

	rec, ok := s.GetActiveSession("u1")
	if !ok {
		t.Fatalf("expected an active session")
	}
	if rec.Mode != ModeSingleplayer {
		t.Fatalf("expected SINGLEPLAYER mode, got %s", rec.Mode)
	}
}

func TestGetActiveSessionMissingUser(t *testing.T) {
	s := New(nil)
	if _, ok := s.GetActiveSession("ghost"); ok {
		t.Fatalf("expected no session for an unknown user")
	}
}

func TestGetActiveSessionExpiresLazily(t *testing.T) {
	s := New(nil)
	s.TouchMultiplayer("u1", "ROOM1", "m1")

	s.mu.Lock()
	s.records["u1"].ExpiresAt = time.Now().Add(-time.Second)
	s.mu.Unlock()

	if _, ok := s.GetActiveSession("u1"); ok {
		t.Fatalf("expected an expired session to be reported as inactive")
	}
	s.mu.Lock()
	_, stillPresent := s.records["u1"]
	s.mu.Unlock()
	if stillPresent {
		t.Fatalf("expected the expired record to be pruned from the map")
	}
}

func TestTerminateMarksRecordIntentional(t *testing.T) {
	s := New(nil)
	s.TouchMultiplayer("u1", "ROOM1", "m1")
	s.Terminate("u1")

	rec, ok := s.GetActiveSession("u1")
	if !ok {
		t.Fatalf("expected the record to still be present after Terminate")
	}
	if !rec.IntentionallyTerminated {
		t.Fatalf("expected IntentionallyTerminated to be true")
	}
}

func TestConsumeMultiplayerResumeSucceedsOnExactMatch(t *testing.T) {
	s := New(nil)
	s.TouchMultiplayer("u1", "ROOM1", "m1")

	if !s.ConsumeMultiplayerResume("u1", "ROOM1", "m1") {
		t.Fatalf("expected resume to be consumable on an exact match")
	}
	if _, ok := s.GetActiveSession("u1"); ok {
		t.Fatalf("expected the record to be cleared after being consumed")
	}
}

func TestConsumeMultiplayerResumeFailsOnRoomMismatch(t *testing.T) {
	s := New(nil)
	s.TouchMultiplayer("u1", "ROOM1", "m1")

	if s.ConsumeMultiplayerResume("u1", "ROOM2", "m1") {
		t.Fatalf("expected resume to fail on a room code mismatch")
	}
}

func TestConsumeMultiplayerResumeFailsWhenTerminated(t *testing.T) {
	s := New(nil)
	s.TouchMultiplayer("u1", "ROOM1", "m1")
	s.Terminate("u1")

	if s.ConsumeMultiplayerResume("u1", "ROOM1", "m1") {
		t.Fatalf("expected resume to fail once the session was intentionally terminated")
	}
}

func TestConsumeMultiplayerResumeFailsForSingleplayerMode(t *testing.T) {
	s := New(nil)
	s.TouchSingleplayer("u1")

	if s.ConsumeMultiplayerResume("u1", "ROOM1", "m1") {
		t.Fatalf("expected resume to fail for a SINGLEPLAYER record")
	}
}

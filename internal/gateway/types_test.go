package gateway

import "testing"

func TestStableSlotAssignsSequentiallyAndIsStable(t *testing.T) {
	r := newRoom("ROOM1", "owner")

	first := r.stableSlot("u1")
	second := r.stableSlot("u2")
	again := r.stableSlot("u1")

	if first != 0 || second != 1 {
		t.Fatalf("expected slots 0 and 1, got %d and %d", first, second)
	}
	if again != first {
		t.Fatalf("expected stableSlot to be idempotent for the same user, got %d then %d", first, again)
	}
}

func TestGetStableMatchPlayersOrdersBySlot(t *testing.T) {
	r := newRoom("ROOM1", "owner")
	r.stableSlot("u2")
	r.stableSlot("u1")

	r.mu.Lock()
	r.players["u1"] = "conn1"
	r.players["u2"] = "conn2"
	r.mu.Unlock()

	players := r.getStableMatchPlayers()
	if len(players) != 2 || players[0] != "u2" || players[1] != "u1" {
		t.Fatalf("expected players ordered by slot assignment [u2, u1], got %v", players)
	}
}

func TestGetStableMatchPlayersBreaksTiesByUserID(t *testing.T) {
	r := newRoom("ROOM1", "owner")

	r.mu.Lock()
	r.players["b"] = "conn-b"
	r.players["a"] = "conn-a"
	r.mu.Unlock()

	players := r.getStableMatchPlayers()
	if len(players) != 2 || players[0] != "a" || players[1] != "b" {
		t.Fatalf("expected tie-broken alphabetical order [a, b], got %v", players)
	}
}

package matchmgr

import "testing"

func TestAssignSpawnsUsesDistinctCorners(t *testing.T) {
	mgr := NewManager(0, 0, nil)
	players := []PlayerInfo{
		{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}, {UserID: "u4"},
	}

	spawns := mgr.assignSpawns(players)
	if len(spawns) != 4 {
		t.Fatalf("expected 4 spawns, got %d", len(spawns))
	}

	seen := make(map[[2]int]bool)
	for _, s := range spawns {
		pos := [2]int{s.X, s.Y}
		if seen[pos] {
			t.Fatalf("expected distinct spawn corners, got duplicate %v", pos)
		}
		seen[pos] = true
	}
}

func TestAssignSpawnsCyclesBeyondFourPlayers(t *testing.T) {
	mgr := NewManager(0, 0, nil)
	players := []PlayerInfo{
		{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}, {UserID: "u4"}, {UserID: "u5"},
	}

	spawns := mgr.assignSpawns(players)
	if spawns[0].X != spawns[4].X || spawns[0].Y != spawns[4].Y {
		t.Fatalf("expected the 5th player to reuse the 1st player's corner")
	}
}

func TestShardForIsDeterministic(t *testing.T) {
	mgr := NewManager(0, 0, nil)

	a := mgr.ShardFor("ROOM1")
	b := mgr.ShardFor("ROOM1")
	if a != b {
		t.Fatalf("expected ShardFor to be stable across calls, got %q then %q", a, b)
	}
}

func TestCreateMatchThenEndMatchClearsIndices(t *testing.T) {
	mgr := NewManager(0, 0, nil)
	players := []PlayerInfo{{UserID: "u1"}, {UserID: "u2"}}

	m, err := mgr.CreateMatch("ROOM1", players)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mgr.EndMatch(m.ID)

	if got, ok := mgr.MatchForRoom("ROOM1"); !ok || got != m {
		t.Fatalf("expected MatchForRoom to return the created match")
	}
	if mgr.Count() != 1 {
		t.Fatalf("expected 1 live match, got %d", mgr.Count())
	}

	mgr.EndMatch(m.ID)

	if _, ok := mgr.Get(m.ID); ok {
		t.Fatalf("expected match to be removed from the id index after EndMatch")
	}
	if _, ok := mgr.MatchForRoom("ROOM1"); ok {
		t.Fatalf("expected match to be removed from the room index after EndMatch")
	}
	if mgr.Count() != 0 {
		t.Fatalf("expected 0 live matches after EndMatch, got %d", mgr.Count())
	}
}

func TestCreateMatchReplacesExistingRoomMatch(t *testing.T) {
	mgr := NewManager(0, 0, nil)
	players := []PlayerInfo{{UserID: "u1"}}

	first, err := mgr.CreateMatch("ROOM1", players)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := mgr.CreateMatch("ROOM1", players)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mgr.EndMatch(second.ID)

	if _, ok := mgr.Get(first.ID); ok {
		t.Fatalf("expected the first match to be ended when a second match starts for the same room")
	}
	if got, ok := mgr.MatchForRoom("ROOM1"); !ok || got.ID != second.ID {
		t.Fatalf("expected MatchForRoom to point at the replacement match")
	}
}

func TestStopAllClearsEveryMatch(t *testing.T) {
	mgr := NewManager(0, 0, nil)
	if _, err := mgr.CreateMatch("ROOM1", []PlayerInfo{{UserID: "u1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mgr.CreateMatch("ROOM2", []PlayerInfo{{UserID: "u2"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mgr.StopAll()

	if mgr.Count() != 0 {
		t.Fatalf("expected StopAll to clear every match, got %d remaining", mgr.Count())
	}
}

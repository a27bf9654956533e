package match

import "testing"

func newTestMatch(t *testing.T, spawns []Spawn) *Match {
	t.Helper()
	var events []Event
	m := New("m1", "ROOM1", 27, 14, spawns, 0, func(ev Event) {
		events = append(events, ev)
	})
	return m
}

func TestSnapshotWorldLockedCopiesTiles(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})

	w := m.snapshotWorldLocked()
	if w.GridW != m.world.GridW || w.GridH != m.world.GridH || w.WorldHash != m.world.WorldHash {
		t.Fatalf("expected snapshot to mirror the live world's dimensions and hash")
	}
	if len(w.Tiles) != len(m.world.Tiles) {
		t.Fatalf("expected snapshot tiles to match length %d, got %d", len(m.world.Tiles), len(w.Tiles))
	}

	w.Tiles[0] = 0xFF
	if m.world.Tiles[0] == 0xFF {
		t.Fatalf("expected snapshot tiles to be a copy, not an alias of the live grid")
	}
}

func TestPlayerPositionLockedReportsAuthoritativeCell(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 3, Y: 2}})

	x, y, ok := m.playerPositionLocked("u1")
	if !ok || x != 3 || y != 2 {
		t.Fatalf("expected (3,2,true), got (%d,%d,%v)", x, y, ok)
	}

	if _, _, ok := m.playerPositionLocked("ghost"); ok {
		t.Fatalf("expected unknown player to report ok=false")
	}
}

func TestTryPlaceBombRejectsWrongCell(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})

	_, reason := m.tryPlaceBombLocked("u1", 5, 5)
	if reason != RejectWrongCell {
		t.Fatalf("expected RejectWrongCell, got %q", reason)
	}
}

func TestTryPlaceBombRejectsUnknownPlayer(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})

	_, reason := m.tryPlaceBombLocked("ghost", 1, 1)
	if reason != RejectPlayerMissing {
		t.Fatalf("expected RejectPlayerMissing, got %q", reason)
	}
}

func TestTryPlaceBombSucceedsThenEnforcesBudget(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})

	id, reason := m.tryPlaceBombLocked("u1", 1, 1)
	if reason != "" {
		t.Fatalf("expected success, got reject reason %q", reason)
	}
	if id == "" {
		t.Fatalf("expected a non-empty bomb id")
	}
	if _, ok := m.bombs[id]; !ok {
		t.Fatalf("expected bomb %s to be tracked", id)
	}

	_, reason = m.tryPlaceBombLocked("u1", 1, 1)
	if reason != RejectTooManyBombs {
		t.Fatalf("expected RejectTooManyBombs once at budget, got %q", reason)
	}
}

func TestTryPlaceBombRejectsEliminatedPlayer(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	m.players["u1"].Eliminated = true

	_, reason := m.tryPlaceBombLocked("u1", 1, 1)
	if reason != RejectPlayerEliminated {
		t.Fatalf("expected RejectPlayerEliminated, got %q", reason)
	}
}

func TestApplyDamageElimitatesAtZeroLives(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}, {UserID: "u2", X: 2, Y: 2}})
	p := m.players["u1"]
	p.Lives = 1

	m.applyDamage(p)

	if !p.Eliminated {
		t.Fatalf("expected player to be eliminated at 0 lives")
	}
	if p.Status != StatusEliminated {
		t.Fatalf("expected status eliminated, got %s", p.Status)
	}
}

func TestApplyDamageRespawnsWithLivesRemaining(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}, {UserID: "u2", X: 2, Y: 2}})
	p := m.players["u1"]
	p.Lives = 2
	m.tick = 10

	m.applyDamage(p)

	if p.Eliminated {
		t.Fatalf("expected player to survive with lives remaining")
	}
	if p.Status != StatusDeadRespawning {
		t.Fatalf("expected status dead_respawning, got %s", p.Status)
	}
	if p.RespawnAtTick != m.tick+respawnDelayTicks {
		t.Fatalf("expected RespawnAtTick %d, got %d", m.tick+respawnDelayTicks, p.RespawnAtTick)
	}
}

func TestCheckEndDeclaresSoleSurvivorWinner(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}, {UserID: "u2", X: 2, Y: 2}})
	m.players["u2"].Eliminated = true

	if !m.checkEnd() {
		t.Fatalf("expected checkEnd to report match over with one survivor left")
	}
	if !m.Ended() {
		t.Fatalf("expected match to be marked ended")
	}
}

func TestCheckEndContinuesWithMultipleSurvivors(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}, {UserID: "u2", X: 2, Y: 2}})

	if m.checkEnd() {
		t.Fatalf("expected checkEnd to report match ongoing with two survivors")
	}
}

func TestIsPlayerRejoinableWithinGraceWindow(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	m.markPlayerDisconnectedLocked("u1")

	if !m.IsPlayerRejoinable("u1") {
		t.Fatalf("expected player to be rejoinable immediately after disconnect")
	}
}

func TestIsPlayerRejoinableUnknownUser(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	if m.IsPlayerRejoinable("ghost") {
		t.Fatalf("expected an unknown user to be reported as not rejoinable")
	}
}

func TestMarkReconnectedClearsDisconnectedFlag(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	m.markPlayerDisconnectedLocked("u1")
	m.markPlayerReconnectedLocked("u1")

	if m.players["u1"].Disconnected {
		t.Fatalf("expected Disconnected to be cleared after reconnect")
	}
}

func TestDrainInputsIgnoresStaleSequence(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	p := m.players["u1"]
	p.LastInputSeq = 5

	down := DirDown
	m.inputQueue = []inputItem{{userID: "u1", seq: 3, dir: &down}}
	m.drainInputs()

	if p.IntentDir != nil {
		t.Fatalf("expected stale-sequence input to be dropped")
	}
	if p.LastInputSeq != 5 {
		t.Fatalf("expected LastInputSeq to remain 5, got %d", p.LastInputSeq)
	}
}

func TestDrainInputsAppliesNewerSequence(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	p := m.players["u1"]
	p.LastInputSeq = 5

	right := DirRight
	m.inputQueue = []inputItem{{userID: "u1", seq: 6, dir: &right}}
	m.drainInputs()

	if p.IntentDir == nil || *p.IntentDir != DirRight {
		t.Fatalf("expected IntentDir to be set to right")
	}
	if p.LastInputSeq != 6 {
		t.Fatalf("expected LastInputSeq to advance to 6, got %d", p.LastInputSeq)
	}
}

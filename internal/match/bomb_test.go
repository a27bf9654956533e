package match

import "testing"

func TestComputeBlastCellsStopsAtWall(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	b := &Bomb{X: 1, Y: 1, Range: 10}

	cells := m.computeBlastCells(b)

	for _, c := range cells {
		if !m.world.inBounds(c[0], c[1]) {
			t.Fatalf("blast cell (%d,%d) out of bounds", c[0], c[1])
		}
		if m.world.tileAt(c[0], c[1]) == tileWall {
			t.Fatalf("blast cell (%d,%d) should never include a hard wall", c[0], c[1])
		}
	}
}

func TestComputeBlastCellsIncludesAndStopsAtBrick(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})

	// Force a deterministic layout: bomb at (3,3), a brick immediately east,
	// open cells beyond it that must NOT appear in the blast.
	for i := range m.world.Tiles {
		m.world.Tiles[i] = tileEmpty
	}
	m.world.Tiles[3*m.world.GridW+4] = tileBrick // (4,3)

	b := &Bomb{X: 3, Y: 3, Range: 3}
	cells := m.computeBlastCells(b)

	if !cellInSet(cells, 4, 3) {
		t.Fatalf("expected blast to include the brick cell itself")
	}
	if cellInSet(cells, 5, 3) {
		t.Fatalf("expected blast to stop at the brick and not include cells beyond it")
	}
}

func TestExplodeBombDestroysBricksAndBumpsRevision(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	for i := range m.world.Tiles {
		m.world.Tiles[i] = tileEmpty
	}
	m.world.Tiles[3*m.world.GridW+4] = tileBrick

	before := m.tilesRevision
	b := &Bomb{ID: "bomb1", X: 3, Y: 3, Range: 3}
	m.explodeBomb(b, map[string]bool{})

	if m.world.tileAt(4, 3) != tileEmpty {
		t.Fatalf("expected brick to be destroyed by the blast")
	}
	if m.tilesRevision == before {
		t.Fatalf("expected tilesRevision to change after a brick was destroyed")
	}
}

func TestExplodeBombDamagesPlayerInBlast(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 3, Y: 3}})
	b := &Bomb{ID: "bomb1", X: 3, Y: 3, Range: 2}

	startLives := m.players["u1"].Lives
	m.explodeBomb(b, map[string]bool{})

	if m.players["u1"].Lives != startLives-1 {
		t.Fatalf("expected player caught in blast origin to lose a life")
	}
}

func TestExplodeBombRespectsInvulnerability(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 3, Y: 3}})
	m.tick = 5
	m.players["u1"].InvulnUntilTick = 100
	b := &Bomb{ID: "bomb1", X: 3, Y: 3, Range: 2}

	startLives := m.players["u1"].Lives
	m.explodeBomb(b, map[string]bool{})

	if m.players["u1"].Lives != startLives {
		t.Fatalf("expected invulnerable player to take no damage")
	}
}

func TestResolveBombExplosionsOrdersByTickThenID(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	var order []string
	m.onEvent = func(ev Event) {
		if ev.Type == "match:bomb_exploded" {
			order = append(order, ev.Data["id"].(string))
		}
	}
	m.tick = 10
	m.bombs["bombB"] = &Bomb{ID: "bombB", X: 5, Y: 5, ExplodeAtTick: 10, Range: 1}
	m.bombs["bombA"] = &Bomb{ID: "bombA", X: 5, Y: 5, ExplodeAtTick: 10, Range: 1}
	m.bombs["bombC"] = &Bomb{ID: "bombC", X: 5, Y: 5, ExplodeAtTick: 9, Range: 1}

	m.resolveBombExplosions()

	if len(m.bombs) != 0 {
		t.Fatalf("expected all due bombs to be resolved, %d remain", len(m.bombs))
	}
	if len(order) != 3 || order[0] != "bombC" || order[1] != "bombA" || order[2] != "bombB" {
		t.Fatalf("expected explosion order [bombC bombA bombB] (tick, then ID), got %v", order)
	}
}

func TestNextDueBombIgnoresFutureFuses(t *testing.T) {
	m := newTestMatch(t, []Spawn{{UserID: "u1", X: 1, Y: 1}})
	m.tick = 5
	m.bombs["future"] = &Bomb{ID: "future", ExplodeAtTick: 100}

	if due := m.nextDueBomb(); due != nil {
		t.Fatalf("expected no due bombs, got %v", due)
	}
}

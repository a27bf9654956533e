package match

import "strconv"

var directions = [4]Direction{DirUp, DirDown, DirLeft, DirRight}

var opposite = map[Direction]Direction{
	DirUp: DirDown, DirDown: DirUp, DirLeft: DirRight, DirRight: DirLeft,
}

// fnv1aHash32 hashes s with FNV-1a-32 (the same constants worldHash applies
// to tile bytes in world.go) to seed enemy-move choice deterministically
// from matchId|tick|enemyId (spec.md §4.1, §4.1's Determinism paragraph).
func fnv1aHash32(s string) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// advanceEnemyInterpolation completes in-flight enemy moves once their
// animation duration elapses, independent of the AI decision interval.
func (m *Match) advanceEnemyInterpolation() {
	for _, e := range m.enemies {
		if e.IsMoving && m.tick-e.MoveStartTick >= moveDurationTicks {
			e.IsMoving = false
		}
	}
}

// stepEnemyAI implements spec.md §4.1 step 5: every enemyMoveInterval
// ticks, each alive, non-moving enemy prefers continuing lastDir, else
// picks uniformly (via a hash-seeded index) among valid candidate cells,
// disfavouring the backtrack direction unless it is the only option.
func (m *Match) stepEnemyAI() {
	m.advanceEnemyInterpolation()

	if m.enemyMoveInterval == 0 || m.tick%m.enemyMoveInterval != 0 {
		return
	}

	for _, e := range m.enemies {
		if !e.Alive || e.IsMoving {
			continue
		}
		m.stepOneEnemy(e)
	}
}

func (m *Match) stepOneEnemy(e *EnemyState) {
	candidates := make([]Direction, 0, 4)
	for _, d := range directions {
		tx, ty := step(e.X, e.Y, d)
		if m.world.isEmpty(tx, ty) && !m.enemyOccupies(tx, ty, e.ID) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return
	}

	var lastDir *Direction
	if e.LastDir != nil {
		d := directions[*e.LastDir]
		lastDir = &d
	}

	if lastDir != nil {
		for _, d := range candidates {
			if d == *lastDir {
				m.commitEnemyMove(e, d)
				return
			}
		}
	}

	filtered := candidates
	if lastDir != nil {
		back := opposite[*lastDir]
		nonBacktrack := make([]Direction, 0, len(candidates))
		for _, d := range candidates {
			if d != back {
				nonBacktrack = append(nonBacktrack, d)
			}
		}
		if len(nonBacktrack) > 0 {
			filtered = nonBacktrack
		}
	}

	seed := m.ID + "|" + strconv.FormatUint(uint64(m.tick), 10) + "|" + e.ID
	idx := int(fnv1aHash32(seed) % uint32(len(filtered)))
	m.commitEnemyMove(e, filtered[idx])
}

func (m *Match) commitEnemyMove(e *EnemyState, dir Direction) {
	tx, ty := step(e.X, e.Y, dir)

	e.MoveFromX, e.MoveFromY = e.X, e.Y
	e.MoveToX, e.MoveToY = tx, ty
	e.MoveStartTick = m.tick
	e.MoveDurationTicks = moveDurationTicks
	e.MoveStartServerTimeMs = nowMs()
	e.IsMoving = true

	// Commit the grid move immediately; clients interpolate (spec.md §4.1).
	e.X, e.Y = tx, ty

	for i, d := range directions {
		if d == dir {
			idx := i
			e.LastDir = &idx
			break
		}
	}
}

func (m *Match) enemyOccupies(x, y int, exceptID string) bool {
	for _, e := range m.enemies {
		if e.ID == exceptID || !e.Alive {
			continue
		}
		if e.X == x && e.Y == y {
			return true
		}
	}
	return false
}

package match

import "time"

// step runs one 50ms tick in the exact 9-step order of spec.md §4.1. Only
// called from Run's select loop, so no locking is needed within it.
func (m *Match) step() {
	m.tick++

	m.pruneStaleDisconnects()
	m.advanceRespawns()
	m.drainInputs()
	m.advanceMovement()
	m.stepEnemyAI()
	m.resolveEnemyContact()
	m.resolveBombExplosions()

	if m.checkEnd() {
		return
	}

	m.emitSnapshot()
}

// 1. Prune players whose disconnection exceeds the rejoin grace window.
func (m *Match) pruneStaleDisconnects() {
	now := time.Now()
	for _, p := range m.players {
		if !p.Disconnected || p.Eliminated {
			continue
		}
		if now.Sub(p.disconnectedAt) > rejoinGraceDuration {
			p.Eliminated = true
			p.Status = StatusEliminated
			p.Lives = 0
			p.IsMoving = false
			p.IntentDir = nil
		}
	}
}

// 2. Advance due respawns.
func (m *Match) advanceRespawns() {
	for _, p := range m.players {
		if p.Status != StatusDeadRespawning {
			continue
		}
		if p.RespawnAtTick > m.tick {
			continue
		}
		p.Status = StatusAlive
		p.X, p.Y = p.SpawnX, p.SpawnY
		p.IsMoving = false
		p.InvulnUntilTick = m.tick + invulnTicks
		p.LastEnemyHitTick = 0
		m.emit("match:player_respawned", map[string]interface{}{
			"userId": p.UserID, "x": p.X, "y": p.Y,
		})
	}
}

// 3. Drain the FIFO input queue.
func (m *Match) drainInputs() {
	queue := m.inputQueue
	m.inputQueue = nil

	for _, in := range queue {
		p, ok := m.players[in.userID]
		if !ok || p.Eliminated || p.Status != StatusAlive {
			continue
		}
		if in.seq != 0 && in.seq <= p.LastInputSeq {
			continue
		}
		p.IntentDir = in.dir
		if in.seq != 0 {
			p.LastInputSeq = in.seq
		}
	}
}

// 4. Advance player interpolation / commit one-cell moves.
func (m *Match) advanceMovement() {
	for _, p := range m.players {
		if p.Status != StatusAlive {
			continue
		}

		if p.IsMoving {
			if m.tick-p.MoveStartTick >= moveDurationTicks {
				p.X, p.Y = p.MoveToX, p.MoveToY
				p.IsMoving = false
				p.IntentDir = nil
			}
			continue
		}

		if p.IntentDir == nil {
			continue
		}

		tx, ty := step(p.X, p.Y, *p.IntentDir)
		if !m.world.isEmpty(tx, ty) {
			p.IntentDir = nil
			continue
		}

		p.MoveFromX, p.MoveFromY = p.X, p.Y
		p.MoveToX, p.MoveToY = tx, ty
		p.MoveStartTick = m.tick
		p.MoveDurationTicks = moveDurationTicks
		p.MoveStartServerTimeMs = time.Now().UnixMilli()
		p.IsMoving = true
		// Authoritative position jumps at move start; interpolation fields
		// are presentational only (spec.md §4.1 step 4).
		p.X, p.Y = tx, ty
	}
}

func step(x, y int, dir Direction) (int, int) {
	switch dir {
	case DirUp:
		return x, y - 1
	case DirDown:
		return x, y + 1
	case DirLeft:
		return x - 1, y
	case DirRight:
		return x + 1, y
	default:
		return x, y
	}
}

// 6. Enemy contact damage.
func (m *Match) resolveEnemyContact() {
	for _, e := range m.enemies {
		if !e.Alive {
			continue
		}
		for _, p := range m.players {
			if p.Status != StatusAlive || p.X != e.X || p.Y != e.Y {
				continue
			}
			if p.InvulnUntilTick > m.tick {
				continue
			}
			if m.tick-p.LastEnemyHitTick < enemyHitCooldown {
				continue
			}
			m.applyDamage(p)
			p.LastEnemyHitTick = m.tick
		}
	}
}

// applyDamage implements spec.md §4.1's damage-application rule.
func (m *Match) applyDamage(p *PlayerState) {
	p.Lives--
	m.emit("match:player_damaged", map[string]interface{}{
		"userId": p.UserID, "lives": p.Lives,
	})

	if p.Lives <= 0 {
		p.Status = StatusEliminated
		p.Eliminated = true
		p.IsMoving = false
		p.IntentDir = nil
		m.emit("match:player_eliminated", map[string]interface{}{
			"userId": p.UserID,
		})
		return
	}

	p.Status = StatusDeadRespawning
	p.RespawnAtTick = m.tick + respawnDelayTicks
	p.IsMoving = false
	p.IntentDir = nil
}

// 8. Check for match end.
func (m *Match) checkEnd() bool {
	var alive []string
	for userID, p := range m.players {
		if !p.Eliminated {
			alive = append(alive, userID)
		}
	}
	if len(alive) > 1 {
		return false
	}

	m.ended.Store(true)
	var winner interface{}
	reason := "elimination"
	if len(alive) == 1 {
		winner = alive[0]
	} else {
		winner = nil
		reason = "draw"
	}
	m.emit("match:end", map[string]interface{}{
		"winnerUserId": winner, "reason": reason,
	})
	m.Stop()
	return true
}

// 9. Emit the periodic snapshot (spec.md §4.1, §6.1's MatchSnapshot shape).
func (m *Match) emitSnapshot() {
	players := make([]map[string]interface{}, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, map[string]interface{}{
			"userId": p.UserID, "displayName": p.DisplayName, "colorId": p.ColorID, "skinId": p.SkinID,
			"lastInputSeq": p.LastInputSeq, "x": p.X, "y": p.Y, "isMoving": p.IsMoving,
			"moveFromX": p.MoveFromX, "moveFromY": p.MoveFromY, "moveToX": p.MoveToX, "moveToY": p.MoveToY,
			"moveStartTick": p.MoveStartTick, "moveDurationTicks": p.MoveDurationTicks,
			"moveStartServerTimeMs": p.MoveStartServerTimeMs, "lives": p.Lives, "score": p.Score,
			"eliminated": p.Eliminated, "disconnected": p.Disconnected,
		})
	}

	enemies := make([]map[string]interface{}, 0, len(m.enemies))
	for _, e := range m.enemies {
		enemies = append(enemies, map[string]interface{}{
			"id": e.ID, "x": e.X, "y": e.Y, "alive": e.Alive, "isMoving": e.IsMoving,
			"moveFromX": e.MoveFromX, "moveFromY": e.MoveFromY, "moveToX": e.MoveToX, "moveToY": e.MoveToY,
			"moveStartTick": e.MoveStartTick, "moveDurationTicks": e.MoveDurationTicks,
			"moveStartServerTimeMs": e.MoveStartServerTimeMs,
		})
	}

	bombs := make([]map[string]interface{}, 0, len(m.bombs))
	for _, b := range m.bombs {
		bombs = append(bombs, map[string]interface{}{
			"id": b.ID, "x": b.X, "y": b.Y, "ownerId": b.OwnerUserID,
			"tickPlaced": b.TickPlaced, "explodeAtTick": b.ExplodeAtTick,
		})
	}

	score := 0
	for _, p := range m.players {
		if p.Score > 0 {
			score += p.Score
		}
	}

	m.emit("match:snapshot", map[string]interface{}{
		"version": "match_v1", "roomCode": m.RoomCode, "matchId": m.ID, "tick": m.tick,
		"serverTimeMs": time.Now().UnixMilli(),
		"world": map[string]interface{}{
			"gridW": m.world.GridW, "gridH": m.world.GridH, "worldHash": m.world.WorldHash,
			"tilesRevision": m.tilesRevision, "bombs": bombs,
		},
		"score": score, "players": players, "enemies": enemies,
	})
}

// markPlayerDisconnectedLocked implements spec.md §4.1's disconnect handling.
func (m *Match) markPlayerDisconnectedLocked(userID string) {
	p, ok := m.players[userID]
	if !ok {
		return
	}
	p.Disconnected = true
	p.disconnectedAt = time.Now()

	filtered := m.inputQueue[:0]
	for _, in := range m.inputQueue {
		if in.userID != userID {
			filtered = append(filtered, in)
		}
	}
	m.inputQueue = filtered
}

// markPlayerReconnectedLocked clears disconnected state without touching
// lives or position (spec.md §4.1).
func (m *Match) markPlayerReconnectedLocked(userID string) {
	p, ok := m.players[userID]
	if !ok {
		return
	}
	p.Disconnected = false
	p.disconnectedAt = time.Time{}
}

// IsPlayerRejoinable reports whether userID is a player of this match who is
// either not marked disconnected or disconnected within the grace window
// (spec.md §4.1). Unknown users report false.
func (m *Match) IsPlayerRejoinable(userID string) bool {
	p, ok := m.players[userID]
	if !ok {
		return false
	}
	if !p.Disconnected {
		return true
	}
	return time.Since(p.disconnectedAt) <= rejoinGraceDuration
}

// Ended reports whether this match's tick loop has already finished.
func (m *Match) Ended() bool { return m.ended.Load() }

// IsPlayerEliminated reports whether userID is out of lives in this match.
func (m *Match) IsPlayerEliminated(userID string) bool {
	p, ok := m.players[userID]
	if !ok {
		return true
	}
	return p.Eliminated
}

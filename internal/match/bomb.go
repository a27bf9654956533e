package match

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// tryPlaceBombLocked implements tryPlaceBomb (spec.md §4.1): validates the
// caller's authoritative cell and bomb budget, and on success inserts a
// Bomb whose fuse expires bombFuseTicks from now.
func (m *Match) tryPlaceBombLocked(userID string, x, y int) (string, RejectReason) {
	p, ok := m.players[userID]
	if !ok {
		return "", RejectPlayerMissing
	}
	if p.Eliminated {
		return "", RejectPlayerEliminated
	}
	if p.Status != StatusAlive {
		return "", RejectPlayerNotAlive
	}
	if p.X != x || p.Y != y {
		return "", RejectWrongCell
	}
	if !m.world.isEmpty(x, y) {
		return "", RejectCellNotTraversable
	}

	live := 0
	occupied := false
	for _, b := range m.bombs {
		if b.OwnerUserID == userID {
			live++
		}
		if b.X == x && b.Y == y {
			occupied = true
		}
	}
	if live >= m.maxBombsPerPlayer {
		return "", RejectTooManyBombs
	}
	if occupied {
		return "", RejectCellOccupiedByBomb
	}

	m.nextBombID++
	id := "bomb" + strconv.Itoa(m.nextBombID)
	bomb := &Bomb{
		ID:            id,
		OwnerUserID:   userID,
		X:             x,
		Y:             y,
		TickPlaced:    m.tick,
		ExplodeAtTick: m.tick + m.bombFuseTicks,
		Range:         m.bombRange,
	}
	m.bombs[id] = bomb

	m.emit("match:bomb_spawned", map[string]interface{}{
		"id": id, "ownerId": userID, "x": x, "y": y, "explodeAtTick": bomb.ExplodeAtTick,
	})

	return id, ""
}

// resolveBombExplosions implements spec.md §4.1 step 7: repeatedly pop the
// due bomb with the smallest (explodeAtTick, id), resolve its blast, and
// apply at most one bomb's damage per player per tick.
func (m *Match) resolveBombExplosions() {
	damagedThisTick := make(map[string]bool)

	for {
		due := m.nextDueBomb()
		if due == nil {
			return
		}
		delete(m.bombs, due.ID)
		m.explodeBomb(due, damagedThisTick)
	}
}

func (m *Match) nextDueBomb() *Bomb {
	var due []*Bomb
	for _, b := range m.bombs {
		if b.ExplodeAtTick <= m.tick {
			due = append(due, b)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ExplodeAtTick != due[j].ExplodeAtTick {
			return due[i].ExplodeAtTick < due[j].ExplodeAtTick
		}
		return due[i].ID < due[j].ID
	})
	return due[0]
}

func (m *Match) explodeBomb(b *Bomb, damagedThisTick map[string]bool) {
	blastCells := m.computeBlastCells(b)
	destroyed := make([]map[string]int, 0)

	for _, cell := range blastCells {
		if m.world.tileAt(cell[0], cell[1]) == tileBrick {
			m.world.Tiles[cell[1]*m.world.GridW+cell[0]] = tileEmpty
			destroyed = append(destroyed, map[string]int{"x": cell[0], "y": cell[1]})
		}
	}

	for _, p := range m.players {
		if p.Status != StatusAlive || damagedThisTick[p.UserID] {
			continue
		}
		if p.InvulnUntilTick > m.tick {
			continue
		}
		if cellInSet(blastCells, p.X, p.Y) {
			m.applyDamage(p)
			damagedThisTick[p.UserID] = true
		}
	}

	for _, e := range m.enemies {
		if e.Alive && cellInSet(blastCells, e.X, e.Y) {
			e.Alive = false
		}
	}

	m.emit("match:bomb_exploded", map[string]interface{}{
		"id": b.ID, "x": b.X, "y": b.Y, "cells": blastCells,
	})
	if len(destroyed) > 0 {
		m.tilesRevision = xxhash.Sum64(m.world.Tiles)
		m.emit("match:tiles_destroyed", map[string]interface{}{"tiles": destroyed})
	}
}

// computeBlastCells implements spec.md §4.1 step 7's geometry: origin plus
// up to range cells in each axis-aligned direction, stopping before a hard
// wall (excluded) and at a brick (included).
func (m *Match) computeBlastCells(b *Bomb) [][2]int {
	cells := [][2]int{{b.X, b.Y}}

	for _, d := range directions {
		dx, dy := dirDelta(d)
		x, y := b.X, b.Y
		for i := 0; i < b.Range; i++ {
			x, y = x+dx, y+dy
			if !m.world.inBounds(x, y) {
				break
			}
			tile := m.world.tileAt(x, y)
			if tile == tileWall {
				break
			}
			cells = append(cells, [2]int{x, y})
			if tile == tileBrick {
				break
			}
		}
	}

	return cells
}

func dirDelta(d Direction) (int, int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

func cellInSet(cells [][2]int, x, y int) bool {
	for _, c := range cells {
		if c[0] == x && c[1] == y {
			return true
		}
	}
	return false
}

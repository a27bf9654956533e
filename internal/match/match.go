package match

import (
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Match is a single running match's actor: one goroutine owns all mutable
// state and drains requests from buffered channels, so no caller ever
// blocks the tick (spec.md §5's suspension-points rule). Generalizes
// vector-racer-v2's Room.gameLoop ticker/stop-channel shape and
// ceyewan-Bombman's channel-driven join/input/leave serialization.
type Match struct {
	ID       string
	RoomCode string

	tick  uint32
	world World

	players map[string]*PlayerState
	bombs   map[string]*Bomb
	enemies map[string]*EnemyState

	inputQueue []inputItem
	eventSeq   uint64
	ended      atomic.Bool

	maxBombsPerPlayer int
	bombFuseTicks     uint32
	bombRange         int
	enemyMoveInterval uint32

	nextBombID int

	// tilesRevision is an xxhash digest of the tile grid, bumped whenever
	// bricks are destroyed. Cheaper than re-hashing with FNV on every tick
	// just to tell clients "the grid changed since your last snapshot";
	// worldHash (FNV-1a-32) remains the spec-mandated identity hash.
	tilesRevision uint64

	onEvent func(Event)

	inputCh    chan inputItem
	bombCh     chan bombRequest
	worldCh    chan worldRequest
	posCh      chan positionRequest
	disconnCh  chan string
	reconnCh   chan string
	stopCh     chan struct{}
	stoppedCh  chan struct{}
}

type bombRequest struct {
	userID string
	x, y   int
	respCh chan bombResult
}

type bombResult struct {
	bombID string
	reject RejectReason
}

// worldRequest asks the tick actor for a read-only snapshot of the tile
// grid, used for match:world_init (spec.md §6.1).
type worldRequest struct {
	respCh chan World
}

// positionRequest asks the tick actor for a player's authoritative (x,y),
// so callers never have to trust client-supplied coordinates (spec.md
// §4.4).
type positionRequest struct {
	userID string
	respCh chan positionResult
}

type positionResult struct {
	x, y int
	ok   bool
}

// Spawn describes one player's starting position and identity for
// createMatch (spec component C5).
type Spawn struct {
	UserID      string
	DisplayName string
	ColorID     int
	SkinID      int
	X, Y        int
}

// New builds a Match with the given id/room, world dimensions, and initial
// player spawns, but does not start its tick loop (spec.md §4.2).
func New(id, roomCode string, gridW, gridH int, spawns []Spawn, enemyCount int, onEvent func(Event)) *Match {
	world := buildWorld(gridW, gridH)

	m := &Match{
		ID:                id,
		RoomCode:          roomCode,
		world:             world,
		players:           make(map[string]*PlayerState, len(spawns)),
		bombs:             make(map[string]*Bomb),
		enemies:           make(map[string]*EnemyState),
		maxBombsPerPlayer: defaultMaxBombs,
		bombFuseTicks:     defaultBombFuse,
		bombRange:         defaultBombRange,
		enemyMoveInterval: 10,
		onEvent:           onEvent,
		inputCh:           make(chan inputItem, 512),
		bombCh:            make(chan bombRequest, 64),
		worldCh:           make(chan worldRequest, 8),
		posCh:             make(chan positionRequest, 64),
		disconnCh:         make(chan string, 16),
		reconnCh:          make(chan string, 16),
		stopCh:            make(chan struct{}),
		stoppedCh:         make(chan struct{}),
	}

	for _, s := range spawns {
		m.players[s.UserID] = &PlayerState{
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			ColorID:     s.ColorID,
			SkinID:      s.SkinID,
			X:           s.X,
			Y:           s.Y,
			SpawnX:      s.X,
			SpawnY:      s.Y,
			Status:      StatusAlive,
			Lives:       defaultLives,
		}
	}

	for i := 0; i < enemyCount; i++ {
		x, y := enemySpawnCell(&world, i)
		m.enemies[enemyID(i)] = &EnemyState{ID: enemyID(i), X: x, Y: y, Alive: true}
	}

	m.tilesRevision = xxhash.Sum64(world.Tiles)

	return m
}

func enemyID(i int) string {
	return "enemy" + strconv.Itoa(i)
}

// enemySpawnCell picks a center-ish empty cell for enemy i, falling back to
// scanning the grid if the center is blocked.
func enemySpawnCell(w *World, i int) (int, int) {
	cx, cy := w.GridW/2, w.GridH/2
	candidates := [][2]int{{cx, cy}, {cx - 1, cy}, {cx + 1, cy}, {cx, cy - 1}, {cx, cy + 1}}
	if i < len(candidates) && w.isEmpty(candidates[i][0], candidates[i][1]) {
		return candidates[i][0], candidates[i][1]
	}
	for y := 1; y < w.GridH-1; y++ {
		for x := 1; x < w.GridW-1; x++ {
			if w.isEmpty(x, y) {
				return x, y
			}
		}
	}
	return 1, 1
}

// Run starts the tick loop. Blocks until Stop is called; callers should
// invoke it in its own goroutine.
func (m *Match) Run() {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	defer close(m.stoppedCh)

	for {
		select {
		case <-m.stopCh:
			return

		case in := <-m.inputCh:
			m.inputQueue = append(m.inputQueue, in)

		case req := <-m.bombCh:
			bombID, reject := m.tryPlaceBombLocked(req.userID, req.x, req.y)
			req.respCh <- bombResult{bombID: bombID, reject: reject}

		case req := <-m.worldCh:
			req.respCh <- m.snapshotWorldLocked()

		case req := <-m.posCh:
			x, y, ok := m.playerPositionLocked(req.userID)
			req.respCh <- positionResult{x: x, y: y, ok: ok}

		case userID := <-m.disconnCh:
			m.markPlayerDisconnectedLocked(userID)

		case userID := <-m.reconnCh:
			m.markPlayerReconnectedLocked(userID)

		case <-ticker.C:
			if m.ended.Load() {
				continue
			}
			m.step()
		}
	}
}

// Stop terminates the tick loop. Safe to call multiple times.
func (m *Match) Stop() {
	select {
	case <-m.stopCh:
		return
	default:
		close(m.stopCh)
	}
}

// EnqueueInput submits a move input for the tick loop to drain. Never
// blocks the caller beyond the channel buffer (spec.md §5).
func (m *Match) EnqueueInput(userID string, seq uint32, dir *Direction) {
	select {
	case m.inputCh <- inputItem{userID: userID, seq: seq, dir: dir}:
	default:
		log.Printf("match %s: input queue full, dropping input for %s", m.ID, userID)
	}
}

// TryPlaceBomb requests a bomb placement and blocks for the tick actor's
// synchronous reply (spec.md §4.1's "authoritative check" requirement).
func (m *Match) TryPlaceBomb(userID string, x, y int) (string, RejectReason) {
	resp := make(chan bombResult, 1)
	select {
	case m.bombCh <- bombRequest{userID: userID, x: x, y: y, respCh: resp}:
	case <-m.stopCh:
		return "", RejectPlayerMissing
	}
	select {
	case r := <-resp:
		return r.bombID, r.reject
	case <-m.stopCh:
		return "", RejectPlayerMissing
	}
}

// World returns a snapshot copy of the match's current tile grid, safe to
// read and marshal outside the tick actor (spec.md §6.1's match:world_init).
func (m *Match) World() World {
	resp := make(chan World, 1)
	select {
	case m.worldCh <- worldRequest{respCh: resp}:
	case <-m.stopCh:
		return World{}
	}
	select {
	case w := <-resp:
		return w
	case <-m.stopCh:
		return World{}
	}
}

func (m *Match) snapshotWorldLocked() World {
	tiles := make([]byte, len(m.world.Tiles))
	copy(tiles, m.world.Tiles)
	return World{GridW: m.world.GridW, GridH: m.world.GridH, Tiles: tiles, WorldHash: m.world.WorldHash}
}

// PlayerPosition returns userID's authoritative (x,y) as tracked by the tick
// actor, so callers never have to trust client-supplied coordinates
// (spec.md §4.4).
func (m *Match) PlayerPosition(userID string) (x, y int, ok bool) {
	resp := make(chan positionResult, 1)
	select {
	case m.posCh <- positionRequest{userID: userID, respCh: resp}:
	case <-m.stopCh:
		return 0, 0, false
	}
	select {
	case r := <-resp:
		return r.x, r.y, r.ok
	case <-m.stopCh:
		return 0, 0, false
	}
}

func (m *Match) playerPositionLocked(userID string) (int, int, bool) {
	p, ok := m.players[userID]
	if !ok {
		return 0, 0, false
	}
	return p.X, p.Y, true
}

// MarkDisconnected enqueues a disconnect for the next tick boundary.
func (m *Match) MarkDisconnected(userID string) {
	select {
	case m.disconnCh <- userID:
	default:
	}
}

// MarkReconnected enqueues a reconnect for the next tick boundary.
func (m *Match) MarkReconnected(userID string) {
	select {
	case m.reconnCh <- userID:
	default:
	}
}

func (m *Match) emit(eventType string, data map[string]interface{}) {
	if m.onEvent != nil {
		m.onEvent(newEvent(eventType, data))
	}
}

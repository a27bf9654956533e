// Package matchmgr implements the Match Manager (spec component C5):
// creates/destroys match instances, maps room<->match, and assigns each
// match to a worker shard via rendezvous hashing.
package matchmgr

import (
	"fmt"
	"log"
	"sync"

	"github.com/dgryski/go-rendezvous"
	"github.com/google/uuid"

	"gridmatch/internal/match"
)

const (
	defaultGridW     = 27
	defaultGridH     = 14
	defaultEnemies   = 3
	shardCount       = 4
)

// PlayerInfo is the per-player data createMatch needs (spec.md §4.2).
type PlayerInfo struct {
	UserID      string
	DisplayName string
}

// Manager owns the live match index and shard ring.
type Manager struct {
	mu          sync.RWMutex
	matches     map[string]*match.Match
	roomToMatch map[string]string

	gridW, gridH int
	enemyCount   int

	shards *rendezvous.Rendezvous
	onEvent func(roomCode, matchID string, ev match.Event)
}

func shardNode(i int) string { return fmt.Sprintf("shard-%d", i) }

func hashString(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// NewManager builds a Manager with a world of gridW x gridH (0 defaults to
// 27x14 per spec.md §4.2), wired to onEvent for every match's emitted events.
func NewManager(gridW, gridH int, onEvent func(roomCode, matchID string, ev match.Event)) *Manager {
	if gridW <= 0 {
		gridW = defaultGridW
	}
	if gridH <= 0 {
		gridH = defaultGridH
	}

	nodes := make([]string, shardCount)
	for i := range nodes {
		nodes[i] = shardNode(i)
	}

	return &Manager{
		matches:     make(map[string]*match.Match),
		roomToMatch: make(map[string]string),
		gridW:       gridW,
		gridH:       gridH,
		enemyCount:  defaultEnemies,
		shards:      rendezvous.New(nodes, hashString),
		onEvent:     onEvent,
	}
}

// ShardFor reports which worker shard a room is assigned to. Matches
// within a shard still run fully independently in-process; this is a
// placement seam for a future multi-core split, not a behavior change
// (spec.md §5 remains authoritative per-match regardless of shard).
func (mgr *Manager) ShardFor(roomCode string) string {
	return mgr.shards.Lookup(roomCode)
}

// CreateMatch ends any existing match for roomCode, builds the world and
// four-corner spawns, and starts the new match's tick loop (spec.md §4.2).
func (mgr *Manager) CreateMatch(roomCode string, players []PlayerInfo) (*match.Match, error) {
	mgr.mu.Lock()
	if existingID, ok := mgr.roomToMatch[roomCode]; ok {
		mgr.endMatchLocked(existingID)
	}
	mgr.mu.Unlock()

	matchID := uuid.NewString()
	spawns := mgr.assignSpawns(players)

	m := match.New(matchID, roomCode, mgr.gridW, mgr.gridH, spawns, mgr.enemyCount, func(ev match.Event) {
		if mgr.onEvent != nil {
			mgr.onEvent(roomCode, matchID, ev)
		}
	})

	mgr.mu.Lock()
	mgr.matches[matchID] = m
	mgr.roomToMatch[roomCode] = matchID
	mgr.mu.Unlock()

	go m.Run()

	log.Printf("match %s created for room %s on shard %s (%d players)", matchID, roomCode, mgr.ShardFor(roomCode), len(players))
	return m, nil
}

func (mgr *Manager) assignSpawns(players []PlayerInfo) []match.Spawn {
	w := match.BuildWorldForSpawns(mgr.gridW, mgr.gridH)
	corners := w.SpawnCorners()

	spawns := make([]match.Spawn, 0, len(players))
	for i, p := range players {
		corner := corners[i%len(corners)]
		spawns = append(spawns, match.Spawn{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			ColorID:     i % 4,
			SkinID:      i % 4,
			X:           corner[0],
			Y:           corner[1],
		})
	}
	return spawns
}

// EndMatch stops the tick loop and removes both indices.
func (mgr *Manager) EndMatch(matchID string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.endMatchLocked(matchID)
}

func (mgr *Manager) endMatchLocked(matchID string) {
	m, ok := mgr.matches[matchID]
	if !ok {
		return
	}
	m.Stop()
	delete(mgr.matches, matchID)
	if mgr.roomToMatch[m.RoomCode] == matchID {
		delete(mgr.roomToMatch, m.RoomCode)
	}
}

// Get returns the live match by id.
func (mgr *Manager) Get(matchID string) (*match.Match, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.matches[matchID]
	return m, ok
}

// MatchForRoom returns the live match for a room, if any.
func (mgr *Manager) MatchForRoom(roomCode string) (*match.Match, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	matchID, ok := mgr.roomToMatch[roomCode]
	if !ok {
		return nil, false
	}
	m, ok := mgr.matches[matchID]
	return m, ok
}

// StopAll ends every live match, for graceful server shutdown.
func (mgr *Manager) StopAll() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for matchID := range mgr.matches {
		mgr.endMatchLocked(matchID)
	}
}

// Count returns the number of live matches (for the admin metrics surface).
func (mgr *Manager) Count() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.matches)
}

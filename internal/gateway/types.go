package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectionCtx is the in-memory per-socket context (spec.md §3).
type ConnectionCtx struct {
	ConnectionID string
	UserID       string
	RoomCode     string
	MatchID      string
	LastSeenMs   int64

	conn *websocket.Conn
	send chan []byte

	mu sync.Mutex

	rateWindowStart time.Time
	rateCount       int

	closed bool
}

func (c *ConnectionCtx) attachedToRoom(roomCode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.RoomCode == roomCode
}

// pendingRejoin tracks an in-flight rejoin handshake (spec.md §4.4).
type pendingRejoin struct {
	roomCode        string
	matchID         string
	rejoinAttemptID string
	timer           *time.Timer
}

// room is the in-memory lobby/match attachment state for one roomCode.
// Distinct from store.Room (the persisted row): this tracks live sockets,
// stable slots, and the active restart vote, none of which are persisted.
type room struct {
	mu sync.Mutex

	roomCode string
	ownerID  string

	// players: userId -> connectionId of their currently attached socket
	// (empty string if no socket is currently attached but the player is
	// still rejoinable).
	players map[string]string

	slotByUserID map[string]int
	nextSlot     int

	matchID string

	pendingRejoins map[string]*pendingRejoin // keyed by userId

	lastActivity time.Time
}

func newRoom(roomCode, ownerID string) *room {
	return &room{
		roomCode:       roomCode,
		ownerID:        ownerID,
		players:        make(map[string]string),
		slotByUserID:   make(map[string]int),
		pendingRejoins: make(map[string]*pendingRejoin),
		lastActivity:   time.Now(),
	}
}

// stableSlot assigns (or returns the existing) slot 0..3 for userID,
// ensuring player colour/spawn identity is preserved across restarts
// (spec.md §4.4's "Stable slots").
func (r *room) stableSlot(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.slotByUserID[userID]; ok {
		return slot
	}
	slot := r.nextSlot
	r.nextSlot++
	r.slotByUserID[userID] = slot
	return slot
}

// getStableMatchPlayers returns users ordered by slot then userId
// (spec.md §4.4).
func (r *room) getStableMatchPlayers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	type entry struct {
		userID string
		slot   int
	}
	entries := make([]entry, 0, len(r.players))
	for userID := range r.players {
		entries = append(entries, entry{userID: userID, slot: r.slotByUserID[userID]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].slot != entries[j].slot {
			return entries[i].slot < entries[j].slot
		}
		return entries[i].userID < entries[j].userID
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.userID
	}
	return out
}

func (r *room) touch() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// Package registry implements the Room Registry (spec component C9): an
// in-memory liveness index of connections and rooms used by the gateway's
// background sweeps (spec.md §4.4).
package registry

import (
	"sync"
	"time"
)

// ConnectionInfo is the liveness record for one attached connection.
type ConnectionInfo struct {
	ConnectionID string
	UserID       string
	RoomCode     string
	LastSeen     time.Time
}

// RoomInfo is the liveness record for one in-memory room.
type RoomInfo struct {
	RoomCode         string
	LastActivity     time.Time
	AttachedPlayers  int
	RejoinablePlayers int
}

// Registry is single-writer by construction: callers must serialize access
// through the gateway's per-connection handler or the sweep task
// (spec.md §5's shared-resource policy).
type Registry struct {
	mu          sync.Mutex
	connections map[string]*ConnectionInfo
	rooms       map[string]*RoomInfo
}

func New() *Registry {
	return &Registry{
		connections: make(map[string]*ConnectionInfo),
		rooms:       make(map[string]*RoomInfo),
	}
}

func (r *Registry) TouchConnection(connectionID, userID, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[connectionID] = &ConnectionInfo{
		ConnectionID: connectionID, UserID: userID, RoomCode: roomCode, LastSeen: time.Now(),
	}
}

func (r *Registry) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, connectionID)
}

func (r *Registry) TouchRoom(roomCode string, lastActivity time.Time, attached, rejoinable int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[roomCode] = &RoomInfo{
		RoomCode: roomCode, LastActivity: lastActivity, AttachedPlayers: attached, RejoinablePlayers: rejoinable,
	}
}

func (r *Registry) RemoveRoom(roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomCode)
}

// StaleConnections returns connection IDs whose LastSeen exceeds maxAge
// (spec.md §4.4: terminate connections idle > 60s).
func (r *Registry) StaleConnections(maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var stale []string
	for id, c := range r.connections {
		if now.Sub(c.LastSeen) > maxAge {
			stale = append(stale, id)
		}
	}
	return stale
}

// StaleRooms returns room codes with zero attached/rejoinable players or
// whose last activity exceeds maxIdle (spec.md §4.4).
func (r *Registry) StaleRooms(maxIdle time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var stale []string
	for code, info := range r.rooms {
		if info.AttachedPlayers == 0 && info.RejoinablePlayers == 0 {
			stale = append(stale, code)
			continue
		}
		if now.Sub(info.LastActivity) > maxIdle {
			stale = append(stale, code)
		}
	}
	return stale
}

func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

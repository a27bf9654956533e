package gateway

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// StartSweeps launches the background liveness sweep (spec.md §4.4): every
// sweepInterval, stale connections are dropped, stale rooms are finalized,
// and any expired restart vote is cancelled. Runs until stopCh is closed.
func (g *Gateway) StartSweeps(stopCh <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.refreshRoomLiveness()
			g.sweepStaleConnections()
			g.sweepStaleRooms()
			g.checkRestartTimeouts()
		case <-stopCh:
			return
		}
	}
}

// refreshRoomLiveness mirrors each in-memory room's attached/rejoinable
// counts into the registry so StaleRooms can judge idleness.
func (g *Gateway) refreshRoomLiveness() {
	g.mu.RLock()
	rooms := make([]*room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	for _, r := range rooms {
		r.mu.Lock()
		attached := len(r.players)
		matchID := r.matchID
		roomCode := r.roomCode
		lastActivity := r.lastActivity
		slots := make([]string, 0, len(r.slotByUserID))
		for userID := range r.slotByUserID {
			slots = append(slots, userID)
		}
		r.mu.Unlock()

		rejoinable := 0
		if matchID != "" {
			if m, ok := g.matches.Get(matchID); ok {
				for _, userID := range slots {
					if m.IsPlayerRejoinable(userID) {
						rejoinable++
					}
				}
			}
		}

		g.reg.TouchRoom(roomCode, lastActivity, attached, rejoinable)
	}
}

func (g *Gateway) sweepStaleConnections() {
	for _, connID := range g.reg.StaleConnections(idleConnectionTimeout) {
		ctx, ok := g.getClient(connID)
		if !ok {
			g.reg.RemoveConnection(connID)
			continue
		}
		log.Printf("gateway: closing idle connection %s (user %s)", connID, ctx.UserID)
		g.closeConnection(ctx, websocket.CloseNormalClosure, "idle timeout")
	}
}

func (g *Gateway) sweepStaleRooms() {
	for _, roomCode := range g.reg.StaleRooms(idleRoomTimeout) {
		g.finalizeRoom(roomCode)
	}
}

// finalizeRoom stops the room's match, persists FINISHED, terminates any
// remaining sockets, and drops the in-memory room (spec.md §4.4).
func (g *Gateway) finalizeRoom(roomCode string) {
	r, ok := g.getRoom(roomCode)
	if !ok {
		return
	}

	r.mu.Lock()
	matchID := r.matchID
	conns := make([]string, 0, len(r.players))
	for _, connID := range r.players {
		conns = append(conns, connID)
	}
	r.mu.Unlock()

	if matchID != "" {
		g.matches.EndMatch(matchID)
	}

	if err := g.lobby.SetRoomPhase(roomCode, "FINISHED"); err != nil {
		log.Printf("gateway: failed to persist FINISHED while finalizing room %s: %v", roomCode, err)
	}

	for _, connID := range conns {
		if ctx, ok := g.getClient(connID); ok {
			g.closeConnection(ctx, websocket.CloseNormalClosure, "room finalized")
		}
	}

	g.restarts.ClearRoom(roomCode)
	g.removeRoom(roomCode)
	g.reg.RemoveRoom(roomCode)
}

// closeConnection sends a close frame, marks the context closed so the
// broadcast filter and write pump stop using it, and detaches it from its
// room.
func (g *Gateway) closeConnection(ctx *ConnectionCtx, code int, reason string) {
	ctx.mu.Lock()
	if ctx.closed {
		ctx.mu.Unlock()
		return
	}
	ctx.closed = true
	conn := ctx.conn
	ctx.mu.Unlock()

	g.detachConnection(ctx)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	conn.Close()
	g.removeClient(ctx.ConnectionID)
}

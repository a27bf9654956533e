// Package gateway implements the WS Gateway (spec component C6):
// connection authentication, room/match attachment, message routing,
// broadcast filtering, rejoin handshake, stable slots, and background
// sweeps (spec.md §4.4). Generalizes the teacher's Client/Server
// register/unregister/readPump/writePump shape from an ANSI telnet-over-WS
// protocol to the JSON message-tag protocol of spec.md §6.1.
package gateway

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridmatch/internal/config"
	"gridmatch/internal/identity"
	"gridmatch/internal/lobby"
	"gridmatch/internal/match"
	"gridmatch/internal/matchmgr"
	"gridmatch/internal/registry"
	"gridmatch/internal/restart"
	"gridmatch/internal/resume"
)

const (
	idleConnectionTimeout = 60 * time.Second
	idleRoomTimeout       = 90 * time.Second
	sweepInterval         = 10 * time.Second
	rejoinGraceWindow     = 4 * time.Second
	inputRateLimit        = 30 // per second per connection
	inputQueueBound       = 500
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway wires the Session Oracle, Room Lobby Service, Match Manager,
// Restart Vote FSM, and Resume Service behind a single WS endpoint.
type Gateway struct {
	cfg     *config.Config
	oracle  *identity.Oracle
	lobby   *lobby.Service
	matches *matchmgr.Manager
	restarts *restart.Manager
	resumes *resume.Service
	reg     *registry.Registry

	mu      sync.RWMutex
	clients map[string]*ConnectionCtx // connectionId -> ctx
	rooms   map[string]*room          // roomCode -> room

	snapshotLogMu    sync.Mutex
	snapshotLogCount map[string]int64
}

func New(cfg *config.Config, oracle *identity.Oracle, lobbySvc *lobby.Service, matches *matchmgr.Manager, restarts *restart.Manager, resumes *resume.Service, reg *registry.Registry) *Gateway {
	return &Gateway{
		cfg:      cfg,
		oracle:   oracle,
		lobby:    lobbySvc,
		matches:  matches,
		restarts: restarts,
		resumes:  resumes,
		reg:      reg,
		clients:          make(map[string]*ConnectionCtx),
		rooms:            make(map[string]*room),
		snapshotLogCount: make(map[string]int64),
	}
}

// HandleWS upgrades and authenticates a connection per spec.md §4.4's
// handshake order, then starts its read/write pumps.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := g.oracle.AuthenticateRequest(r)
	if err != nil {
		conn, upgradeErr := upgrader.Upgrade(w, r, nil)
		if upgradeErr != nil {
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4401, "authentication failed"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade error: %v", err)
		return
	}

	ctx := &ConnectionCtx{
		ConnectionID: uuid.NewString(),
		UserID:       userID,
		LastSeenMs:   nowMs(),
		conn:         conn,
		send:         make(chan []byte, 256),
	}

	g.mu.Lock()
	g.clients[ctx.ConnectionID] = ctx
	g.mu.Unlock()
	g.reg.TouchConnection(ctx.ConnectionID, ctx.UserID, "")

	g.writeJSON(ctx, map[string]interface{}{"type": "connected"})
	if eligible, reason := g.resolveResumeEligibility(userID); eligible {
		g.writeJSON(ctx, map[string]interface{}{"type": "session:resume_offer"})
	} else if reason != "no_active_session" {
		g.writeJSON(ctx, map[string]interface{}{"type": "session:resume_cleared", "reason": reason})
	}

	go g.writePump(ctx)
	g.readPump(ctx)
}

func nowMs() int64 { return time.Now().UnixMilli() }

// getOrCreateRoom returns the in-memory room for roomCode, creating it if
// this is the first socket to attach (ownerID sourced from the DB row).
func (g *Gateway) getOrCreateRoom(roomCode, ownerID string) *room {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomCode]
	if !ok {
		r = newRoom(roomCode, ownerID)
		g.rooms[roomCode] = r
	}
	return r
}

func (g *Gateway) getRoom(roomCode string) (*room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomCode]
	return r, ok
}

func (g *Gateway) removeRoom(roomCode string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, roomCode)
}

func (g *Gateway) getClient(connectionID string) (*ConnectionCtx, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.clients[connectionID]
	return c, ok
}

func (g *Gateway) removeClient(connectionID string) {
	g.mu.Lock()
	delete(g.clients, connectionID)
	g.mu.Unlock()
	g.reg.RemoveConnection(connectionID)
}

// OnMatchEvent is registered with matchmgr so the gateway broadcasts every
// match-emitted event to the owning room (spec.md §4.4's broadcast filter).
func (g *Gateway) OnMatchEvent(roomCode, matchID string, ev match.Event) {
	payload := map[string]interface{}{"type": ev.Type, "roomCode": roomCode, "matchId": matchID}
	for k, v := range ev.Data {
		payload[k] = v
	}

	if ev.Type == "match:end" {
		g.handleMatchEnd(roomCode, matchID)
	}

	g.broadcastToRoomMatch(roomCode, matchID, payload)
}

func (g *Gateway) handleMatchEnd(roomCode, matchID string) {
	if err := g.lobby.SetRoomPhase(roomCode, "FINISHED"); err != nil {
		log.Printf("gateway: failed to persist FINISHED for room %s: %v", roomCode, err)
	}
}

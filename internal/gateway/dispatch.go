package gateway

import (
	"encoding/json"
	"log"
	"time"

	"gridmatch/internal/apperr"
	"gridmatch/internal/match"
	"gridmatch/internal/matchmgr"
)

// dispatch routes one inbound frame by its "type" tag (spec.md §6.1).
// Panics are caught at this boundary and logged; the socket stays open
// (spec.md §7's "uncaught exception in message handlers" rule).
func (g *Gateway) dispatch(ctx *ConnectionCtx, msgType string, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("gateway: recovered from panic handling %s for %s: %v", msgType, ctx.ConnectionID, rec)
		}
	}()

	switch msgType {
	case "ping":
		g.handlePing(ctx, raw)
	case "room:join":
		g.handleRoomJoin(ctx, raw)
	case "room:leave":
		g.handleRoomLeave(ctx)
	case "match:start":
		g.handleMatchStart(ctx)
	case "match:input":
		g.handleMatchInput(ctx, raw)
	case "match:bomb_place":
		g.handleBombPlace(ctx, raw)
	case "mp:rejoin_ready":
		g.handleRejoinReady(ctx, raw)
	case "mp:snapshot_applied":
		g.handleSnapshotApplied(ctx, raw)
	case "room:restart_propose":
		g.handleRestartPropose(ctx)
	case "room:restart_vote":
		g.handleRestartVote(ctx, raw)
	default:
		g.writeError(ctx, apperr.CodeInvalidMessage)
	}
}

func (g *Gateway) handlePing(ctx *ConnectionCtx, raw []byte) {
	var in struct {
		ID int64 `json:"id"`
		T  int64 `json:"t"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		g.writeError(ctx, apperr.CodeInvalidPayload)
		return
	}
	g.writeJSON(ctx, map[string]interface{}{"type": "pong", "id": in.ID, "t": in.T, "serverNow": nowMs()})
}

func (g *Gateway) handleRoomJoin(ctx *ConnectionCtx, raw []byte) {
	var in struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &in); err != nil || in.RoomID == "" {
		g.writeError(ctx, apperr.CodeInvalidRoomID)
		return
	}

	dbRoom, err := g.lobby.GetRoom(in.RoomID)
	if err != nil {
		g.writeError(ctx, apperr.CodeOf(err))
		return
	}

	r := g.getOrCreateRoom(dbRoom.RoomCode, dbRoom.OwnerUserID)

	if dbRoom.Phase != "LOBBY" {
		m, hasMatch := g.matches.MatchForRoom(dbRoom.RoomCode)
		if !hasMatch || !g.isKnownPlayer(r, ctx.UserID) {
			g.writeError(ctx, apperr.CodeNotInRoom)
			return
		}
		if !m.IsPlayerRejoinable(ctx.UserID) && !g.displacesOwnStaleSocket(r, ctx.UserID) {
			g.writeError(ctx, apperr.CodeNotInRoom)
			return
		}
	}

	g.attach(ctx, r, dbRoom.RoomCode)
	r.stableSlot(ctx.UserID)
	g.resumes.TouchMultiplayer(ctx.UserID, dbRoom.RoomCode, r.matchID)

	if m, hasMatch := g.matches.MatchForRoom(dbRoom.RoomCode); hasMatch {
		m.MarkReconnected(ctx.UserID)
		g.startRejoinHandshake(ctx, r, m)
	}
}

func (g *Gateway) isKnownPlayer(r *room, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, known := r.slotByUserID[userID]
	return known
}

func (g *Gateway) displacesOwnStaleSocket(r *room, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	oldConnID, attached := r.players[userID]
	if !attached {
		return false
	}
	_, stillLive := g.getClient(oldConnID)
	return !stillLive
}

func (g *Gateway) attach(ctx *ConnectionCtx, r *room, roomCode string) {
	r.mu.Lock()
	r.players[ctx.UserID] = ctx.ConnectionID
	matchID := r.matchID
	r.lastActivity = time.Now()
	r.mu.Unlock()

	ctx.mu.Lock()
	ctx.RoomCode = roomCode
	ctx.MatchID = matchID
	ctx.mu.Unlock()

	g.reg.TouchConnection(ctx.ConnectionID, ctx.UserID, roomCode)
}

func (g *Gateway) handleRoomLeave(ctx *ConnectionCtx) {
	g.detachConnection(ctx)
}

// detachConnection implements room:leave and the on-disconnect cleanup
// path: if the leaver was the room's owner, schedule a DB close-room;
// otherwise a DB leave-room. DB failures here are swallowed with a log per
// spec.md §7's "release-safe" rule so the handler never blocks or crashes.
func (g *Gateway) detachConnection(ctx *ConnectionCtx) {
	ctx.mu.Lock()
	roomCode := ctx.RoomCode
	ctx.RoomCode = ""
	ctx.MatchID = ""
	ctx.mu.Unlock()

	if roomCode == "" {
		return
	}

	r, ok := g.getRoom(roomCode)
	if !ok {
		return
	}

	r.mu.Lock()
	if r.players[ctx.UserID] == ctx.ConnectionID {
		delete(r.players, ctx.UserID)
	}
	isOwner := r.ownerID == ctx.UserID
	matchID := r.matchID
	r.mu.Unlock()

	if m, hasMatch := g.matches.Get(matchID); hasMatch {
		m.MarkDisconnected(ctx.UserID)
	}

	go func() {
		var err error
		if isOwner {
			err = g.lobby.CloseRoom(ctx.UserID, roomCode)
		} else {
			err = g.lobby.LeaveRoom(ctx.UserID)
		}
		if err != nil && apperr.CodeOf(err) != apperr.CodeRoomNotJoined {
			log.Printf("gateway: background room cleanup failed for %s: %v", roomCode, err)
		}
	}()
}

func (g *Gateway) handleMatchStart(ctx *ConnectionCtx) {
	if ctx.RoomCode == "" {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}

	dbRoom, err := g.lobby.GetRoom(ctx.RoomCode)
	if err != nil {
		g.writeError(ctx, apperr.CodeOf(err))
		return
	}
	if dbRoom.OwnerUserID != ctx.UserID {
		g.writeError(ctx, apperr.CodeForbidden)
		return
	}

	if err := g.lobby.StartRoom(ctx.UserID, ctx.RoomCode); err != nil {
		g.writeError(ctx, apperr.CodeOf(err))
		return
	}

	r, _ := g.getRoom(ctx.RoomCode)
	g.startMatch(r)
}

func (g *Gateway) startMatch(r *room) {
	members := r.getStableMatchPlayers()
	if len(members) < 2 {
		g.broadcastToRoomMatch(r.roomCode, "", map[string]interface{}{
			"type": "match:error", "error": string(apperr.CodeNotEnoughWSPlayers),
		})
		return
	}

	infos := make([]matchmgr.PlayerInfo, 0, len(members))
	for _, userID := range members {
		displayName := userID
		if user, err := g.lobby.GetUser(userID); err == nil {
			displayName = user.DisplayName
		}
		infos = append(infos, matchmgr.PlayerInfo{UserID: userID, DisplayName: displayName})
	}

	m, err := g.matches.CreateMatch(r.roomCode, infos)
	if err != nil {
		log.Printf("gateway: failed to create match for room %s: %v", r.roomCode, err)
		return
	}

	r.mu.Lock()
	r.matchID = m.ID
	for _, ctx := range g.connectionsForRoom(r) {
		ctx.mu.Lock()
		ctx.MatchID = m.ID
		ctx.mu.Unlock()
	}
	r.mu.Unlock()

	g.broadcastToRoomMatch(r.roomCode, m.ID, map[string]interface{}{
		"type": "match:started", "roomCode": r.roomCode, "matchId": m.ID,
	})
	g.broadcastToRoomMatch(r.roomCode, m.ID, worldInitMessage(r.roomCode, m.ID, m.World()))
}

// worldInitMessage builds the match:world_init envelope (spec.md §6.1): the
// initial tile grid and its identity hash, sent once per match on start and
// again on rejoin. Tiles is marshalled as a plain number array rather than
// World's own []byte (which encoding/json would base64-encode).
func worldInitMessage(roomCode, matchID string, w match.World) map[string]interface{} {
	tiles := make([]int, len(w.Tiles))
	for i, t := range w.Tiles {
		tiles[i] = int(t)
	}
	return map[string]interface{}{
		"type": "match:world_init", "roomCode": roomCode, "matchId": matchID,
		"world": map[string]interface{}{
			"gridW": w.GridW, "gridH": w.GridH, "tiles": tiles, "worldHash": w.WorldHash,
		},
	}
}

func (g *Gateway) connectionsForRoom(r *room) []*ConnectionCtx {
	var out []*ConnectionCtx
	for _, connID := range r.players {
		if ctx, ok := g.getClient(connID); ok {
			out = append(out, ctx)
		}
	}
	return out
}

func (g *Gateway) handleMatchInput(ctx *ConnectionCtx, raw []byte) {
	if ctx.MatchID == "" {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}
	if !ctx.checkRate() {
		return
	}

	var in struct {
		Seq     uint32 `json:"seq"`
		Payload struct {
			Kind string  `json:"kind"`
			Dir  *string `json:"dir"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &in); err != nil || in.Payload.Kind != "move" {
		g.writeError(ctx, apperr.CodeInvalidPayload)
		return
	}

	m, ok := g.matches.Get(ctx.MatchID)
	if !ok {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}

	var dir *match.Direction
	if in.Payload.Dir != nil {
		d := match.Direction(*in.Payload.Dir)
		dir = &d
	}
	m.EnqueueInput(ctx.UserID, in.Seq, dir)
}

func (g *Gateway) handleBombPlace(ctx *ConnectionCtx, _ []byte) {
	if ctx.MatchID == "" {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}

	m, ok := g.matches.Get(ctx.MatchID)
	if !ok {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}

	// The client's payload carries no coordinates we trust: bomb placement
	// always targets the caller's server-tracked cell (spec.md §4.4).
	x, y, ok := m.PlayerPosition(ctx.UserID)
	if !ok {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}

	bombID, reject := m.TryPlaceBomb(ctx.UserID, x, y)
	if reject != "" {
		log.Printf("gateway: bomb place rejected for %s: %s", ctx.UserID, reject)
		return
	}
	_ = bombID
	// Success is broadcast by the match's own match:bomb_spawned event
	// (emitted synchronously inside TryPlaceBomb) via OnMatchEvent.
}

func (g *Gateway) handleSnapshotApplied(ctx *ConnectionCtx, raw []byte) {
	var in struct {
		MatchID         string `json:"matchId"`
		RejoinAttemptID string `json:"rejoinAttemptId"`
	}
	_ = json.Unmarshal(raw, &in)
	log.Printf("gateway: %s acknowledged snapshot for match %s", ctx.UserID, in.MatchID)
}


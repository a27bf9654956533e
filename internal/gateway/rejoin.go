package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"gridmatch/internal/match"
)

// startRejoinHandshake implements spec.md §4.4's rejoin handshake: send
// match:started + mp:rejoin_ack, start a 4s timer; if mp:rejoin_ready with
// matching (roomCode,matchId,rejoinAttemptId) arrives first, or the timer
// fires, send the full sync bundle.
func (g *Gateway) startRejoinHandshake(ctx *ConnectionCtx, r *room, m *match.Match) {
	attemptID := uuid.NewString()

	r.mu.Lock()
	if existing, ok := r.pendingRejoins[ctx.UserID]; ok && existing.timer != nil {
		existing.timer.Stop()
	}
	pending := &pendingRejoin{roomCode: r.roomCode, matchID: m.ID, rejoinAttemptID: attemptID}
	r.pendingRejoins[ctx.UserID] = pending
	r.mu.Unlock()

	g.writeJSON(ctx, map[string]interface{}{
		"type": "match:started", "roomCode": r.roomCode, "matchId": m.ID,
	})
	g.writeJSON(ctx, map[string]interface{}{
		"type": "mp:rejoin_ack", "roomCode": r.roomCode, "matchId": m.ID,
		"serverTime": nowMs(), "rejoinAttemptId": attemptID,
	})

	pending.timer = time.AfterFunc(rejoinGraceWindow, func() {
		g.completeRejoin(ctx, r, m, attemptID)
	})
}

func (g *Gateway) handleRejoinReady(ctx *ConnectionCtx, raw []byte) {
	var in struct {
		RoomCode        string `json:"roomCode"`
		MatchID         string `json:"matchId"`
		RejoinAttemptID string `json:"rejoinAttemptId"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return
	}

	r, ok := g.getRoom(ctx.RoomCode)
	if !ok {
		return
	}

	r.mu.Lock()
	pending, ok := r.pendingRejoins[ctx.UserID]
	r.mu.Unlock()
	if !ok {
		return
	}

	if pending.roomCode != in.RoomCode || pending.matchID != in.MatchID || pending.rejoinAttemptID != in.RejoinAttemptID {
		// Mismatched values are logged and dropped (spec.md §4.4).
		log.Printf("gateway: dropping mismatched mp:rejoin_ready from %s (room=%s match=%s attempt=%s)",
			ctx.UserID, in.RoomCode, in.MatchID, in.RejoinAttemptID)
		return
	}

	if pending.timer != nil {
		pending.timer.Stop()
	}

	m, ok := g.matches.Get(in.MatchID)
	if !ok {
		return
	}
	g.completeRejoin(ctx, r, m, in.RejoinAttemptID)
}

// completeRejoin sends the full sync bundle exactly once per handshake,
// whether triggered by mp:rejoin_ready or by the 4s fallback timer.
func (g *Gateway) completeRejoin(ctx *ConnectionCtx, r *room, m *match.Match, attemptID string) {
	r.mu.Lock()
	pending, ok := r.pendingRejoins[ctx.UserID]
	if !ok || pending.rejoinAttemptID != attemptID {
		r.mu.Unlock()
		return
	}
	delete(r.pendingRejoins, ctx.UserID)
	r.mu.Unlock()

	g.writeJSON(ctx, map[string]interface{}{
		"type": "match:started", "roomCode": r.roomCode, "matchId": m.ID,
	})
	g.writeJSON(ctx, map[string]interface{}{
		"type": "mp:rejoin_sync", "matchId": m.ID,
	})
	g.writeJSON(ctx, worldInitMessage(r.roomCode, m.ID, m.World()))
	// match:snapshot follows on the next regular tick broadcast; the
	// authoritative state is already current by the time this bundle lands.
}

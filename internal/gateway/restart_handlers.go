package gateway

import (
	"encoding/json"
	"log"

	"gridmatch/internal/apperr"
	"gridmatch/internal/restart"
)

// handleRestartPropose implements room:restart_propose (spec.md §4.5): only
// allowed once the room's match has finished, or the proposer has been
// eliminated from the current one.
func (g *Gateway) handleRestartPropose(ctx *ConnectionCtx) {
	if ctx.RoomCode == "" {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}

	dbRoom, err := g.lobby.GetRoom(ctx.RoomCode)
	if err != nil {
		g.writeError(ctx, apperr.CodeOf(err))
		return
	}

	if dbRoom.Phase != "FINISHED" {
		if m, hasMatch := g.matches.MatchForRoom(ctx.RoomCode); hasMatch && !m.IsPlayerEliminated(ctx.UserID) {
			g.writeJSON(ctx, map[string]interface{}{
				"type": "room:restart_rejected", "roomCode": ctx.RoomCode,
				"reason": string(apperr.CodeRestartProposeNotAllowed),
			})
			return
		}
	}

	ok, _, retryAt := g.restarts.CanPropose(ctx.RoomCode, ctx.UserID)
	if !ok {
		if !retryAt.IsZero() {
			g.writeJSON(ctx, map[string]interface{}{
				"type": "room:restart_cooldown", "roomCode": ctx.RoomCode,
				"retryAtMs": retryAt.UnixMilli(),
			})
			return
		}
		g.writeJSON(ctx, map[string]interface{}{
			"type": "room:restart_rejected", "roomCode": ctx.RoomCode,
			"reason": string(apperr.CodeRestartVoteAlreadyActive),
		})
		return
	}

	v := g.restarts.Propose(ctx.RoomCode, ctx.UserID)
	g.broadcastToRoomMatch(ctx.RoomCode, "", map[string]interface{}{
		"type": "room:restart_proposed", "roomCode": ctx.RoomCode,
		"byUserId": ctx.UserID, "expiresAt": v.ExpiresAt.UnixMilli(),
	})
}

func (g *Gateway) handleRestartVote(ctx *ConnectionCtx, raw []byte) {
	if ctx.RoomCode == "" {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}

	var in struct {
		Vote bool `json:"vote"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		g.writeError(ctx, apperr.CodeInvalidPayload)
		return
	}

	r, ok := g.getRoom(ctx.RoomCode)
	if !ok {
		g.writeError(ctx, apperr.CodeNotInRoom)
		return
	}
	total := len(r.getStableMatchPlayers())

	result, had := g.restarts.CastVote(ctx.RoomCode, ctx.UserID, in.Vote, total)
	if !had {
		return
	}

	g.applyRestartResult(ctx.RoomCode, result)
}

// applyRestartResult broadcasts the outcome of a vote mutation and, on
// acceptance, starts a fresh match reusing the room's stable slots.
func (g *Gateway) applyRestartResult(roomCode string, result *restart.VoteResult) {
	switch {
	case result.Accepted:
		g.broadcastToRoomMatch(roomCode, "", map[string]interface{}{
			"type": "room:restart_accepted", "roomCode": roomCode,
		})
		r, ok := g.getRoom(roomCode)
		if !ok {
			return
		}
		if err := g.lobby.SetRoomPhase(roomCode, "STARTED"); err != nil {
			log.Printf("gateway: failed to persist STARTED on restart for room %s: %v", roomCode, err)
		}
		g.startMatch(r)

	case result.Cancelled:
		g.broadcastToRoomMatch(roomCode, "", map[string]interface{}{
			"type": "room:restart_cancelled", "roomCode": roomCode, "reason": string(result.Reason),
		})
		g.enforceRestartSpamPenalty(roomCode, result.ProposerID)

	default:
		g.broadcastToRoomMatch(roomCode, "", map[string]interface{}{
			"type": "room:restart_vote_state", "roomCode": roomCode,
			"yesCount": result.YesCount, "total": result.Total,
		})
	}
}

// enforceRestartSpamPenalty kicks the proposer who has racked up three
// ignored/timed-out restart proposals in this room (spec.md §4.5).
func (g *Gateway) enforceRestartSpamPenalty(roomCode, proposerID string) {
	if proposerID == "" {
		return
	}
	r, ok := g.getRoom(roomCode)
	if !ok {
		return
	}

	if g.restarts.ShouldKick(roomCode, proposerID) {
		r.mu.Lock()
		connID, attached := r.players[proposerID]
		r.mu.Unlock()
		if attached {
			if proposerCtx, ok := g.getClient(connID); ok {
				g.writeError(proposerCtx, apperr.CodeForbidden)
				g.detachConnection(proposerCtx)
			}
		}
	}
}

// checkRestartTimeouts is invoked by the sweep loop to expire any restart
// vote whose window has elapsed without unanimous acceptance.
func (g *Gateway) checkRestartTimeouts() {
	g.mu.RLock()
	roomCodes := make([]string, 0, len(g.rooms))
	for code := range g.rooms {
		roomCodes = append(roomCodes, code)
	}
	g.mu.RUnlock()

	for _, code := range roomCodes {
		if result, had := g.restarts.CheckTimeout(code); had {
			g.applyRestartResult(code, result)
		}
	}
}

package gateway

import (
	"encoding/json"
	"log"
)

// broadcastToRoomMatch implements spec.md §4.4's broadcast filter: iterate
// the room's players map, resolve each to its attached ConnectionCtx, and
// send only if ctx.roomId==roomId && ctx.matchId==matchId && the socket is
// attached to this room. An empty matchID skips the match check, so the
// message reaches every attached socket of the room. Counts are logged when
// diagnostic sampling is on.
func (g *Gateway) broadcastToRoomMatch(roomCode, matchID string, payload map[string]interface{}) {
	r, ok := g.getRoom(roomCode)
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("gateway: failed to marshal broadcast payload: %v", err)
		return
	}

	r.mu.Lock()
	connIDs := make([]string, 0, len(r.players))
	for _, connID := range r.players {
		connIDs = append(connIDs, connID)
	}
	r.mu.Unlock()

	considered, sent := 0, 0
	skipReasons := make(map[string]int)

	for _, connID := range connIDs {
		considered++
		ctx, ok := g.getClient(connID)
		if !ok {
			skipReasons["not_connected"]++
			continue
		}

		ctx.mu.Lock()
		roomMatches := ctx.RoomCode == roomCode
		matchMatches := matchID == "" || ctx.MatchID == matchID
		closed := ctx.closed
		ctx.mu.Unlock()

		if closed {
			skipReasons["closed"]++
			continue
		}
		if !roomMatches {
			skipReasons["room_mismatch"]++
			continue
		}
		if !matchMatches {
			skipReasons["match_mismatch"]++
			continue
		}

		g.send(ctx, data)
		sent++
	}

	if g.cfg.LogSnapshotBroadcast && payload["type"] == "match:snapshot" {
		g.sampleSnapshotLog(roomCode, considered, sent, skipReasons)
	}
}

func (g *Gateway) sampleSnapshotLog(roomCode string, considered, sent int, skipReasons map[string]int) {
	every := g.cfg.LogSnapshotBroadcastEvery
	if every <= 0 {
		every = 100
	}
	g.snapshotLogMu.Lock()
	g.snapshotLogCount[roomCode]++
	count := g.snapshotLogCount[roomCode]
	g.snapshotLogMu.Unlock()

	if count%int64(every) == 0 {
		log.Printf("gateway: snapshot broadcast room=%s considered=%d sent=%d skipped=%v", roomCode, considered, sent, skipReasons)
	}
}

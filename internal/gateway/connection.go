package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"gridmatch/internal/apperr"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// readPump mirrors the teacher's Client.readPump shape: blocking read loop,
// pong-extends the deadline, dispatches each decoded frame, and unregisters
// on any read error (spec.md §4.4).
func (g *Gateway) readPump(ctx *ConnectionCtx) {
	defer func() {
		g.detachConnection(ctx)
		g.removeClient(ctx.ConnectionID)
		ctx.conn.Close()
	}()

	ctx.conn.SetReadDeadline(time.Now().Add(pongWait))
	ctx.conn.SetPongHandler(func(string) error {
		ctx.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctx.LastSeenMs = nowMs()
		return nil
	})

	for {
		_, raw, err := ctx.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("gateway: connection %s read error: %v", ctx.ConnectionID, err)
			}
			return
		}

		ctx.LastSeenMs = nowMs()
		if ctx.RoomCode != "" {
			g.reg.TouchConnection(ctx.ConnectionID, ctx.UserID, ctx.RoomCode)
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			g.writeError(ctx, apperr.CodeInvalidJSON)
			continue
		}

		g.dispatch(ctx, envelope.Type, raw)
	}
}

// writePump mirrors the teacher's Client.writePump: coalesces queued sends
// into a single frame write and pings on an idle interval.
func (g *Gateway) writePump(ctx *ConnectionCtx) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ctx.conn.Close()
	}()

	for {
		select {
		case message, ok := <-ctx.send:
			ctx.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ctx.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ctx.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			ctx.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ctx.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) writeJSON(ctx *ConnectionCtx, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("gateway: failed to marshal outbound payload: %v", err)
		return
	}
	g.send(ctx, data)
}

func (g *Gateway) send(ctx *ConnectionCtx, data []byte) {
	ctx.mu.Lock()
	closed := ctx.closed
	ctx.mu.Unlock()
	if closed {
		return
	}
	select {
	case ctx.send <- data:
	default:
		log.Printf("gateway: connection %s send buffer full, dropping frame", ctx.ConnectionID)
	}
}

func (g *Gateway) writeError(ctx *ConnectionCtx, code apperr.Code) {
	g.writeJSON(ctx, map[string]interface{}{"type": "match:error", "error": string(code)})
}

// checkRate enforces the 30/sec/conn input rate limit (spec.md §4.4).
func (c *ConnectionCtx) checkRate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.rateWindowStart) >= time.Second {
		c.rateWindowStart = now
		c.rateCount = 0
	}
	c.rateCount++
	return c.rateCount <= inputRateLimit
}

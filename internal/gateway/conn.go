package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chessmeet/internal/obslog"
	"github.com/kapu/chessmeet/pkg/wire"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Conn wraps one client websocket. Writes are serialized by mu so satellite
// components (clock broadcasts, grace notifications) can send concurrently
// with handler replies.
type Conn struct {
	ws *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
}

func newConn(ws *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{ws: ws, ctx: ctx, cancel: cancel}
}

// Send delivers one event frame. Failures close the connection; the read
// loop then runs the disconnect chain.
func (c *Conn) Send(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		obslog.L().Error("ws_marshal_failed", zap.String("event", event), zap.Error(err))
		return
	}
	env := wire.Envelope{Event: event, Data: raw}

	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.ws, env); err != nil {
		obslog.L().Debug("ws_write_failed", zap.String("event", event), zap.Error(err))
		c.cancel()
	}
}

func (c *Conn) sendError(code, message string) {
	c.Send(wire.EvError, wire.ErrorPayload{Code: code, Message: message})
}

func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.cancel()
	_ = c.ws.Close(code, reason)
}

package gateway

import (
	"errors"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chessmeet/internal/identity"
	"github.com/kapu/chessmeet/internal/invite"
	"github.com/kapu/chessmeet/internal/match"
	"github.com/kapu/chessmeet/internal/obslog"
	"github.com/kapu/chessmeet/internal/presence"
	"github.com/kapu/chessmeet/internal/session"
	"github.com/kapu/chessmeet/pkg/wire"
	"go.uber.org/zap"
)

// Gateway terminates client websockets and routes their events into the
// orchestrator components. Events from one connection are dispatched to
// completion in arrival order by its read loop.
type Gateway struct {
	registry *identity.Registry
	graph    *presence.Graph
	queue    *match.Queue
	broker   *invite.Broker
	sessions *session.Manager
	stats    func() wire.Stats
}

func New(registry *identity.Registry, graph *presence.Graph, queue *match.Queue, broker *invite.Broker, sessions *session.Manager, stats func() wire.Stats) *Gateway {
	return &Gateway{
		registry: registry,
		graph:    graph,
		queue:    queue,
		broker:   broker,
		sessions: sessions,
		stats:    stats,
	}
}

// Notifier adapts the identity registry into the session manager's outbound
// port: events to offline identities are dropped.
type Notifier struct {
	Registry *identity.Registry
}

func (n Notifier) Notify(name, event string, data any) {
	n.Registry.SendTo(name, event, data)
}

// Handler exposes the websocket endpoint.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.serveWS)
	return mux
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}
	c := newConn(ws)
	defer c.close(websocket.StatusNormalClosure, "bye")

	g.readLoop(c)
	g.handleDisconnect(c)
}

func (g *Gateway) readLoop(c *Conn) {
	for {
		var env wire.Envelope
		if err := wsjson.Read(c.ctx, c.ws, &env); err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) && c.ctx.Err() == nil {
				obslog.L().Debug("ws_read_failed", zap.Error(err))
			}
			return
		}
		g.dispatch(c, &env)
	}
}

// handleDisconnect runs the abrupt-drop chain: clear the connection binding,
// leave the queue, withdraw the identity's outstanding invitations, fan
// presence out to friends, and hand the live session to the disconnect guard.
func (g *Gateway) handleDisconnect(c *Conn) {
	id := g.registry.MarkOffline(c)
	if id == nil {
		return
	}
	g.queue.Remove(id.Name)
	for _, inv := range g.broker.DropFrom(id.Name) {
		g.registry.SendTo(inv.To, wire.EvGameInvitationDeclined, wire.InvitationRef{InviteID: inv.ID, From: inv.From})
	}
	g.sessions.HandleDisconnect(id.Name)
	for _, friend := range g.graph.ListFriends(id.Name) {
		g.registry.SendTo(friend, wire.EvFriendStatusUpdate, wire.FriendStatusUpdate{Username: id.Name, Online: false})
	}
}

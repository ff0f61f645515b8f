package status

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/kapu/chessmeet/pkg/wire"
)

// Sources supplies the read-only counters reported by the status surface.
type Sources struct {
	ActiveSessions func() int
	QueueLength    func() int
	Connected      func() int
}

// Server is the side-channel status endpoint. Read-only; it never mutates
// orchestrator state.
type Server struct {
	started time.Time
	sources Sources
	srv     *fasthttp.Server
}

func NewServer(sources Sources) *Server {
	s := &Server{started: time.Now(), sources: sources}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Snapshot builds the current counters. Shared with the websocket get-stats
// handler.
func (s *Server) Snapshot() wire.Stats {
	return wire.Stats{
		ActiveSessions: s.sources.ActiveSessions(),
		QueueLength:    s.sources.QueueLength(),
		Connected:      s.sources.Connected(),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
	}
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/status":
		body, err := json.Marshal(s.Snapshot())
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	case "/healthz":
		ctx.SetContentType("text/plain")
		ctx.SetBodyString("ok")
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

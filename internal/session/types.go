package session

import (
	"context"
	"sync"
	"time"
)

// Side identifies one seat of a session.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

func (s Side) Other() Side {
	if s == White {
		return Black
	}
	return White
}

// Terminal is the validator's classification of a position after a move.
type Terminal string

const (
	TerminalNone     Terminal = ""
	TerminalWhiteWon Terminal = "white_won"
	TerminalBlackWon Terminal = "black_won"
	TerminalDraw     Terminal = "draw"
)

// Position is the opaque game-state handle owned by the external move
// validator. The orchestrator never interprets it beyond display encoding.
type Position interface {
	FEN() string
}

// MoveResult is what the validator reports for an accepted move. Terminal and
// Method are authoritative; the orchestrator does not second-guess them.
type MoveResult struct {
	Position Position
	UCI      string
	SAN      string
	Terminal Terminal
	Method   string
}

// Validator is the external move-legality service.
type Validator interface {
	InitialPosition(variant string) (Position, error)
	Apply(pos Position, side Side, move string) (MoveResult, error)
}

// Notifier delivers a server event to a named identity, dropping it silently
// when the identity is offline.
type Notifier interface {
	Notify(name, event string, data any)
}

// VideoProvisioner creates and destroys conferencing rooms keyed by session
// id. Strictly best-effort; session correctness never depends on it.
type VideoProvisioner interface {
	CreateRoom(ctx context.Context, sessionID string) (string, error)
	DeleteRoom(ctx context.Context, sessionID string) error
}

// Record is the snapshot handed to archival sinks when a session ends.
type Record struct {
	ID        string
	White     string
	Black     string
	Variant   string
	Winner    string
	Reason    string
	MovesSAN  []string
	CreatedAt time.Time
	EndedAt   time.Time
}

// Archiver persists finished sessions, best-effort.
type Archiver interface {
	SaveFinal(ctx context.Context, rec Record) error
}

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// EndReason names why a session terminated. Validator-reported endings carry
// the validator's method string (checkmate, stalemate, ...) verbatim.
type EndReason string

const (
	ReasonTimeout       EndReason = "timeout"
	ReasonResignation   EndReason = "resignation"
	ReasonDisconnection EndReason = "disconnection"
	ReasonAbandoned     EndReason = "abandoned"
)

// Session is one two-party game. All mutable fields are guarded by mu; every
// mutating entry point on the Manager serializes on it, so no two operations
// touching the same session ever interleave. The clock stop channel and the
// grace timer are owned exclusively by the session: both are cancelled inside
// the same critical section that flips status to ended.
type Session struct {
	ID        string
	WhiteName string
	BlackName string
	Variant   string
	CreatedAt time.Time

	mu        sync.Mutex
	status    Status
	endReason EndReason
	winner    Side // empty for draws and abandonment
	pos       Position
	turn      Side
	remaining map[Side]int // seconds, never negative
	movesSAN  []string
	clockStop chan struct{}
	grace     *time.Timer // non-nil only while a grace period runs
}

// PlayerSide maps an identity name to its seat, or "" if not a participant.
func (s *Session) PlayerSide(name string) Side {
	switch name {
	case s.WhiteName:
		return White
	case s.BlackName:
		return Black
	}
	return ""
}

func (s *Session) playerName(side Side) string {
	if side == White {
		return s.WhiteName
	}
	if side == Black {
		return s.BlackName
	}
	return ""
}

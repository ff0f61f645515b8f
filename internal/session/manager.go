package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/chessmeet/internal/obslog"
	"github.com/kapu/chessmeet/pkg/wire"
	"go.uber.org/zap"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrNotActive      = errors.New("session is not active")
	ErrWrongTurn      = errors.New("not your turn")
	ErrNotParticipant = errors.New("identity is not in this session")
	ErrPlayerBusy     = errors.New("identity already bound to an active session")
	ErrSamePlayer     = errors.New("session needs two distinct identities")
	ErrMoveRejected   = errors.New("move rejected")
)

type Config struct {
	TimeControlSec    int
	ClockBroadcastSec int
	GracePeriod       time.Duration
	TickInterval      time.Duration // defaults to one second
}

// Manager owns the active session set. It is the only writer of session
// state; the clock and the disconnect guard mutate a session solely through
// its serialized entry points.
type Manager struct {
	validator Validator
	notify    Notifier
	cfg       Config

	video   VideoProvisioner
	archive Archiver

	randMu sync.Mutex
	rnd    *rand.Rand

	mu       sync.RWMutex
	sessions map[string]*Session
	byPlayer map[string]string
}

func NewManager(validator Validator, notify Notifier, cfg Config) *Manager {
	if cfg.TimeControlSec <= 0 {
		cfg.TimeControlSec = 600
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	return &Manager{
		validator: validator,
		notify:    notify,
		cfg:       cfg,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions:  make(map[string]*Session),
		byPlayer:  make(map[string]string),
	}
}

// AttachVideo wires a best-effort conferencing room provisioner.
func (m *Manager) AttachVideo(v VideoProvisioner) {
	if m != nil {
		m.video = v
	}
}

// AttachArchive wires a best-effort finished-game sink.
func (m *Manager) AttachArchive(a Archiver) {
	if m != nil {
		m.archive = a
	}
}

// SetRand replaces the side-assignment source. Tests inject a fixed seed.
func (m *Manager) SetRand(r *rand.Rand) {
	m.randMu.Lock()
	m.rnd = r
	m.randMu.Unlock()
}

// CreateFromQueue pairs two queue-sourced identities: the first dequeued
// takes white, the second black.
func (m *Manager) CreateFromQueue(first, second string) (*Session, error) {
	return m.create(first, second, "standard")
}

// CreateFromInvite pairs inviter and invitee with sides assigned uniformly
// 50/50.
func (m *Manager) CreateFromInvite(inviter, invitee, variant string) (*Session, error) {
	white, black := inviter, invitee
	m.randMu.Lock()
	flip := m.rnd.Intn(2) == 1
	m.randMu.Unlock()
	if flip {
		white, black = invitee, inviter
	}
	return m.create(white, black, variant)
}

func (m *Manager) create(white, black, variant string) (*Session, error) {
	if white == black {
		return nil, ErrSamePlayer
	}
	pos, err := m.validator.InitialPosition(variant)
	if err != nil {
		return nil, fmt.Errorf("initial position: %w", err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		WhiteName: white,
		BlackName: black,
		Variant:   variant,
		CreatedAt: time.Now(),
		status:    StatusActive,
		pos:       pos,
		turn:      White,
		remaining: map[Side]int{White: m.cfg.TimeControlSec, Black: m.cfg.TimeControlSec},
		clockStop: make(chan struct{}),
	}

	m.mu.Lock()
	if _, busy := m.byPlayer[white]; busy {
		m.mu.Unlock()
		return nil, ErrPlayerBusy
	}
	if _, busy := m.byPlayer[black]; busy {
		m.mu.Unlock()
		return nil, ErrPlayerBusy
	}
	m.sessions[s.ID] = s
	m.byPlayer[white] = s.ID
	m.byPlayer[black] = s.ID
	m.mu.Unlock()

	go m.runClock(s, s.clockStop)

	clocks := wire.Clocks{White: m.cfg.TimeControlSec, Black: m.cfg.TimeControlSec}
	fen := pos.FEN()
	m.notify.Notify(white, wire.EvMatchFound, wire.MatchFound{
		SessionID: s.ID, Side: string(White), Opponent: black, Position: fen, Clocks: clocks,
	})
	m.notify.Notify(black, wire.EvMatchFound, wire.MatchFound{
		SessionID: s.ID, Side: string(Black), Opponent: white, Position: fen, Clocks: clocks,
	})

	if m.video != nil {
		go m.provisionRoom(s)
	}

	obslog.L().Info("session_create",
		zap.String("session_id", s.ID),
		zap.String("white", white),
		zap.String("black", black),
		zap.String("variant", variant),
	)
	return s, nil
}

func (m *Manager) provisionRoom(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url, err := m.video.CreateRoom(ctx, s.ID)
	if err != nil {
		obslog.L().Warn("video_room_create_failed", zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	payload := wire.VideoRoomReady{SessionID: s.ID, RoomURL: url}
	m.notify.Notify(s.WhiteName, wire.EvVideoRoomReady, payload)
	m.notify.Notify(s.BlackName, wire.EvVideoRoomReady, payload)
}

func (m *Manager) get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// ByPlayer returns the active session an identity is bound to, if any.
func (m *Manager) ByPlayer(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPlayer[name]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// ApplyMove forwards mover's move to the validator. Rejections leave the
// session untouched and surface only to the caller; accepted moves flip the
// turn, replace the position handle, and broadcast move-made to both sides. A
// terminal classification ends the session immediately.
func (m *Manager) ApplyMove(sessionID, mover string, claimed Side, move string) error {
	s, ok := m.get(sessionID)
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	side := s.PlayerSide(mover)
	if side == "" || (claimed != "" && claimed != side) {
		s.mu.Unlock()
		return ErrNotParticipant
	}
	if side != s.turn {
		s.mu.Unlock()
		return ErrWrongTurn
	}
	res, err := m.validator.Apply(s.pos, side, move)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMoveRejected, err.Error())
	}
	s.pos = res.Position
	s.turn = side.Other()
	s.movesSAN = append(s.movesSAN, res.SAN)
	payload := wire.MoveMade{
		SessionID: s.ID,
		Move:      res.UCI,
		SAN:       res.SAN,
		Position:  res.Position.FEN(),
		Turn:      string(s.turn),
		Clocks:    s.clocksLocked(),
		Terminal:  string(res.Terminal),
	}
	s.mu.Unlock()

	m.notify.Notify(s.WhiteName, wire.EvMoveMade, payload)
	m.notify.Notify(s.BlackName, wire.EvMoveMade, payload)
	obslog.L().Info("session_move",
		zap.String("session_id", s.ID),
		zap.String("mover", mover),
		zap.String("uci", res.UCI),
		zap.String("terminal", string(res.Terminal)),
	)

	if res.Terminal != TerminalNone {
		reason := EndReason(res.Method)
		if reason == "" {
			reason = EndReason(res.Terminal)
		}
		var winner Side
		switch res.Terminal {
		case TerminalWhiteWon:
			winner = White
		case TerminalBlackWon:
			winner = Black
		}
		m.terminate(s, reason, winner)
	}
	return nil
}

// Resign ends the session with the opposite side as winner.
func (m *Manager) Resign(sessionID, name string) error {
	s, ok := m.get(sessionID)
	if !ok {
		return ErrNotFound
	}
	side := s.PlayerSide(name)
	if side == "" {
		return ErrNotParticipant
	}
	if !m.terminate(s, ReasonResignation, side.Other()) {
		return ErrNotActive
	}
	return nil
}

// HandleDisconnect notifies the remaining side and arms the grace timer. The
// session is not ended here; forfeiture happens only if the timer fires while
// the session is still active.
func (m *Manager) HandleDisconnect(name string) {
	s, ok := m.ByPlayer(name)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.status != StatusActive || s.grace != nil {
		s.mu.Unlock()
		return
	}
	staying := s.PlayerSide(name).Other()
	s.grace = time.AfterFunc(m.cfg.GracePeriod, func() {
		m.terminate(s, ReasonDisconnection, staying)
	})
	s.mu.Unlock()

	m.notify.Notify(s.playerName(staying), wire.EvOpponentDisconnected, wire.GameEnded{SessionID: s.ID})
	obslog.L().Info("session_disconnect_grace",
		zap.String("session_id", s.ID),
		zap.String("dropped", name),
		zap.Duration("grace", m.cfg.GracePeriod),
	)
}

// terminate is the single choke point for every ending. Only the first call
// on a session has effect: status flips, the clock stop channel is closed and
// the grace timer cancelled inside the same critical section, so neither can
// fire against a dead session. Returns false when the session had already
// ended.
func (m *Manager) terminate(s *Session, reason EndReason, winner Side) bool {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return false
	}
	s.status = StatusEnded
	s.endReason = reason
	s.winner = winner
	if s.clockStop != nil {
		close(s.clockStop)
		s.clockStop = nil
	}
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	rec := Record{
		ID:        s.ID,
		White:     s.WhiteName,
		Black:     s.BlackName,
		Variant:   s.Variant,
		Winner:    s.playerName(winner),
		Reason:    string(reason),
		MovesSAN:  append([]string(nil), s.movesSAN...),
		CreatedAt: s.CreatedAt,
		EndedAt:   time.Now(),
	}
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, s.ID)
	if m.byPlayer[s.WhiteName] == s.ID {
		delete(m.byPlayer, s.WhiteName)
	}
	if m.byPlayer[s.BlackName] == s.ID {
		delete(m.byPlayer, s.BlackName)
	}
	m.mu.Unlock()

	payload := wire.GameEnded{SessionID: s.ID, Reason: string(reason), Winner: rec.Winner}
	m.notify.Notify(s.WhiteName, wire.EvGameEnded, payload)
	m.notify.Notify(s.BlackName, wire.EvGameEnded, payload)

	if m.video != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.video.DeleteRoom(ctx, s.ID); err != nil {
				obslog.L().Warn("video_room_delete_failed", zap.String("session_id", s.ID), zap.Error(err))
			}
		}()
	}
	if m.archive != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.archive.SaveFinal(ctx, rec); err != nil {
				obslog.L().Error("session_archive_failed", zap.String("session_id", s.ID), zap.Error(err))
			}
		}()
	}

	obslog.L().Info("session_end",
		zap.String("session_id", s.ID),
		zap.String("reason", string(reason)),
		zap.String("winner", rec.Winner),
	)
	return true
}

// SweepAbandoned terminates sessions older than maxAge regardless of what
// they are doing. Routed through terminate so clocks, grace timers, and the
// video room are reclaimed the same way as for any other ending.
func (m *Manager) SweepAbandoned(now time.Time, maxAge time.Duration) int {
	m.mu.RLock()
	var stale []*Session
	for _, s := range m.sessions {
		if now.Sub(s.CreatedAt) > maxAge {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, s := range stale {
		if m.terminate(s, ReasonAbandoned, "") {
			n++
		}
	}
	if n > 0 {
		obslog.L().Info("session_sweep", zap.Int("reaped", n))
	}
	return n
}

// ActiveCount reports the number of active sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot returns display state for one session.
func (s *Session) Snapshot() (status Status, reason EndReason, turn Side, clocks wire.Clocks, fen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.endReason, s.turn, s.clocksLocked(), s.pos.FEN()
}

func (s *Session) clocksLocked() wire.Clocks {
	return wire.Clocks{White: s.remaining[White], Black: s.remaining[Black]}
}

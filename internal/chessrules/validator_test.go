package chessrules

import (
	"errors"
	"testing"

	"github.com/kapu/chessmeet/internal/session"
)

func TestApplyUCIMove(t *testing.T) {
	v := New()
	pos, err := v.InitialPosition("standard")
	if err != nil {
		t.Fatalf("InitialPosition: %v", err)
	}
	startFEN := pos.FEN()
	res, err := v.Apply(pos, session.White, "e2e4")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.UCI != "e2e4" || res.SAN != "e4" {
		t.Fatalf("unexpected notation: uci=%q san=%q", res.UCI, res.SAN)
	}
	if res.Terminal != session.TerminalNone {
		t.Fatalf("opening move must not be terminal: %q", res.Terminal)
	}
	if res.Position.FEN() == startFEN {
		t.Fatalf("apply must advance the position")
	}
}

func TestApplySANMove(t *testing.T) {
	v := New()
	pos, _ := v.InitialPosition("standard")
	res, err := v.Apply(pos, session.White, "Nf3")
	if err != nil {
		t.Fatalf("Apply SAN: %v", err)
	}
	if res.UCI != "g1f3" {
		t.Fatalf("SAN move must report its UCI form, got %q", res.UCI)
	}
}

func TestApplyRejectsIllegalAndOutOfTurn(t *testing.T) {
	v := New()
	pos, _ := v.InitialPosition("standard")

	if _, err := v.Apply(pos, session.White, "e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("illegal move: got %v", err)
	}
	if _, err := v.Apply(pos, session.White, ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("empty move: got %v", err)
	}
	if _, err := v.Apply(pos, session.Black, "e7e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("side not to move: got %v", err)
	}
	// rejected moves leave the position untouched
	if _, err := v.Apply(pos, session.White, "e2e4"); err != nil {
		t.Fatalf("position corrupted by rejections: %v", err)
	}
}

func TestFoolsMateIsTerminal(t *testing.T) {
	v := New()
	pos, _ := v.InitialPosition("standard")
	moves := []struct {
		side session.Side
		mv   string
	}{
		{session.White, "f2f3"},
		{session.Black, "e7e5"},
		{session.White, "g2g4"},
	}
	for _, m := range moves {
		if _, err := v.Apply(pos, m.side, m.mv); err != nil {
			t.Fatalf("Apply %s: %v", m.mv, err)
		}
	}
	res, err := v.Apply(pos, session.Black, "Qh4#")
	if err != nil {
		t.Fatalf("mating move: %v", err)
	}
	if res.Terminal != session.TerminalBlackWon {
		t.Fatalf("expected black win, got %q", res.Terminal)
	}
	if res.Method != "checkmate" {
		t.Fatalf("expected checkmate method, got %q", res.Method)
	}
}

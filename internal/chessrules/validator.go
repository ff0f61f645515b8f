package chessrules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/kapu/chessmeet/internal/session"
)

var ErrIllegalMove = errors.New("illegal move")

// position wraps the live game state. Outside this package it is an opaque
// handle; the orchestrator only ever asks it for a FEN.
type position struct {
	game *nchess.Game
}

func (p *position) FEN() string { return p.game.FEN() }

// Validator implements session.Validator on top of corentings/chess.
type Validator struct{}

func New() *Validator { return &Validator{} }

// InitialPosition returns the standard start position. Unknown variants fall
// back to standard rather than failing session creation.
func (v *Validator) InitialPosition(variant string) (session.Position, error) {
	return &position{game: nchess.NewGame()}, nil
}

// Apply decodes the move as UCI first and algebraic notation second, applies
// it, and classifies the resulting position. Rejections leave the handle
// untouched.
func (v *Validator) Apply(pos session.Position, side session.Side, move string) (session.MoveResult, error) {
	p, ok := pos.(*position)
	if !ok || p.game == nil {
		return session.MoveResult{}, errors.New("foreign position handle")
	}
	if sideOf(p.game.Position().Turn()) != side {
		return session.MoveResult{}, fmt.Errorf("%w: %s is not to move", ErrIllegalMove, side)
	}

	raw := strings.TrimSpace(move)
	if raw == "" {
		return session.MoveResult{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}

	before := p.game.Position()
	var uci, san string
	if mv, derr := (nchess.UCINotation{}).Decode(before, strings.ToLower(raw)); derr == nil {
		if err := p.game.Move(mv, nil); err != nil {
			return session.MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
		uci = mv.String()
		san = nchess.AlgebraicNotation{}.Encode(before, mv)
	} else {
		if err := p.game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return session.MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
		mv := lastMove(p.game)
		if mv == nil {
			return session.MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
		uci = mv.String()
		san = nchess.AlgebraicNotation{}.Encode(before, mv)
	}

	res := session.MoveResult{Position: p, UCI: uci, SAN: san}
	switch p.game.Outcome() {
	case nchess.WhiteWon:
		res.Terminal = session.TerminalWhiteWon
	case nchess.BlackWon:
		res.Terminal = session.TerminalBlackWon
	case nchess.Draw:
		res.Terminal = session.TerminalDraw
	}
	if res.Terminal != session.TerminalNone {
		res.Method = methodName(p.game.Method())
	}
	return res, nil
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func sideOf(c nchess.Color) session.Side {
	if c == nchess.White {
		return session.White
	}
	return session.Black
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	default:
		return "draw"
	}
}

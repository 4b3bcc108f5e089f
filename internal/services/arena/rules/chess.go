package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ChessAdapter evaluates moves with a full chess rules engine.
//
// Draws that the engine treats as claimable rather than automatic (threefold
// repetition and the fifty-move rule) are claimed on behalf of both players
// immediately, so sessions observe them as terminal classifications.
type ChessAdapter struct{}

// NewChessAdapter returns an adapter producing standard chess games.
func NewChessAdapter() ChessAdapter {
	return ChessAdapter{}
}

// NewGame starts a game from the standard initial position.
func (ChessAdapter) NewGame() Game {
	return &chessGame{game: nchess.NewGame()}
}

// NewGameFromFEN starts a game from an arbitrary position.
func (ChessAdapter) NewGameFromFEN(fen string) (Game, error) {
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &chessGame{game: nchess.NewGame(option)}, nil
}

type chessGame struct {
	game *nchess.Game
}

func (g *chessGame) Position() string {
	return g.game.FEN()
}

func (g *chessGame) SideToMove() Color {
	return colorOf(g.game.Position().Turn())
}

func (g *chessGame) Apply(move string) (Step, error) {
	move = strings.TrimSpace(move)
	if move == "" {
		return Step{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}

	pos := g.game.Position()
	var san string
	if decoded, err := (nchess.UCINotation{}).Decode(pos, strings.ToLower(move)); err == nil {
		if err := g.game.Move(decoded, nil); err != nil {
			return Step{}, fmt.Errorf("%w: %s", ErrIllegalMove, move)
		}
		san = nchess.AlgebraicNotation{}.Encode(pos, decoded)
	} else {
		if err := g.game.PushNotationMove(move, nchess.AlgebraicNotation{}, nil); err != nil {
			return Step{}, fmt.Errorf("%w: %s", ErrIllegalMove, move)
		}
		applied := g.game.Moves()
		san = nchess.AlgebraicNotation{}.Encode(pos, applied[len(applied)-1])
	}

	g.claimEligibleDraw()

	return Step{
		Position:   g.game.FEN(),
		SAN:        san,
		InCheck:    strings.ContainsAny(san, "+#"),
		SideToMove: colorOf(g.game.Position().Turn()),
		Status:     g.status(),
	}, nil
}

// claimEligibleDraw converts claimable draws into outcomes, mirroring rule
// sets where repetition and fifty-move draws end the game without a claim.
func (g *chessGame) claimEligibleDraw() {
	if g.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, method := range g.game.EligibleDraws() {
		if method == nchess.ThreefoldRepetition || method == nchess.FiftyMoveRule {
			_ = g.game.Draw(method)
			return
		}
	}
}

func (g *chessGame) status() Status {
	if g.game.Outcome() == nchess.NoOutcome {
		return Ongoing
	}
	switch g.game.Method() {
	case nchess.Checkmate:
		return Checkmate
	case nchess.Stalemate:
		return Stalemate
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return ThreefoldRepetition
	case nchess.InsufficientMaterial:
		return InsufficientMaterial
	default:
		return FiftyMoveRule
	}
}

func colorOf(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}

// Package rules defines the move-evaluation boundary for match sessions.
//
// The arena never inspects board mechanics itself: a session feeds proposed
// moves to an Adapter-created Game and acts on the reported step, including
// the terminal classification of the resulting position.
package rules

import "errors"

// Color identifies which side a position expects to move next.
type Color int

const (
	// White moves first.
	White Color = iota
	// Black moves second.
	Black
)

// String returns the lowercase color name.
func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Status classifies a position after a move has been applied.
type Status int

const (
	// Ongoing indicates the game continues.
	Ongoing Status = iota
	// Checkmate indicates the side to move has been mated.
	Checkmate
	// Stalemate indicates the side to move has no legal move and is not in check.
	Stalemate
	// ThreefoldRepetition indicates a draw by repeated position.
	ThreefoldRepetition
	// FiftyMoveRule indicates a draw by the fifty-move rule.
	FiftyMoveRule
	// InsufficientMaterial indicates a draw because neither side can mate.
	InsufficientMaterial
)

// Terminal reports whether the status ends the game.
func (s Status) Terminal() bool {
	return s != Ongoing
}

// ErrIllegalMove indicates the proposed move was rejected by the rules engine.
var ErrIllegalMove = errors.New("illegal move")

// Step is the adapter's report after an accepted move.
type Step struct {
	// Position is the updated position in FEN.
	Position string
	// SAN is the standard algebraic rendering of the applied move.
	SAN string
	// InCheck reports whether the side to move is now in check.
	InCheck bool
	// SideToMove is the color expected to move next.
	SideToMove Color
	// Status is the terminal classification of the updated position.
	Status Status
}

// Game is one evolving position owned by a single match session.
//
// Implementations are not safe for concurrent use; the owning session
// serializes access.
type Game interface {
	// Position returns the current position in FEN.
	Position() string
	// SideToMove returns the color expected to move next.
	SideToMove() Color
	// Apply validates and applies a proposed move (UCI or SAN). It returns
	// ErrIllegalMove when the rules engine rejects the move; the position is
	// unchanged in that case.
	Apply(move string) (Step, error)
}

// Adapter constructs rule-evaluating games from the standard start position.
type Adapter interface {
	NewGame() Game
}

// Package match owns the lifecycle of a single live match between two
// participants: move admission, termination, the rematch handshake, and
// delayed cleanup after the match ends.
package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/gambit.space/internal/services/arena/rules"
)

// Side identifies one of the two roles in a session.
type Side int

const (
	// SideFirst moves first (white).
	SideFirst Side = iota
	// SideSecond moves second (black).
	SideSecond
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideFirst {
		return SideSecond
	}
	return SideFirst
}

// String returns the wire label for the side.
func (s Side) String() string {
	if s == SideFirst {
		return "white"
	}
	return "black"
}

func (s Side) color() rules.Color {
	if s == SideFirst {
		return rules.White
	}
	return rules.Black
}

// Identity names a participant without any connection state.
type Identity struct {
	ID   string
	Name string
}

// Peer delivers outbound frames to one participant's live connection.
type Peer interface {
	Send(frameType string, payload any)
}

// Participant couples an identity with its live connection.
type Participant struct {
	Identity Identity
	Peer     Peer
}

// Status tracks the session lifecycle.
type Status int

const (
	// StatusActive admits moves.
	StatusActive Status = iota
	// StatusOver admits only the rematch handshake.
	StatusOver
)

// OutcomeType labels how a match ended.
type OutcomeType string

const (
	OutcomeCheckmate   OutcomeType = "checkmate"
	OutcomeResignation OutcomeType = "resignation"
	OutcomeAbandonment OutcomeType = "abandonment"
	OutcomeDraw        OutcomeType = "draw"
	OutcomeStalemate   OutcomeType = "stalemate"
)

// Outcome records how a match ended. Winner is nil for drawn outcomes.
type Outcome struct {
	Type   OutcomeType
	Winner *Side
	Reason string
}

// Owner receives session lifecycle callbacks. Callbacks run inside the
// serialized handler path and must not call back into the session.
type Owner interface {
	// NotifyEnded asks the owner to remove the session from its registry.
	NotifyEnded(id string)
	// NotifyResult reports a finished match for durable bookkeeping.
	NotifyResult(winnerID, loserID string, draw bool)
	// NotifyRematch hands both participants to the owner so it can build
	// a fresh session for them.
	NotifyRematch(first, second Participant)
}

// ScheduleFunc arms a deferred task and returns a cancel function that
// reports whether the task was stopped before firing.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func() bool)

// Config carries everything a session needs at creation time.
type Config struct {
	ID           string
	First        Participant
	Second       Participant
	Game         rules.Game
	Owner        Owner
	CleanupDelay time.Duration
	Schedule     ScheduleFunc
}

var (
	// ErrNotParticipant signals an action from someone outside the match.
	ErrNotParticipant = errors.New("not a participant of this match")
	// ErrMatchOver signals a gameplay action on a finished match.
	ErrMatchOver = errors.New("match is over")
	// ErrMatchActive signals a rematch action on a match still in play.
	ErrMatchActive = errors.New("match is still active")
	// ErrNotYourTurn signals a move from the side not on the move.
	ErrNotYourTurn = errors.New("not your turn")
)

// Session is one live match. All methods must be called from the
// serialized handler path; Session does no locking of its own.
type Session struct {
	id              string
	participants    [2]Participant
	game            rules.Game
	status          Status
	outcome         Outcome
	rematchProposer *Side
	cancelCleanup   func() bool
	owner           Owner
	cleanupDelay    time.Duration
	schedule        ScheduleFunc
}

// New builds a session in the Active state. Start must be called to
// announce it to both participants.
func New(cfg Config) (*Session, error) {
	if cfg.ID == "" {
		return nil, errors.New("session id is required")
	}
	if cfg.Game == nil {
		return nil, errors.New("game is required")
	}
	if cfg.Owner == nil {
		return nil, errors.New("owner is required")
	}
	if cfg.Schedule == nil {
		return nil, errors.New("schedule func is required")
	}
	return &Session{
		id:           cfg.ID,
		participants: [2]Participant{cfg.First, cfg.Second},
		game:         cfg.Game,
		status:       StatusActive,
		owner:        cfg.Owner,
		cleanupDelay: cfg.CleanupDelay,
		schedule:     cfg.Schedule,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() Status { return s.status }

// Outcome returns the recorded outcome. Meaningful only once Over.
func (s *Session) Outcome() Outcome { return s.outcome }

// Participant returns the participant playing the given side.
func (s *Session) Participant(side Side) Participant {
	return s.participants[side]
}

// SideOf resolves a participant id to its side.
func (s *Session) SideOf(userID string) (Side, bool) {
	for i, p := range s.participants {
		if p.Identity.ID == userID {
			return Side(i), true
		}
	}
	return 0, false
}

// Start announces the match to both participants, each with its own
// side and opponent.
func (s *Session) Start() {
	for i, p := range s.participants {
		side := Side(i)
		p.Peer.Send(FrameMatchStarted, StartedPayload{
			SessionID: s.id,
			Side:      side.String(),
			Opponent:  s.participants[side.Opponent()].Identity.Name,
			Position:  s.game.Position(),
		})
	}
}

// SubmitMove admits a move from the given participant. Rejections are
// delivered to the mover as a frame and returned as a named error; the
// position never changes on rejection.
func (s *Session) SubmitMove(userID, move string) error {
	side, ok := s.SideOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	if s.status != StatusActive {
		s.reject(side, "match is over")
		return ErrMatchOver
	}
	if s.game.SideToMove() != side.color() {
		s.reject(side, "not your turn")
		return ErrNotYourTurn
	}

	step, err := s.game.Apply(move)
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			s.reject(side, "illegal move")
			return fmt.Errorf("apply move: %w", err)
		}
		s.reject(side, "move could not be processed")
		return fmt.Errorf("apply move: %w", err)
	}

	s.broadcast(FramePositionUpdate, PositionPayload{
		Position:   step.Position,
		SideToMove: colorLabel(step.SideToMove),
		InCheck:    step.InCheck,
	})

	if step.Status.Terminal() {
		s.end(outcomeFromStatus(step.Status, side))
	}
	return nil
}

// Resign ends the match with the opponent as winner. A resignation on a
// finished match is a no-op.
func (s *Session) Resign(userID string) error {
	side, ok := s.SideOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	if s.status != StatusActive {
		return nil
	}
	winner := side.Opponent()
	s.end(Outcome{Type: OutcomeResignation, Winner: &winner, Reason: "resignation"})
	return nil
}

// HandleDisconnect reacts to a participant's connection loss. During
// play the opponent wins by abandonment. After the match it withdraws
// a pending rematch offer from the dropped side and tears the session
// down immediately.
func (s *Session) HandleDisconnect(userID string) {
	side, ok := s.SideOf(userID)
	if !ok {
		return
	}
	if s.status == StatusActive {
		winner := side.Opponent()
		s.end(Outcome{Type: OutcomeAbandonment, Winner: &winner, Reason: "abandonment"})
		return
	}
	if s.rematchProposer != nil && *s.rematchProposer == side {
		s.participants[side.Opponent()].Peer.Send(FrameRematchWithdrawn, struct{}{})
		s.rematchProposer = nil
	}
	s.stopCleanup()
	s.owner.NotifyEnded(s.id)
}

// ProposeRematch records a rematch offer and notifies the other side.
// The pending cleanup timer is cancelled so the session survives until
// the offer resolves.
func (s *Session) ProposeRematch(userID string) error {
	side, ok := s.SideOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	if s.status != StatusOver {
		return ErrMatchActive
	}
	s.stopCleanup()
	s.rematchProposer = &side
	s.participants[side.Opponent()].Peer.Send(FrameRematchOffered, struct{}{})
	return nil
}

// AcceptRematch completes the handshake when the accepter is not the
// proposer. Both participants are handed to the owner for a fresh
// session and this one is removed. Accepting without a matching offer
// is a no-op.
func (s *Session) AcceptRematch(userID string) error {
	side, ok := s.SideOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	if s.status != StatusOver {
		return ErrMatchActive
	}
	if s.rematchProposer == nil || *s.rematchProposer == side {
		return nil
	}
	s.rematchProposer = nil
	s.stopCleanup()
	s.owner.NotifyRematch(s.participants[SideFirst], s.participants[SideSecond])
	s.owner.NotifyEnded(s.id)
	return nil
}

// end transitions Active to Over exactly once. Later calls are no-ops.
func (s *Session) end(outcome Outcome) {
	if s.status == StatusOver {
		return
	}
	s.status = StatusOver
	s.outcome = outcome

	winner := ""
	if outcome.Winner != nil {
		winner = s.participants[*outcome.Winner].Identity.Name
	}
	s.broadcast(FrameMatchOver, OverPayload{
		Outcome:       string(outcome.Type),
		Winner:        winner,
		Reason:        outcome.Reason,
		FinalPosition: s.game.Position(),
	})

	if outcome.Winner != nil {
		w := s.participants[*outcome.Winner].Identity.ID
		l := s.participants[outcome.Winner.Opponent()].Identity.ID
		s.owner.NotifyResult(w, l, false)
	} else {
		s.owner.NotifyResult(
			s.participants[SideFirst].Identity.ID,
			s.participants[SideSecond].Identity.ID,
			true,
		)
	}

	s.cancelCleanup = s.schedule(s.cleanupDelay, func() {
		s.owner.NotifyEnded(s.id)
	})
}

func (s *Session) stopCleanup() {
	if s.cancelCleanup != nil {
		s.cancelCleanup()
		s.cancelCleanup = nil
	}
}

func (s *Session) reject(side Side, reason string) {
	s.participants[side].Peer.Send(FrameMoveRejected, RejectedPayload{Reason: reason})
}

func (s *Session) broadcast(frameType string, payload any) {
	for _, p := range s.participants {
		p.Peer.Send(frameType, payload)
	}
}

func outcomeFromStatus(status rules.Status, mover Side) Outcome {
	switch status {
	case rules.Checkmate:
		winner := mover
		return Outcome{Type: OutcomeCheckmate, Winner: &winner, Reason: "checkmate"}
	case rules.Stalemate:
		return Outcome{Type: OutcomeStalemate, Reason: "stalemate"}
	case rules.ThreefoldRepetition:
		return Outcome{Type: OutcomeDraw, Reason: "threefold repetition"}
	case rules.FiftyMoveRule:
		return Outcome{Type: OutcomeDraw, Reason: "fifty-move rule"}
	case rules.InsufficientMaterial:
		return Outcome{Type: OutcomeDraw, Reason: "insufficient material"}
	default:
		return Outcome{Type: OutcomeDraw, Reason: "draw"}
	}
}

func colorLabel(c rules.Color) string {
	if c == rules.White {
		return "white"
	}
	return "black"
}

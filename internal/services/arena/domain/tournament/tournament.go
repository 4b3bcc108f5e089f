// Package tournament runs a Swiss-style multi-round tournament: a
// bounded player pool, score-sorted greedy pairing with a
// no-repeat-opponent constraint, byes for unpairable players, and
// round advancement once every pairing has a result.
package tournament

import (
	"errors"
	"log"
	"sort"

	"github.com/louisbranch/gambit.space/internal/services/arena/domain/match"
)

// Scoring policy. A bye is worth a full win.
const (
	WinScore  = 1.0
	DrawScore = 0.5
	ByeScore  = 1.0
)

// Defaults applied when Config leaves them zero.
const (
	DefaultCapacity = 8
	DefaultRounds   = 3
)

// Status tracks the tournament lifecycle. Transitions are monotonic.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

var (
	// ErrFull rejects a join once capacity is reached.
	ErrFull = errors.New("tournament is full")
	// ErrAlreadyJoined rejects a second join by the same identity.
	ErrAlreadyJoined = errors.New("already joined")
	// ErrAlreadyStarted rejects joins and starts after kickoff.
	ErrAlreadyStarted = errors.New("tournament already started")
	// ErrInsufficientPlayers rejects a start with fewer than two players.
	ErrInsufficientPlayers = errors.New("insufficient players")
	// ErrNotPlaying rejects result reports outside a running round.
	ErrNotPlaying = errors.New("tournament is not in play")
	// ErrUnknownPairing rejects a result that matches no open pairing.
	ErrUnknownPairing = errors.New("no open pairing for this result")
	// ErrNotInPairing rejects a report from someone outside the pairing.
	ErrNotInPairing = errors.New("reporter is not part of this pairing")
)

// Player is one tournament entrant with its accumulated score and the
// opponents it has already faced.
type Player struct {
	Participant match.Participant
	Score       float64
	faced       map[string]bool
	joinOrder   int
}

// Result records the outcome of one pairing.
type Result struct {
	WinnerID string
	LoserID  string
	Draw     bool
}

// Pairing is one scheduled match-up within a round. Second is nil and
// Bye is set when the player could not be paired.
type Pairing struct {
	First     *Player
	Second    *Player
	Bye       bool
	SessionID string
	Result    *Result
}

func (p *Pairing) open() bool {
	return !p.Bye && p.Result == nil
}

// Round is one completed or in-progress pairing pass.
type Round struct {
	Number   int
	Pairings []*Pairing
}

// StartMatch builds a live session for a pairing and returns its id.
// An error means the pairing is skipped for this round.
type StartMatch func(first, second match.Participant) (sessionID string, err error)

// Config carries the tournament collaborators and bounds.
type Config struct {
	Capacity   int
	Rounds     int
	StartMatch StartMatch
	// OnChange fires after every state mutation so the owner can
	// broadcast the public state. Optional.
	OnChange func()
	// Logf receives pairing failures. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Tournament owns the player pool, the round history, and the pairing
// computation. Callers serialize access; it does no locking of its own.
type Tournament struct {
	capacity    int
	totalRounds int
	status      Status
	players     map[string]*Player
	joinSeq     int
	rounds      []*Round
	startMatch  StartMatch
	onChange    func()
	logf        func(format string, args ...any)
}

// New builds an empty tournament in the Waiting state.
func New(cfg Config) (*Tournament, error) {
	if cfg.StartMatch == nil {
		return nil, errors.New("start match func is required")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Rounds == 0 {
		cfg.Rounds = DefaultRounds
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func() {}
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Tournament{
		capacity:    cfg.Capacity,
		totalRounds: cfg.Rounds,
		status:      StatusWaiting,
		players:     make(map[string]*Player),
		startMatch:  cfg.StartMatch,
		onChange:    cfg.OnChange,
		logf:        cfg.Logf,
	}, nil
}

// Status returns the current lifecycle state.
func (t *Tournament) Status() Status { return t.status }

// Join registers a participant while the tournament is still waiting.
func (t *Tournament) Join(p match.Participant) error {
	if t.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(t.players) >= t.capacity {
		return ErrFull
	}
	if _, ok := t.players[p.Identity.ID]; ok {
		return ErrAlreadyJoined
	}
	t.joinSeq++
	t.players[p.Identity.ID] = &Player{
		Participant: p,
		faced:       make(map[string]bool),
		joinOrder:   t.joinSeq,
	}
	t.onChange()
	return nil
}

// Leave removes a player from the pool. During play this is
// bookkeeping only; completed rounds keep their recorded pairings.
func (t *Tournament) Leave(userID string) bool {
	if _, ok := t.players[userID]; !ok {
		return false
	}
	delete(t.players, userID)
	t.onChange()
	return true
}

// Start moves the tournament into play and computes the first round.
func (t *Tournament) Start() error {
	if t.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(t.players) < 2 {
		return ErrInsufficientPlayers
	}
	t.status = StatusPlaying
	t.pairRound()
	return nil
}

// ReportResult records the outcome of an open pairing in the current
// round. The reporter must be one of the two named identities.
func (t *Tournament) ReportResult(reporterID string, result Result) error {
	if t.status != StatusPlaying {
		return ErrNotPlaying
	}
	if reporterID != result.WinnerID && reporterID != result.LoserID {
		return ErrNotInPairing
	}
	pairing := t.findOpenPairing(result.WinnerID, result.LoserID)
	if pairing == nil {
		return ErrUnknownPairing
	}

	res := result
	pairing.Result = &res
	if winner, ok := t.players[result.WinnerID]; ok {
		if result.Draw {
			winner.Score += DrawScore
		} else {
			winner.Score += WinScore
		}
	}
	if loser, ok := t.players[result.LoserID]; ok && result.Draw {
		loser.Score += DrawScore
	}

	t.advanceIfRoundComplete()
	t.onChange()
	return nil
}

func (t *Tournament) findOpenPairing(aID, bID string) *Pairing {
	if len(t.rounds) == 0 {
		return nil
	}
	round := t.rounds[len(t.rounds)-1]
	for _, pairing := range round.Pairings {
		if !pairing.open() {
			continue
		}
		first := pairing.First.Participant.Identity.ID
		second := pairing.Second.Participant.Identity.ID
		if (first == aID && second == bID) || (first == bID && second == aID) {
			return pairing
		}
	}
	return nil
}

// pairRound computes the next round: players sorted by score
// descending with join order breaking ties, paired greedily against
// the first unassigned opponent they have not yet faced.
func (t *Tournament) pairRound() {
	sorted := t.sortedPlayers()
	assigned := make(map[string]bool, len(sorted))
	round := &Round{Number: len(t.rounds) + 1}

	for i, player := range sorted {
		id := player.Participant.Identity.ID
		if assigned[id] {
			continue
		}

		var opponent *Player
		for _, candidate := range sorted[i+1:] {
			candidateID := candidate.Participant.Identity.ID
			if assigned[candidateID] || player.faced[candidateID] {
				continue
			}
			opponent = candidate
			break
		}

		if opponent == nil {
			player.Score += ByeScore
			assigned[id] = true
			round.Pairings = append(round.Pairings, &Pairing{First: player, Bye: true})
			continue
		}

		opponentID := opponent.Participant.Identity.ID
		assigned[id] = true
		assigned[opponentID] = true

		sessionID, err := t.startMatch(player.Participant, opponent.Participant)
		if err != nil {
			// Skipped pairing: no score or history effects, both
			// players sit the round out and can be re-paired next
			// round.
			t.logf("arena: tournament pairing skipped round=%d players=%s,%s err=%v",
				round.Number, id, opponentID, err)
			continue
		}

		player.faced[opponentID] = true
		opponent.faced[id] = true
		round.Pairings = append(round.Pairings, &Pairing{
			First:     player,
			Second:    opponent,
			SessionID: sessionID,
		})
	}

	t.rounds = append(t.rounds, round)
	t.advanceIfRoundComplete()
	t.onChange()
}

// advanceIfRoundComplete moves to the next round, or finishes the
// tournament, once every pairing of the current round is resolved.
func (t *Tournament) advanceIfRoundComplete() {
	if t.status != StatusPlaying || len(t.rounds) == 0 {
		return
	}
	round := t.rounds[len(t.rounds)-1]
	for _, pairing := range round.Pairings {
		if pairing.open() {
			return
		}
	}
	if len(t.rounds) >= t.totalRounds {
		t.status = StatusFinished
		t.onChange()
		return
	}
	t.pairRound()
}

func (t *Tournament) sortedPlayers() []*Player {
	sorted := make([]*Player, 0, len(t.players))
	for _, player := range t.players {
		sorted = append(sorted, player)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].joinOrder < sorted[j].joinOrder
	})
	return sorted
}

// Package server hosts the arena process: the serialized match
// orchestration core, its websocket transport, and the account HTTP
// API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/louisbranch/gambit.space/internal/random"
	"github.com/louisbranch/gambit.space/internal/services/arena/domain/match"
	"github.com/louisbranch/gambit.space/internal/services/arena/domain/queue"
	"github.com/louisbranch/gambit.space/internal/services/arena/domain/tournament"
	"github.com/louisbranch/gambit.space/internal/services/arena/rules"
	"github.com/louisbranch/gambit.space/internal/services/arena/storage"
)

// ErrUnknownSession signals an action against a session id that is not
// live.
var ErrUnknownSession = errors.New("unknown session")

// errConnectionGone aborts a tournament pairing whose participant
// dropped between rounds.
var errConnectionGone = errors.New("participant connection is gone")

const resultSinkTimeout = 5 * time.Second

// ServiceConfig carries the collaborators of the orchestration core.
type ServiceConfig struct {
	Rules        rules.Adapter
	Sink         storage.ResultSink
	NewID        func() (string, error)
	CleanupDelay time.Duration
	// TournamentCapacity and TournamentRounds fall back to the
	// tournament package defaults when zero.
	TournamentCapacity int
	TournamentRounds   int
	// Rand decides side assignment coin flips. Defaults to a
	// crypto-seeded source.
	Rand *rand.Rand
}

// Service is the single serialized handler for every inbound event.
// One coarse mutex guards the session registry, the matchmaking
// queue, and the tournament as a unit; finer locking would invite
// pairing races.
type Service struct {
	mu           sync.Mutex
	sessions     *match.Registry
	queue        *queue.Queue
	tour         *tournament.Tournament
	peers        map[string]match.Peer
	names        map[string]string
	adapter      rules.Adapter
	sink         storage.ResultSink
	newID        func() (string, error)
	rng          *rand.Rand
	cleanupDelay time.Duration
}

// NewService wires the orchestration core.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Rules == nil {
		return nil, errors.New("rules adapter is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("result sink is required")
	}
	if cfg.NewID == nil {
		return nil, errors.New("id generator is required")
	}
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = 20 * time.Second
	}
	if cfg.Rand == nil {
		rng, err := random.NewRand()
		if err != nil {
			return nil, fmt.Errorf("seed rng: %w", err)
		}
		cfg.Rand = rng
	}

	s := &Service{
		sessions:     match.NewRegistry(),
		queue:        queue.New(),
		peers:        make(map[string]match.Peer),
		names:        make(map[string]string),
		adapter:      cfg.Rules,
		sink:         cfg.Sink,
		newID:        cfg.NewID,
		rng:          cfg.Rand,
		cleanupDelay: cfg.CleanupDelay,
	}

	tour, err := tournament.New(tournament.Config{
		Capacity:   cfg.TournamentCapacity,
		Rounds:     cfg.TournamentRounds,
		StartMatch: s.startTournamentMatch,
		OnChange:   s.broadcastTournamentLocked,
		Logf:       log.Printf,
	})
	if err != nil {
		return nil, fmt.Errorf("init tournament: %w", err)
	}
	s.tour = tour
	return s, nil
}

// Connect registers a live connection for a participant.
func (s *Service) Connect(userID, name string, peer match.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[userID] = peer
	s.names[userID] = name
}

// Disconnect tears down everything tied to a dropped connection: the
// queue entry, any live sessions, and the tournament seat while it is
// still waiting.
func (s *Service) Disconnect(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.peers, userID)
	delete(s.names, userID)
	s.queue.Remove(userID)
	if s.tour.Status() == tournament.StatusWaiting {
		s.tour.Leave(userID)
	}
	for _, session := range s.sessions.FindByParticipant(userID) {
		session.HandleDisconnect(userID)
	}
}

// FindMatch enqueues the caller and starts a match as soon as two
// participants are waiting.
func (s *Service) FindMatch(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, err := s.participantLocked(userID)
	if err != nil {
		return err
	}
	s.queue.Enqueue(participant)

	first, second, ok := s.queue.PopPair()
	if !ok {
		return nil
	}
	if _, err := s.createSessionLocked(first, second); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CancelFindMatch removes the caller from the queue.
func (s *Service) CancelFindMatch(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Remove(userID)
}

// SubmitMove forwards a move to the identified session.
func (s *Service) SubmitMove(userID, sessionID, move string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return session.SubmitMove(userID, move)
}

// Resign forwards a resignation to the identified session.
func (s *Service) Resign(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return session.Resign(userID)
}

// RematchPropose forwards a rematch offer to the identified session.
func (s *Service) RematchPropose(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return session.ProposeRematch(userID)
}

// RematchAccept forwards a rematch acceptance to the identified session.
func (s *Service) RematchAccept(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return session.AcceptRematch(userID)
}

// TournamentJoin seats the caller in the tournament pool.
func (s *Service) TournamentJoin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, err := s.participantLocked(userID)
	if err != nil {
		return err
	}
	return s.tour.Join(participant)
}

// TournamentLeave removes the caller from the tournament pool.
func (s *Service) TournamentLeave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tour.Leave(userID)
}

// TournamentStart kicks the tournament off.
func (s *Service) TournamentStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tour.Start()
}

// TournamentReport records a result reported by a participant.
func (s *Service) TournamentReport(reporterID, winnerID, loserID string, draw bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tour.ReportResult(reporterID, tournament.Result{
		WinnerID: winnerID,
		LoserID:  loserID,
		Draw:     draw,
	})
}

// TournamentState returns the public tournament projection.
func (s *Service) TournamentState() tournament.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tour.PublicState()
}

// NotifyEnded removes a finished session from the registry.
// Owner callbacks run with the service mutex already held.
func (s *Service) NotifyEnded(id string) {
	s.sessions.Remove(id)
}

// NotifyResult forwards a finished match to the durable stats sink and,
// when the pairing belongs to the running tournament, to its standings.
// The sink call runs outside the serialized path since it mutates no
// in-process state.
func (s *Service) NotifyResult(winnerID, loserID string, draw bool) {
	if s.tour.Status() == tournament.StatusPlaying {
		err := s.tour.ReportResult(winnerID, tournament.Result{
			WinnerID: winnerID,
			LoserID:  loserID,
			Draw:     draw,
		})
		if err != nil && !errors.Is(err, tournament.ErrUnknownPairing) {
			log.Printf("arena: tournament result rejected winner=%s loser=%s err=%v", winnerID, loserID, err)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultSinkTimeout)
		defer cancel()
		if err := s.sink.RecordResult(ctx, winnerID, loserID, draw); err != nil {
			log.Printf("arena: record result winner=%s loser=%s err=%v", winnerID, loserID, err)
		}
	}()
}

// NotifyRematch builds a fresh session for two participants who agreed
// to play again. Sides are re-drawn by coin flip.
func (s *Service) NotifyRematch(first, second match.Participant) {
	if _, err := s.createSessionLocked(first, second); err != nil {
		log.Printf("arena: rematch session failed players=%s,%s err=%v",
			first.Identity.ID, second.Identity.ID, err)
	}
}

// startTournamentMatch is the tournament's session factory. It runs
// with the service mutex held, via the serialized tournament calls.
func (s *Service) startTournamentMatch(first, second match.Participant) (string, error) {
	for _, p := range []match.Participant{first, second} {
		if _, ok := s.peers[p.Identity.ID]; !ok {
			return "", fmt.Errorf("%w: %s", errConnectionGone, p.Identity.ID)
		}
	}
	return s.createSessionLocked(first, second)
}

// createSessionLocked builds a session with a uniformly random side
// assignment, registers it, and announces it to both participants.
func (s *Service) createSessionLocked(first, second match.Participant) (string, error) {
	if s.rng.Intn(2) == 1 {
		first, second = second, first
	}

	sessionID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	session, err := match.New(match.Config{
		ID:           sessionID,
		First:        first,
		Second:       second,
		Game:         s.adapter.NewGame(),
		Owner:        s,
		CleanupDelay: s.cleanupDelay,
		Schedule:     s.schedule,
	})
	if err != nil {
		return "", err
	}
	if err := s.sessions.Add(session); err != nil {
		return "", err
	}
	session.Start()
	return session.ID(), nil
}

// schedule defers a task onto the serialized path: the fired callback
// re-acquires the service mutex before touching any shared state.
func (s *Service) schedule(d time.Duration, fn func()) func() bool {
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn()
	})
	return timer.Stop
}

// broadcastTournamentLocked pushes the public tournament state to every
// connected participant. Runs with the service mutex held.
func (s *Service) broadcastTournamentLocked() {
	state := s.tour.PublicState()
	for _, peer := range s.peers {
		peer.Send("tournament_state", state)
	}
}

// participantLocked resolves a connected user into a participant.
func (s *Service) participantLocked(userID string) (match.Participant, error) {
	peer, ok := s.peers[userID]
	if !ok {
		return match.Participant{}, fmt.Errorf("%w: %s", errConnectionGone, userID)
	}
	return match.Participant{
		Identity: match.Identity{ID: userID, Name: s.names[userID]},
		Peer:     peer,
	}, nil
}

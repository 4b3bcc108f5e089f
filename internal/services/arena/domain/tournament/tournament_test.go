package tournament

import (
	"errors"
	"fmt"
	"testing"

	"github.com/louisbranch/gambit.space/internal/services/arena/domain/match"
)

type startedPair struct {
	first  string
	second string
}

// fakeMatcher records pairing attempts and can fail selected pairs.
type fakeMatcher struct {
	started []startedPair
	fail    map[startedPair]bool
	seq     int
}

func newFakeMatcher() *fakeMatcher {
	return &fakeMatcher{fail: make(map[startedPair]bool)}
}

func (m *fakeMatcher) start(first, second match.Participant) (string, error) {
	pair := startedPair{first.Identity.ID, second.Identity.ID}
	m.started = append(m.started, pair)
	if m.fail[pair] {
		return "", errors.New("connection gone")
	}
	m.seq++
	return fmt.Sprintf("session-%d", m.seq), nil
}

func participant(id string) match.Participant {
	return match.Participant{Identity: match.Identity{ID: id, Name: id}}
}

func newTournament(t *testing.T, matcher *fakeMatcher, rounds int) *Tournament {
	t.Helper()
	tour, err := New(Config{
		Rounds:     rounds,
		StartMatch: matcher.start,
		Logf:       func(string, ...any) {},
	})
	if err != nil {
		t.Fatalf("new tournament: %v", err)
	}
	return tour
}

func join(t *testing.T, tour *Tournament, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := tour.Join(participant(id)); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
}

func scoreOf(t *testing.T, tour *Tournament, id string) float64 {
	t.Helper()
	for _, p := range tour.PublicState().Standings {
		if p.ID == id {
			return p.Score
		}
	}
	t.Fatalf("player %s not in standings", id)
	return 0
}

func TestJoinRejections(t *testing.T) {
	tour, err := New(Config{Capacity: 2, StartMatch: newFakeMatcher().start})
	if err != nil {
		t.Fatalf("new tournament: %v", err)
	}
	join(t, tour, "a")

	if err := tour.Join(participant("a")); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
	join(t, tour, "b")
	if err := tour.Join(participant("c")); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tour.Join(participant("c")); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	tour := newTournament(t, newFakeMatcher(), 3)
	join(t, tour, "a", "b")
	if !tour.Leave("b") {
		t.Fatal("expected leave to remove b")
	}

	if err := tour.Start(); !errors.Is(err, ErrInsufficientPlayers) {
		t.Fatalf("expected ErrInsufficientPlayers, got %v", err)
	}
	if tour.Status() != StatusWaiting {
		t.Fatalf("failed start must leave status waiting, got %v", tour.Status())
	}
}

func TestFirstRoundPairsByJoinOrder(t *testing.T) {
	matcher := newFakeMatcher()
	tour := newTournament(t, matcher, 3)
	join(t, tour, "a", "b", "c", "d")

	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	want := []startedPair{{"a", "b"}, {"c", "d"}}
	if len(matcher.started) != 2 || matcher.started[0] != want[0] || matcher.started[1] != want[1] {
		t.Fatalf("expected pairs %v, got %v", want, matcher.started)
	}
}

func TestSwissScenarioFourPlayers(t *testing.T) {
	matcher := newFakeMatcher()
	tour := newTournament(t, matcher, 3)
	join(t, tour, "a", "b", "c", "d")
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := tour.ReportResult("a", Result{WinnerID: "a", LoserID: "b"}); err != nil {
		t.Fatalf("report a beats b: %v", err)
	}
	if err := tour.ReportResult("c", Result{WinnerID: "c", LoserID: "d", Draw: true}); err != nil {
		t.Fatalf("report c draws d: %v", err)
	}

	for id, want := range map[string]float64{"a": 1, "b": 0, "c": 0.5, "d": 0.5} {
		if got := scoreOf(t, tour, id); got != want {
			t.Fatalf("score of %s = %v, want %v", id, got, want)
		}
	}

	// Round two must not repeat round one's pairings.
	round2 := matcher.started[2:]
	if len(round2) != 2 {
		t.Fatalf("expected 2 pairings in round 2, got %v", round2)
	}
	for _, pair := range round2 {
		if pair == (startedPair{"a", "b"}) || pair == (startedPair{"b", "a"}) ||
			pair == (startedPair{"c", "d"}) || pair == (startedPair{"d", "c"}) {
			t.Fatalf("round 2 repeated a round 1 pairing: %v", round2)
		}
	}
	// The leader pairs down against the best score not yet faced.
	if round2[0].first != "a" || round2[0].second != "c" {
		t.Fatalf("expected leader pairing a,c; got %v", round2[0])
	}
}

func TestNoRepeatOpponentsAcrossRounds(t *testing.T) {
	matcher := newFakeMatcher()
	tour := newTournament(t, matcher, 3)
	join(t, tour, "a", "b", "c", "d")
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Drive all three rounds with decisive results.
	for tour.Status() == StatusPlaying {
		state := tour.PublicState()
		reported := false
		for _, pairing := range state.Pairings {
			if pairing.Result != "" || pairing.Bye {
				continue
			}
			err := tour.ReportResult(pairing.First, Result{WinnerID: pairing.First, LoserID: pairing.Second})
			if err != nil {
				t.Fatalf("report %s beats %s: %v", pairing.First, pairing.Second, err)
			}
			reported = true
			break
		}
		if !reported {
			break
		}
	}

	seen := make(map[startedPair]bool)
	for _, pair := range matcher.started {
		key := pair
		if key.second < key.first {
			key = startedPair{key.second, key.first}
		}
		if seen[key] {
			t.Fatalf("pairing %v repeated across rounds: %v", key, matcher.started)
		}
		seen[key] = true
	}
}

func TestUnpairablePlayerGetsBye(t *testing.T) {
	matcher := newFakeMatcher()
	tour := newTournament(t, matcher, 3)
	join(t, tour, "a", "b", "c")
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := scoreOf(t, tour, "c"); got != ByeScore {
		t.Fatalf("bye score = %v, want %v", got, ByeScore)
	}
	state := tour.PublicState()
	foundBye := false
	for _, pairing := range state.Pairings {
		if pairing.Bye && pairing.First == "c" {
			foundBye = true
		}
	}
	if !foundBye {
		t.Fatalf("expected a bye pairing for c, got %+v", state.Pairings)
	}
}

func TestSkippedPairingLeavesNoTrace(t *testing.T) {
	matcher := newFakeMatcher()
	matcher.fail[startedPair{"a", "b"}] = true
	tour := newTournament(t, matcher, 3)
	join(t, tour, "a", "b", "c", "d")
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := scoreOf(t, tour, "a"); got != 0 {
		t.Fatalf("skipped player a scored %v, want 0", got)
	}
	if got := scoreOf(t, tour, "b"); got != 0 {
		t.Fatalf("skipped player b scored %v, want 0", got)
	}
	state := tour.PublicState()
	if len(state.Pairings) != 1 || state.Pairings[0].First != "c" {
		t.Fatalf("expected only the c,d pairing recorded, got %+v", state.Pairings)
	}

	// Finishing round one re-pairs both skipped players since no
	// opponent history was recorded for them.
	matcher.fail = map[startedPair]bool{}
	if err := tour.ReportResult("c", Result{WinnerID: "c", LoserID: "d"}); err != nil {
		t.Fatalf("report: %v", err)
	}
	round2 := matcher.started[2:]
	paired := make(map[string]bool)
	for _, pair := range round2 {
		paired[pair.first] = true
		paired[pair.second] = true
	}
	if !paired["a"] || !paired["b"] {
		t.Fatalf("skipped players were not re-paired in round 2: %v", round2)
	}
}

func TestReportResultValidation(t *testing.T) {
	matcher := newFakeMatcher()
	tour := newTournament(t, matcher, 3)

	if err := tour.ReportResult("a", Result{WinnerID: "a", LoserID: "b"}); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying, got %v", err)
	}

	join(t, tour, "a", "b", "c", "d")
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := tour.ReportResult("c", Result{WinnerID: "a", LoserID: "b"}); !errors.Is(err, ErrNotInPairing) {
		t.Fatalf("expected ErrNotInPairing, got %v", err)
	}
	if err := tour.ReportResult("a", Result{WinnerID: "a", LoserID: "c"}); !errors.Is(err, ErrUnknownPairing) {
		t.Fatalf("expected ErrUnknownPairing, got %v", err)
	}
	if got := scoreOf(t, tour, "a"); got != 0 {
		t.Fatalf("rejected report must not change scores, got %v", got)
	}

	if err := tour.ReportResult("a", Result{WinnerID: "a", LoserID: "b"}); err != nil {
		t.Fatalf("valid report: %v", err)
	}
	if err := tour.ReportResult("a", Result{WinnerID: "a", LoserID: "b"}); !errors.Is(err, ErrUnknownPairing) {
		t.Fatalf("second report on same pairing must fail, got %v", err)
	}
}

func TestTournamentFinishesAfterConfiguredRounds(t *testing.T) {
	matcher := newFakeMatcher()
	tour := newTournament(t, matcher, 2)
	join(t, tour, "a", "b")
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := tour.ReportResult("a", Result{WinnerID: "a", LoserID: "b"}); err != nil {
		t.Fatalf("round 1 report: %v", err)
	}
	// Round two pairs nobody (a and b already faced) so both get byes
	// and the tournament finishes immediately.
	if tour.Status() != StatusFinished {
		t.Fatalf("expected finished, got %v", tour.Status())
	}
	if got := scoreOf(t, tour, "a"); got != WinScore+ByeScore {
		t.Fatalf("score of a = %v, want %v", got, WinScore+ByeScore)
	}
	state := tour.PublicState()
	if state.Standings[0].ID != "a" {
		t.Fatalf("expected a on top of standings, got %+v", state.Standings)
	}
}

func TestOnChangeFires(t *testing.T) {
	matcher := newFakeMatcher()
	changes := 0
	tour, err := New(Config{
		StartMatch: matcher.start,
		OnChange:   func() { changes++ },
		Logf:       func(string, ...any) {},
	})
	if err != nil {
		t.Fatalf("new tournament: %v", err)
	}

	join(t, tour, "a", "b")
	if changes == 0 {
		t.Fatal("join did not fire onChange")
	}
	before := changes
	if err := tour.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if changes <= before {
		t.Fatal("start did not fire onChange")
	}
}

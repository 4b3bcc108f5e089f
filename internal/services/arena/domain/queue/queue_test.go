package queue

import (
	"testing"

	"github.com/louisbranch/gambit.space/internal/services/arena/domain/match"
)

func participant(id string) match.Participant {
	return match.Participant{Identity: match.Identity{ID: id, Name: id}}
}

func TestPopPairReturnsOldestTwoInOrder(t *testing.T) {
	q := New()
	q.Enqueue(participant("a"))
	q.Enqueue(participant("b"))
	q.Enqueue(participant("c"))

	first, second, ok := q.PopPair()
	if !ok {
		t.Fatal("expected a pair")
	}
	if first.Identity.ID != "a" || second.Identity.ID != "b" {
		t.Fatalf("expected oldest pair a,b; got %s,%s", first.Identity.ID, second.Identity.ID)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", q.Len())
	}
}

func TestPopPairNeedsTwoEntries(t *testing.T) {
	q := New()
	if _, _, ok := q.PopPair(); ok {
		t.Fatal("empty queue must not produce a pair")
	}
	q.Enqueue(participant("a"))
	if _, _, ok := q.PopPair(); ok {
		t.Fatal("single entry must not produce a pair")
	}
	if q.Len() != 1 {
		t.Fatalf("failed pop must leave queue untouched, got %d", q.Len())
	}
}

func TestEnqueueMovesExistingEntryToBack(t *testing.T) {
	q := New()
	q.Enqueue(participant("a"))
	q.Enqueue(participant("b"))
	q.Enqueue(participant("a"))

	if q.Len() != 2 {
		t.Fatalf("re-enqueue must not duplicate, got len %d", q.Len())
	}
	first, second, _ := q.PopPair()
	if first.Identity.ID != "b" || second.Identity.ID != "a" {
		t.Fatalf("expected b,a after re-enqueue; got %s,%s", first.Identity.ID, second.Identity.ID)
	}
}

func TestRemove(t *testing.T) {
	q := New()
	q.Enqueue(participant("a"))
	q.Enqueue(participant("b"))

	if !q.Remove("a") {
		t.Fatal("expected removal of a")
	}
	if q.Remove("a") {
		t.Fatal("second removal must be a no-op")
	}
	if q.Contains("a") || !q.Contains("b") {
		t.Fatal("unexpected queue membership")
	}
}

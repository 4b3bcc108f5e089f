// Package queue holds the FIFO matchmaking waiting list. Pairing is
// strictly by arrival order; there is no skill matching.
package queue

import "github.com/louisbranch/gambit.space/internal/services/arena/domain/match"

// Queue is a FIFO of participants waiting for a match. Callers
// serialize access; the queue does no locking of its own.
type Queue struct {
	entries []match.Participant
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue adds a participant to the back of the queue. A participant
// already waiting is moved to the back, never duplicated.
func (q *Queue) Enqueue(p match.Participant) {
	q.Remove(p.Identity.ID)
	q.entries = append(q.entries, p)
}

// PopPair removes and returns the two longest-waiting participants.
// It reports false, leaving the queue untouched, when fewer than two
// are waiting.
func (q *Queue) PopPair() (match.Participant, match.Participant, bool) {
	if len(q.entries) < 2 {
		return match.Participant{}, match.Participant{}, false
	}
	first, second := q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	return first, second, true
}

// Remove drops a participant from the queue. It reports whether an
// entry was removed.
func (q *Queue) Remove(userID string) bool {
	for i, entry := range q.entries {
		if entry.Identity.ID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether a participant is waiting.
func (q *Queue) Contains(userID string) bool {
	for _, entry := range q.entries {
		if entry.Identity.ID == userID {
			return true
		}
	}
	return false
}

// Len reports the number of waiting participants.
func (q *Queue) Len() int {
	return len(q.entries)
}

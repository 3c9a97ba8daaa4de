package arena

import (
	"strings"
	"time"
)

// MatchPolicy decides which waiting entry a newcomer is paired with.
type MatchPolicy string

const (
	// PolicyClosest pairs with the smallest rating gap, earliest first on ties.
	PolicyClosest MatchPolicy = "closest"
	// PolicyFIFO pairs with the earliest queued entry.
	PolicyFIFO MatchPolicy = "fifo"
)

func ParseMatchPolicy(s string) MatchPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo", "earliest":
		return PolicyFIFO
	default:
		return PolicyClosest
	}
}

// queueEntry is a matchmaking request waiting for an opponent.
type queueEntry struct {
	Identity string
	Rating   int
	QueuedAt time.Time
	// LastSeen is refreshed whenever the owner polls its status.
	LastSeen time.Time
}

// matchQueue is not synchronized; the registry guards it.
type matchQueue struct {
	policy  MatchPolicy
	entries []queueEntry
}

func (q *matchQueue) index(identity string) int {
	for i, e := range q.entries {
		if e.Identity == identity {
			return i
		}
	}
	return -1
}

func (q *matchQueue) contains(identity string) bool { return q.index(identity) >= 0 }

// pick returns the index of the entry newcomer should play, or -1.
func (q *matchQueue) pick(newcomer queueEntry) int {
	best, bestGap := -1, 0
	for i, e := range q.entries {
		if e.Identity == newcomer.Identity {
			continue
		}
		if q.policy == PolicyFIFO {
			return i
		}
		gap := e.Rating - newcomer.Rating
		if gap < 0 {
			gap = -gap
		}
		// entries are in queue order, so strict < keeps the earliest on ties
		if best < 0 || gap < bestGap {
			best, bestGap = i, gap
		}
	}
	return best
}

func (q *matchQueue) push(e queueEntry) { q.entries = append(q.entries, e) }

func (q *matchQueue) removeAt(i int) queueEntry {
	e := q.entries[i]
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return e
}

func (q *matchQueue) remove(identity string) bool {
	i := q.index(identity)
	if i < 0 {
		return false
	}
	q.removeAt(i)
	return true
}

func (q *matchQueue) touch(identity string, now time.Time) bool {
	i := q.index(identity)
	if i < 0 {
		return false
	}
	q.entries[i].LastSeen = now
	return true
}

// expire drops entries not seen since cutoff and returns their identities.
func (q *matchQueue) expire(cutoff time.Time) []string {
	var dropped []string
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.LastSeen.Before(cutoff) {
			dropped = append(dropped, e.Identity)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return dropped
}

func (q *matchQueue) size() int { return len(q.entries) }

package app

import (
	"sync"
	"time"

	"flag-challenge-service/internal/domain"
)

// DailyTally is the live count of completed challenges for the current day.
type DailyTally struct {
	Date      string    `json:"date"`
	Completed int       `json:"completed"`
	Solved    int       `json:"solved"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompletionFeed fans daily completion tallies out to in-process
// subscribers (the websocket transport). Counters roll over when the
// challenge date changes.
type CompletionFeed struct {
	now func() time.Time

	mu          sync.Mutex
	date        string
	completed   int
	solved      int
	subscribers map[chan DailyTally]struct{}
}

func NewCompletionFeed() *CompletionFeed {
	return &CompletionFeed{
		now:         time.Now,
		subscribers: make(map[chan DailyTally]struct{}),
	}
}

// WithClock is a test hook for deterministic timestamps.
func (f *CompletionFeed) WithClock(now func() time.Time) *CompletionFeed {
	f.now = now
	return f
}

// Publish records one completed challenge outcome and broadcasts the new
// tally.
func (f *CompletionFeed) Publish(challengeDate time.Time, solved bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := domain.DateKey(challengeDate)
	if key != f.date {
		f.date = key
		f.completed = 0
		f.solved = 0
	}
	f.completed++
	if solved {
		f.solved++
	}
	f.broadcastLocked()
}

// Subscribe returns a channel of tally updates, primed with the current
// snapshot. The caller must invoke cancel to avoid leaks.
func (f *CompletionFeed) Subscribe() (<-chan DailyTally, func()) {
	ch := make(chan DailyTally, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	initial := f.snapshotLocked()
	f.mu.Unlock()

	ch <- initial

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *CompletionFeed) broadcastLocked() {
	tally := f.snapshotLocked()
	for ch := range f.subscribers {
		select {
		case ch <- tally:
		default:
			// Slow subscriber: replace its stale tally instead of blocking.
			select {
			case <-ch:
			default:
			}
			ch <- tally
		}
	}
}

func (f *CompletionFeed) snapshotLocked() DailyTally {
	return DailyTally{
		Date:      f.date,
		Completed: f.completed,
		Solved:    f.solved,
		UpdatedAt: f.now(),
	}
}

// Package scheduler turns a score into timed voice triggers against the
// transport. Events move from the score into a pending queue once they fall
// inside the lookahead horizon (Fill), then are dispatched when the playhead
// reaches them (Fire). The hand filter is consulted at dispatch, so a view
// change takes effect for notes that were queued before it.
package scheduler

import (
	"log"
	"sort"
	"time"

	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/transport"
	"github.com/schollz/keyfall/internal/types"
)

// DefaultLookahead is how far ahead of the playhead events are queued, in
// score time
const DefaultLookahead = 100 * time.Millisecond

// Trigger is the part of a voice the scheduler drives
type Trigger interface {
	TriggerAndRelease(name string, duration float64, at time.Time, velocity float64)
}

// Entry is one schedulable note
type Entry struct {
	Track      int
	Note       score.Note
	OnsetTicks float64
}

// Scheduler is not safe for concurrent use; the engine serializes access
type Scheduler struct {
	lookahead time.Duration
	baseTempo float64

	events  []Entry // sorted by onset ticks, then track
	cursor  int     // next event not yet queued
	pending []Entry // queued, not yet fired, in onset order

	generation uint64
}

// New creates an empty scheduler. A non-positive lookahead uses the default.
func New(lookahead time.Duration) *Scheduler {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Scheduler{
		lookahead: lookahead,
		baseTempo: score.DefaultTempo,
	}
}

// Lookahead returns the queueing horizon
func (s *Scheduler) Lookahead() time.Duration {
	return s.lookahead
}

// Schedule cancels everything and registers every note of sc. The cursor is
// placed at the first event at or after fromTicks.
func (s *Scheduler) Schedule(sc *score.Score, fromTicks float64) {
	s.Cancel()
	if sc == nil {
		return
	}
	s.baseTempo = sc.BaseTempo
	evs := sc.Events()
	s.events = make([]Entry, 0, len(evs))
	for _, ev := range evs {
		s.events = append(s.events, Entry{
			Track:      ev.Track,
			Note:       ev.Note,
			OnsetTicks: transport.SecondsToTicks(ev.Note.Onset, sc.BaseTempo),
		})
	}
	s.cursor = s.search(fromTicks)
	log.Printf("SCHED: scheduled %d events for %q (gen %d, cursor %d)", len(s.events), sc.Name, s.generation, s.cursor)
}

// Cancel drops the pending queue and the event list. Nothing registered
// before the call can fire after it.
func (s *Scheduler) Cancel() {
	s.generation++
	s.events = nil
	s.pending = nil
	s.cursor = 0
}

// Reposition clears pending events and moves the cursor to the first event
// at or after ticks. The registered events are kept.
func (s *Scheduler) Reposition(ticks float64) {
	s.pending = s.pending[:0]
	s.cursor = s.search(ticks)
	log.Printf("SCHED: reposition to %.1f ticks, cursor %d/%d", ticks, s.cursor, len(s.events))
}

func (s *Scheduler) search(ticks float64) int {
	return sort.Search(len(s.events), func(i int) bool {
		return s.events[i].OnsetTicks >= ticks
	})
}

// Fill queues events that fall before the lookahead horizon. Returns how many
// were added.
func (s *Scheduler) Fill(snap transport.Snapshot) int {
	if snap.Mode != types.Playing {
		return 0
	}
	horizon := snap.Ticks + transport.SecondsToTicks(s.lookahead.Seconds(), s.baseTempo)
	added := 0
	for s.cursor < len(s.events) && s.events[s.cursor].OnsetTicks < horizon {
		s.pending = append(s.pending, s.events[s.cursor])
		s.cursor++
		added++
	}
	return added
}

// Fire dispatches every pending event the playhead has reached. Events from
// tracks the filter rejects are dropped. Each trigger carries the wall
// instant of its onset and a duration scaled by the playback rate.
func (s *Scheduler) Fire(snap transport.Snapshot, filter types.HandView, voice Trigger) []Entry {
	if snap.Mode != types.Playing || len(s.pending) == 0 {
		return nil
	}
	n := 0
	for n < len(s.pending) && s.pending[n].OnsetTicks <= snap.Ticks {
		n++
	}
	if n == 0 {
		return nil
	}
	due := make([]Entry, n)
	copy(due, s.pending[:n])
	s.pending = append(s.pending[:0], s.pending[n:]...)

	fired := due[:0]
	for _, e := range due {
		if !filter.Allows(e.Track) {
			continue
		}
		at := snap.WallTimeOf(e.OnsetTicks)
		duration := e.Note.Duration / snap.Rate
		if voice != nil {
			voice.TriggerAndRelease(e.Note.Name, duration, at, e.Note.Velocity)
		}
		fired = append(fired, e)
	}
	if len(fired) > 0 {
		log.Printf("SCHED: fired %d/%d at %.1f ticks (gen %d)", len(fired), n, snap.Ticks, s.generation)
	}
	return fired
}

// Pending returns a copy of the queued events
func (s *Scheduler) Pending() []Entry {
	out := make([]Entry, len(s.pending))
	copy(out, s.pending)
	return out
}

// Len is the number of registered events not yet queued
func (s *Scheduler) Len() int {
	return len(s.events) - s.cursor
}

// Generation increments on every Cancel
func (s *Scheduler) Generation() uint64 {
	return s.generation
}

package score

import (
	"log"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/schollz/keyfall/internal/geometry"
)

// DefaultTempo is used when the source declares no tempo
const DefaultTempo = 120.0

// Note is one timed pitch event. Onset and Duration are in seconds.
type Note struct {
	Pitch    uint8
	Onset    float64
	Duration float64
	Velocity float64 // 0-1
	Name     string
}

// End returns the release time of the note
func (n Note) End() float64 {
	return n.Onset + n.Duration
}

// ActiveAt reports whether t falls in [onset, onset+duration)
func (n Note) ActiveAt(t float64) bool {
	return t >= n.Onset && t < n.End()
}

// NewNote builds a note with its display name filled in
func NewNote(pitch uint8, onset, duration, velocity float64) Note {
	return Note{
		Pitch:    pitch,
		Onset:    onset,
		Duration: duration,
		Velocity: velocity,
		Name:     geometry.NoteName(int(pitch)),
	}
}

// Track is an ordered sequence of notes. Index 0 is the primary hand and
// index 1 the secondary hand.
type Track struct {
	Name  string
	Notes []Note
}

// Event pairs a note with the index of the track it came from
type Event struct {
	Track int
	Note  Note
}

// Score is immutable once built by New
type Score struct {
	ID        uuid.UUID
	Name      string
	BaseTempo float64
	Duration  float64

	tracks []Track
	events []Event // sorted by onset, then track

	byPitch   [geometry.MaxPitch + 1][]Event // sorted by onset
	maxDur    [geometry.MaxPitch + 1]float64
	maxDurAll float64
}

// New copies the given tracks into an immutable score. Notes with a negative
// onset, a non-positive duration or a pitch above 127 are dropped.
func New(name string, baseTempo float64, tracks []Track) *Score {
	if baseTempo <= 0 || math.IsNaN(baseTempo) || math.IsInf(baseTempo, 0) {
		baseTempo = DefaultTempo
	}
	s := &Score{
		ID:        uuid.New(),
		Name:      name,
		BaseTempo: baseTempo,
		tracks:    make([]Track, 0, len(tracks)),
	}

	for ti, tr := range tracks {
		kept := make([]Note, 0, len(tr.Notes))
		for _, n := range tr.Notes {
			if n.Onset < 0 || n.Duration <= 0 || n.Pitch > geometry.MaxPitch ||
				math.IsNaN(n.Onset) || math.IsNaN(n.Duration) {
				log.Printf("Dropping invalid note in track %d: pitch=%d onset=%.3f duration=%.3f", ti, n.Pitch, n.Onset, n.Duration)
				continue
			}
			if n.Name == "" {
				n.Name = geometry.NoteName(int(n.Pitch))
			}
			if n.Velocity < 0 {
				n.Velocity = 0
			} else if n.Velocity > 1 {
				n.Velocity = 1
			}
			kept = append(kept, n)
			s.events = append(s.events, Event{Track: ti, Note: n})
			if n.End() > s.Duration {
				s.Duration = n.End()
			}
		}
		s.tracks = append(s.tracks, Track{Name: tr.Name, Notes: kept})
	}

	sort.SliceStable(s.events, func(i, j int) bool {
		if s.events[i].Note.Onset != s.events[j].Note.Onset {
			return s.events[i].Note.Onset < s.events[j].Note.Onset
		}
		return s.events[i].Track < s.events[j].Track
	})

	for _, ev := range s.events {
		p := ev.Note.Pitch
		s.byPitch[p] = append(s.byPitch[p], ev)
		if ev.Note.Duration > s.maxDur[p] {
			s.maxDur[p] = ev.Note.Duration
		}
		if ev.Note.Duration > s.maxDurAll {
			s.maxDurAll = ev.Note.Duration
		}
	}

	return s
}

// NumTracks returns the number of tracks, including empty ones
func (s *Score) NumTracks() int {
	return len(s.tracks)
}

// Track returns the track at index i, or an empty track when out of range
func (s *Score) Track(i int) Track {
	if i < 0 || i >= len(s.tracks) {
		return Track{}
	}
	return s.tracks[i]
}

// Events returns all notes sorted by onset. The slice is shared and must
// not be modified.
func (s *Score) Events() []Event {
	return s.events
}

// IndexAfter returns the index of the first event whose onset is strictly
// greater than t
func (s *Score) IndexAfter(t float64) int {
	return sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Note.Onset > t
	})
}

// NoteActive returns the most recent note of the given pitch sounding at t,
// considering only tracks that pass allow (nil allows all tracks)
func (s *Score) NoteActive(pitch int, t float64, allow func(track int) bool) (Event, bool) {
	if pitch < geometry.MinPitch || pitch > geometry.MaxPitch {
		return Event{}, false
	}
	evs := s.byPitch[pitch]
	idx := sort.Search(len(evs), func(i int) bool {
		return evs[i].Note.Onset > t
	})
	floor := t - s.maxDur[pitch]
	for i := idx - 1; i >= 0 && evs[i].Note.Onset >= floor; i-- {
		if evs[i].Note.ActiveAt(t) && (allow == nil || allow(evs[i].Track)) {
			return evs[i], true
		}
	}
	return Event{}, false
}

// ActiveAt calls fn for every note sounding at t, in onset order. Iteration
// stops early when fn returns false.
func (s *Score) ActiveAt(t float64, fn func(Event) bool) {
	end := s.IndexAfter(t)
	start := sort.Search(end, func(i int) bool {
		return s.events[i].Note.Onset >= t-s.maxDurAll
	})
	for i := start; i < end; i++ {
		if s.events[i].Note.ActiveAt(t) {
			if !fn(s.events[i]) {
				return
			}
		}
	}
}

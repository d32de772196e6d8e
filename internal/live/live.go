// Package live tracks notes held on an input device and compares them to
// what the score expects at the current position.
package live

import (
	"log"
	"sort"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/types"
)

// LiveTrack marks a feedback entry that no score note accounts for
const LiveTrack = -1

// FeedbackEntry is one pitch the renderer should highlight
type FeedbackEntry struct {
	Pitch    int
	Track    int
	Feedback types.Feedback
}

// Live reports whether the entry comes from a held key rather than playback
func (e FeedbackEntry) Live() bool {
	return e.Feedback != types.FeedbackNone
}

// NoteSet is the set of pitches currently held. Pitches are the only key, so
// repeated note-ons for one pitch coalesce.
type NoteSet struct {
	held  [geometry.MaxPitch + 1]bool
	count int
}

func inRange(p int) bool {
	return p >= geometry.MinPitch && p <= geometry.MaxPitch
}

// NoteOn marks p as held. Returns false for out-of-range pitches or a pitch
// that was already held.
func (n *NoteSet) NoteOn(p int) bool {
	if !inRange(p) {
		log.Printf("LIVE: ignoring note-on for pitch %d", p)
		return false
	}
	if n.held[p] {
		return false
	}
	n.held[p] = true
	n.count++
	return true
}

// NoteOff releases p. Returns false if it was not held.
func (n *NoteSet) NoteOff(p int) bool {
	if !inRange(p) || !n.held[p] {
		return false
	}
	n.held[p] = false
	n.count--
	return true
}

// Held reports whether p is held
func (n *NoteSet) Held(p int) bool {
	return inRange(p) && n.held[p]
}

// Len is the number of held pitches
func (n *NoteSet) Len() int {
	return n.count
}

// HeldPitches lists held pitches in ascending order
func (n *NoteSet) HeldPitches() []int {
	out := make([]int, 0, n.count)
	for p, on := range n.held {
		if on {
			out = append(out, p)
		}
	}
	return out
}

// Clear releases everything and returns what was held
func (n *NoteSet) Clear() []int {
	released := n.HeldPitches()
	n.held = [geometry.MaxPitch + 1]bool{}
	n.count = 0
	return released
}

// Classify compares a held pitch against the score at t. Every score track
// counts regardless of the hand view: playing the other hand's note is still
// correct. A nil score makes every held pitch incorrect.
func (n *NoteSet) Classify(s *score.Score, p int, t float64) types.Feedback {
	fb, _ := n.classify(s, p, t)
	return fb
}

func (n *NoteSet) classify(s *score.Score, p int, t float64) (types.Feedback, int) {
	if !n.Held(p) {
		return types.FeedbackNone, LiveTrack
	}
	if s == nil {
		return types.FeedbackIncorrect, LiveTrack
	}
	if ev, ok := s.NoteActive(p, t, nil); ok {
		return types.FeedbackCorrect, ev.Track
	}
	return types.FeedbackIncorrect, LiveTrack
}

// Active merges held pitches with the score's sounding notes into one list
// sorted by pitch. A held pitch reports the track of the note that made it
// correct, or LiveTrack. When includeScore is set, sounding notes that pass
// filter and are not held are added with FeedbackNone, one entry per pitch.
func (n *NoteSet) Active(s *score.Score, t float64, filter types.HandView, includeScore bool) []FeedbackEntry {
	out := make([]FeedbackEntry, 0, n.count+8)
	for p, on := range n.held {
		if !on {
			continue
		}
		fb, track := n.classify(s, p, t)
		out = append(out, FeedbackEntry{Pitch: p, Track: track, Feedback: fb})
	}
	if includeScore && s != nil {
		var seen [geometry.MaxPitch + 1]bool
		s.ActiveAt(t, func(ev score.Event) bool {
			p := int(ev.Note.Pitch)
			if n.held[p] || seen[p] || !filter.Allows(ev.Track) {
				return true
			}
			seen[p] = true
			out = append(out, FeedbackEntry{Pitch: p, Track: ev.Track, Feedback: types.FeedbackNone})
			return true
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pitch < out[j].Pitch
	})
	return out
}

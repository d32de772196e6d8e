// Package window answers what a falling-notes display should draw at a
// given score time: which notes are on screen and where, which notes just
// reached the keyboard, and where their labels go.
package window

import (
	"iter"
	"math"
	"sort"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/types"
)

const (
	// DefaultGrace is how long after its onset a note stays on screen, in seconds
	DefaultGrace = 5.0
	// DefaultFallSpeed is in pixels per second
	DefaultFallSpeed = 200.0
	// LabelMinHeight is the smallest note height that gets a label
	LabelMinHeight = 25.0
	// LabelSpacing is the vertical distance under which same-named labels merge
	LabelSpacing = 50.0
)

// Frame describes the drawing surface for one query
type Frame struct {
	Width     float64
	Height    float64
	FallSpeed float64 // pixels per second
	Grace     float64 // seconds; zero uses DefaultGrace
}

// Lookahead is how many seconds of score fit above the keyboard
func (f Frame) Lookahead() float64 {
	if f.FallSpeed <= 0 {
		return 0
	}
	return f.Height / f.FallSpeed
}

func (f Frame) grace() float64 {
	if f.Grace > 0 {
		return f.Grace
	}
	return DefaultGrace
}

// VisibleNote is a note placed on the surface. Y is the top edge.
type VisibleNote struct {
	Track  int
	Note   score.Note
	X      float64
	Y      float64
	Width  float64
	Height float64
	Sharp  bool
}

// Visible yields the notes with onset-t in (-grace, lookahead] whose track
// passes filter and whose pitch has a lane, in onset order. Each range over
// the result walks the score again.
func Visible(s *score.Score, kb geometry.Keyboard, f Frame, t float64, filter types.HandView) iter.Seq[VisibleNote] {
	return func(yield func(VisibleNote) bool) {
		if s == nil {
			return
		}
		events := s.Events()
		lo := t - f.grace()
		hi := t + f.Lookahead()
		start := sort.Search(len(events), func(i int) bool {
			return events[i].Note.Onset > lo
		})
		offset := kb.Offset(f.Width)
		for i := start; i < len(events) && events[i].Note.Onset <= hi; i++ {
			ev := events[i]
			if !filter.Allows(ev.Track) {
				continue
			}
			lane, ok := kb.LaneFor(int(ev.Note.Pitch))
			if !ok {
				continue
			}
			h := ev.Note.Duration * f.FallSpeed
			vn := VisibleNote{
				Track:  ev.Track,
				Note:   ev.Note,
				X:      offset + lane.X,
				Y:      f.Height - (ev.Note.Onset-t)*f.FallSpeed - h,
				Width:  lane.Width,
				Height: h,
				Sharp:  lane.Sharp,
			}
			if !yield(vn) {
				return
			}
		}
	}
}

// Hit is a note whose onset was crossed since the previous query
type Hit struct {
	Track int
	Note  score.Note
	X     float64 // lane centre
	Y     float64 // keyboard line
	Sharp bool
}

// HitTracker reports each onset once as the playhead crosses it, regardless
// of how often it is queried
type HitTracker struct {
	last float64
}

// NewHitTracker starts just below zero so a note at 0 hits on the first query
func NewHitTracker() *HitTracker {
	h := &HitTracker{}
	h.Reset(0)
	return h
}

// Reset re-baselines to just below t, so a note with onset exactly t still
// hits once
func (h *HitTracker) Reset(t float64) {
	h.last = math.Nextafter(t, math.Inf(-1))
}

// Last is the time of the previous query
func (h *HitTracker) Last() float64 {
	return h.last
}

// Advance returns notes with last < onset <= t and moves last to t. If t is
// behind last the tracker re-baselines without reporting anything.
func (h *HitTracker) Advance(s *score.Score, kb geometry.Keyboard, f Frame, t float64, filter types.HandView) []Hit {
	if t < h.last {
		h.last = t
		return nil
	}
	if s == nil || t == h.last {
		h.last = t
		return nil
	}
	events := s.Events()
	start := sort.Search(len(events), func(i int) bool {
		return events[i].Note.Onset > h.last
	})
	var hits []Hit
	offset := kb.Offset(f.Width)
	for i := start; i < len(events) && events[i].Note.Onset <= t; i++ {
		ev := events[i]
		if !filter.Allows(ev.Track) {
			continue
		}
		lane, ok := kb.LaneFor(int(ev.Note.Pitch))
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			Track: ev.Track,
			Note:  ev.Note,
			X:     offset + lane.Center(),
			Y:     f.Height,
			Sharp: lane.Sharp,
		})
	}
	h.last = t
	return hits
}

// Label is a note name drawn at the centre of a note
type Label struct {
	Name string
	X    float64
	Y    float64
}

// Labels places names on notes at least minHeight tall. Within each name the
// labels are taken top to bottom and one is kept only if it lies more than
// spacing below the last one kept.
func Labels(notes []VisibleNote, minHeight, spacing float64) []Label {
	groups := make(map[string][]Label)
	var order []string
	for _, n := range notes {
		if n.Height < minHeight || n.Note.Name == "" {
			continue
		}
		if _, ok := groups[n.Note.Name]; !ok {
			order = append(order, n.Note.Name)
		}
		groups[n.Note.Name] = append(groups[n.Note.Name], Label{
			Name: n.Note.Name,
			X:    n.X + n.Width/2,
			Y:    n.Y + n.Height/2,
		})
	}

	var out []Label
	for _, name := range order {
		g := groups[name]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Y < g[j].Y })
		lastY := math.Inf(-1)
		for _, l := range g {
			if l.Y-lastY > spacing {
				out = append(out, l)
				lastY = l.Y
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// GridLines returns the surface X of each octave boundary (the left edge of
// every C lane)
func GridLines(kb geometry.Keyboard, f Frame) []float64 {
	offset := kb.Offset(f.Width)
	xs := kb.OctaveLines()
	for i := range xs {
		xs[i] += offset
	}
	return xs
}

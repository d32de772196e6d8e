// Package geometry maps pitches onto horizontal keyboard lanes.
//
// Natural pitches occupy sequential fixed-width lanes from left to right.
// Sharp pitches occupy a narrower lane centred on the boundary between the
// two neighbouring natural lanes and are drawn on a higher layer. Both the
// note renderer and the hit-effect renderer call LaneFor independently for
// the same note, so every function here is pure.
package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MinPitch and MaxPitch bound the standard pitch-number space
	MinPitch = 0
	MaxPitch = 127

	// A0 and C8, the 88-key range
	PianoLow  = 21
	PianoHigh = 108

	NaturalWidth = 40.0
	SharpWidth   = 24.0
	LaneGap      = 2.0
)

// naturalsBefore[c] counts natural pitch classes strictly below class c
var naturalsBefore = [12]int{0, 1, 1, 2, 2, 3, 4, 4, 5, 5, 6, 6}

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// IsSharp reports whether p is a chromatic sharp (pitch class 1, 3, 6, 8 or 10)
func IsSharp(p int) bool {
	switch ((p % 12) + 12) % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// naturalsBelow counts natural pitches in [0, p)
func naturalsBelow(p int) int {
	return (p/12)*7 + naturalsBefore[p%12]
}

// Lane is the horizontal slot for one pitch, relative to the keyboard's left edge
type Lane struct {
	X     float64
	Width float64
	Sharp bool
	Layer int // 1 for sharps so they stack above naturals
}

// Center returns the horizontal centre of the lane
func (l Lane) Center() float64 {
	return l.X + l.Width/2
}

// Keyboard is a configured pitch range plus lane widths
type Keyboard struct {
	Min          int
	Max          int
	NaturalWidth float64
	SharpWidth   float64
	Gap          float64
}

// DefaultKeyboard is the full 88-key layout
func DefaultKeyboard() Keyboard {
	return Keyboard{
		Min:          PianoLow,
		Max:          PianoHigh,
		NaturalWidth: NaturalWidth,
		SharpWidth:   SharpWidth,
		Gap:          LaneGap,
	}
}

// NewKeyboard returns a keyboard over [min, max] with the default widths
func NewKeyboard(min, max int) Keyboard {
	kb := DefaultKeyboard()
	kb.Min = min
	kb.Max = max
	return kb
}

// Contains reports whether p is a valid pitch inside the keyboard range
func (k Keyboard) Contains(p int) bool {
	return p >= MinPitch && p <= MaxPitch && p >= k.Min && p <= k.Max
}

// LaneFor returns the lane of pitch p. The second result is false for
// pitches outside 0-127 or outside the keyboard range.
func (k Keyboard) LaneFor(p int) (Lane, bool) {
	if !k.Contains(p) || k.Min < MinPitch {
		return Lane{}, false
	}
	boundary := float64(naturalsBelow(p)-naturalsBelow(k.Min)) * k.NaturalWidth
	if IsSharp(p) {
		return Lane{
			X:     boundary - k.SharpWidth/2,
			Width: k.SharpWidth,
			Sharp: true,
			Layer: 1,
		}, true
	}
	return Lane{
		X:     boundary,
		Width: k.NaturalWidth - k.Gap,
	}, true
}

// NaturalCount returns the number of natural keys in the range
func (k Keyboard) NaturalCount() int {
	if k.Max < k.Min || k.Min < MinPitch || k.Max > MaxPitch {
		return 0
	}
	return naturalsBelow(k.Max+1) - naturalsBelow(k.Min)
}

// TotalWidth sums the natural lane widths; sharps add nothing
func (k Keyboard) TotalWidth() float64 {
	return float64(k.NaturalCount()) * k.NaturalWidth
}

// Offset is the left margin that centres the keyboard on a surface
func (k Keyboard) Offset(screenWidth float64) float64 {
	return (screenWidth - k.TotalWidth()) / 2
}

// OctaveLines returns the X of the left edge of every C in range
func (k Keyboard) OctaveLines() []float64 {
	var xs []float64
	for p := k.Min; p <= k.Max; p++ {
		if p%12 != 0 {
			continue
		}
		if lane, ok := k.LaneFor(p); ok {
			xs = append(xs, lane.X)
		}
	}
	return xs
}

// NoteName returns the scientific pitch name, 60 -> "C4". Empty when out of range.
func NoteName(p int) string {
	if p < MinPitch || p > MaxPitch {
		return ""
	}
	return pitchNames[p%12] + strconv.Itoa(p/12-1)
}

// ParseNoteName is the inverse of NoteName; flats ("Bb3") are accepted too
func ParseNoteName(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid note name %q", name)
	}
	class := strings.Index("C D EF G A B", strings.ToUpper(s[:1]))
	if class < 0 || s[0] == ' ' {
		return 0, fmt.Errorf("invalid note letter in %q", name)
	}
	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		class++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b"):
		class--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid octave in %q: %w", name, err)
	}
	p := (octave+1)*12 + class
	if p < MinPitch || p > MaxPitch {
		return 0, fmt.Errorf("note %q out of range", name)
	}
	return p, nil
}

// Frequency returns the equal-tempered frequency of p with A4 = 440 Hz
func Frequency(p int) float64 {
	return 440 * math.Pow(2, float64(p-69)/12)
}

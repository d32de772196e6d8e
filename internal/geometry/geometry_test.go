package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSharpPartition(t *testing.T) {
	sharps := 0
	for p := 60; p < 72; p++ {
		if IsSharp(p) {
			sharps++
		}
	}
	assert.Equal(t, 5, sharps, "one octave has 5 sharps")
	assert.False(t, IsSharp(60), "C")
	assert.True(t, IsSharp(61), "C#")
	assert.False(t, IsSharp(64), "E")
	assert.False(t, IsSharp(65), "F")
	assert.True(t, IsSharp(70), "A#")
}

func TestTotalWidthFullPiano(t *testing.T) {
	kb := DefaultKeyboard()
	assert.Equal(t, 52, kb.NaturalCount())
	assert.Equal(t, 52*NaturalWidth, kb.TotalWidth())
}

func TestTotalWidthOctave(t *testing.T) {
	kb := NewKeyboard(60, 71)
	assert.Equal(t, 7*NaturalWidth, kb.TotalWidth())

	empty := NewKeyboard(72, 60)
	assert.Equal(t, 0.0, empty.TotalWidth())
}

func TestLaneForNaturalsIncreasing(t *testing.T) {
	kb := DefaultKeyboard()
	prev := -1.0
	for p := kb.Min; p <= kb.Max; p++ {
		if IsSharp(p) {
			continue
		}
		lane, ok := kb.LaneFor(p)
		require.True(t, ok, "pitch %d", p)
		assert.Greater(t, lane.X, prev, "pitch %d", p)
		assert.Equal(t, NaturalWidth-LaneGap, lane.Width)
		assert.Equal(t, 0, lane.Layer)
		prev = lane.X
	}
}

func TestLaneForSharpCenteredOnBoundary(t *testing.T) {
	kb := NewKeyboard(60, 72)

	c, _ := kb.LaneFor(60)
	cs, ok := kb.LaneFor(61)
	require.True(t, ok)
	d, _ := kb.LaneFor(62)

	assert.Equal(t, 0.0, c.X)
	assert.Equal(t, NaturalWidth, d.X)
	assert.True(t, cs.Sharp)
	assert.Equal(t, 1, cs.Layer)
	assert.Equal(t, SharpWidth, cs.Width)
	// centred on the C/D boundary
	assert.InDelta(t, d.X, cs.Center(), 1e-9)
}

func TestLaneForDeterministic(t *testing.T) {
	kb := DefaultKeyboard()
	for p := 0; p <= 127; p++ {
		a, okA := kb.LaneFor(p)
		b, okB := kb.LaneFor(p)
		assert.Equal(t, a, b)
		assert.Equal(t, okA, okB)
	}
}

func TestLaneForOutOfRange(t *testing.T) {
	kb := DefaultKeyboard()
	for _, p := range []int{-1, 0, 20, 109, 127, 128, 300} {
		lane, ok := kb.LaneFor(p)
		assert.False(t, ok, "pitch %d", p)
		assert.Equal(t, Lane{}, lane)
	}
}

func TestOffsetCentersKeyboard(t *testing.T) {
	kb := NewKeyboard(60, 71)
	assert.Equal(t, 10.0, kb.Offset(7*NaturalWidth+20))
}

func TestOctaveLines(t *testing.T) {
	kb := NewKeyboard(48, 72)
	assert.Equal(t, []float64{0, 7 * NaturalWidth, 14 * NaturalWidth}, kb.OctaveLines())
}

func TestNoteNames(t *testing.T) {
	testCases := []struct {
		pitch int
		name  string
	}{
		{60, "C4"},
		{61, "C#4"},
		{69, "A4"},
		{21, "A0"},
		{108, "C8"},
		{0, "C-1"},
		{127, "G9"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.name, NoteName(tc.pitch))
		p, err := ParseNoteName(tc.name)
		assert.NoError(t, err)
		assert.Equal(t, tc.pitch, p)
	}
	assert.Equal(t, "", NoteName(128))
	assert.Equal(t, "", NoteName(-3))
}

func TestParseNoteNameFlatsAndErrors(t *testing.T) {
	p, err := ParseNoteName("Bb3")
	assert.NoError(t, err)
	assert.Equal(t, 58, p)

	for _, bad := range []string{"", "H4", "C", "C#x", "G#9"} {
		_, err := ParseNoteName(bad)
		assert.Error(t, err, bad)
	}
}

func TestFrequency(t *testing.T) {
	assert.InDelta(t, 440.0, Frequency(69), 1e-9)
	assert.InDelta(t, 261.6256, Frequency(60), 1e-3)
}

package input

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/model"
)

// A terminal never reports key releases, so qwerty notes are released after
// a fixed hold.
const PianoHold = 300 * time.Millisecond

// home row for naturals and the row above for sharps, starting at C
var pianoKeys = []string{"a", "w", "s", "e", "d", "f", "t", "g", "y", "h", "u", "j", "k", "o", "l", "p", ";", "'"}

// PianoReleaseMsg ends a qwerty note. Press is the press count for Pitch
// when the note started, so an earlier press cannot cut a later one short.
type PianoReleaseMsg struct {
	Pitch int
	Press int
}

// PianoPitch maps a qwerty key to a pitch with C of the given octave on "a"
func PianoPitch(k string, octave int) (int, bool) {
	for i, candidate := range pianoKeys {
		if candidate == k {
			p := (octave+1)*12 + i
			return p, p >= geometry.MinPitch && p <= geometry.MaxPitch
		}
	}
	return 0, false
}

func playPianoKey(m *model.Model, k string) (tea.Cmd, bool) {
	pitch, ok := PianoPitch(k, m.PianoOctave)
	if !ok {
		return nil, false
	}
	press := m.PressPiano(pitch)
	fb := m.Engine.NoteOn(pitch, 0.8)
	m.Status = geometry.NoteName(pitch) + " " + fb.String()
	return tea.Tick(PianoHold, func(time.Time) tea.Msg {
		return PianoReleaseMsg{Pitch: pitch, Press: press}
	}), true
}

// ReleasePiano handles a PianoReleaseMsg. Releases from a press that has
// since been repeated are dropped.
func ReleasePiano(m *model.Model, msg PianoReleaseMsg) {
	if !m.ReleasePiano(msg.Pitch, msg.Press) {
		return
	}
	m.Engine.NoteOff(msg.Pitch)
}

func shiftOctave(m *model.Model, delta int) {
	next := m.PianoOctave + delta
	if next < -1 || next > 8 {
		return
	}
	m.PianoOctave = next
	m.Status = "Octave " + geometry.NoteName((next+1)*12)
}

package model

import (
	"math"
	"time"

	"github.com/schollz/keyfall/internal/config"
	"github.com/schollz/keyfall/internal/engine"
	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/types"
	"github.com/schollz/keyfall/internal/window"
)

// Screen layout, in terminal lines
const (
	PaddingLines  = 2 // container padding top and bottom
	PaddingCols   = 4 // container padding left and right
	HeaderLines   = 3 // title, seek bar, ruler
	KeyboardLines = 2
	FooterLines   = 2 // status, help
)

const (
	FlashDuration = 150 * time.Millisecond
	ScrubDelay    = 200 * time.Millisecond

	MinFallSpeed = 50.0
	MaxFallSpeed = 1600.0
)

// Model is the terminal front end's state. The engine owns playback; the
// model only keeps what the screen needs between frames.
type Model struct {
	Engine   *engine.Engine
	Keyboard geometry.Keyboard

	TermWidth  int
	TermHeight int

	FallSpeed float64 // pixels per second
	RowPixels float64 // pixels per terminal row
	FPS       int

	RateIndex  int
	ShowHelp   bool
	Status     string
	DeviceName string

	// qwerty keys play notes while PianoMode is on, C of PianoOctave on "a"
	PianoMode   bool
	PianoOctave int

	// Frame is the last engine frame, refreshed on every tick
	Frame engine.FrameResult
	Scrub *Scrubber

	flashes map[int]time.Time // pitch -> flash expiry
	presses map[int]int       // pitch -> latest qwerty press
}

func NewModel(eng *engine.Engine, cfg *config.Config) *Model {
	m := &Model{
		Engine:      eng,
		Keyboard:    eng.Keyboard(),
		FallSpeed:   cfg.Display.FallSpeed,
		RowPixels:   cfg.Display.RowPixels,
		FPS:         cfg.Display.FPS,
		RateIndex:   rateIndex(cfg.Rate),
		PianoOctave: 4,
		flashes:     make(map[int]time.Time),
		presses:     make(map[int]int),
	}
	m.Scrub = NewScrubber(ScrubDelay, eng.Seek)
	return m
}

// rateIndex finds the menu entry closest to rate
func rateIndex(rate float64) int {
	best := 0
	for i, r := range types.PlaybackRates {
		if math.Abs(r-rate) < math.Abs(types.PlaybackRates[best]-rate) {
			best = i
		}
	}
	return best
}

// LaneRows is the number of terminal rows the falling notes occupy
func (m *Model) LaneRows() int {
	rows := m.TermHeight - PaddingLines - HeaderLines - KeyboardLines - FooterLines
	if rows < 1 {
		rows = 1
	}
	return rows
}

// LaneCols is the usable terminal width
func (m *Model) LaneCols() int {
	cols := m.TermWidth - PaddingCols
	if cols < 1 {
		cols = 1
	}
	return cols
}

// Canvas is the pixel surface the engine lays notes out on. Its width is
// exactly the keyboard so every lane starts at a non-negative X.
func (m *Model) Canvas() window.Frame {
	return window.Frame{
		Width:     m.Keyboard.TotalWidth(),
		Height:    float64(m.LaneRows()) * m.RowPixels,
		FallSpeed: m.FallSpeed,
	}
}

// VisibleSeconds is how much score time fits above the keyboard
func (m *Model) VisibleSeconds() float64 {
	return m.Canvas().Lookahead()
}

// Tick pulls a new frame from the engine and starts a flash for every note
// that reached the keyboard since the last tick.
func (m *Model) Tick(now time.Time) {
	m.Frame = m.Engine.Frame(m.Canvas())
	for _, hit := range m.Frame.Hits {
		m.flashes[int(hit.Note.Pitch)] = now.Add(FlashDuration)
	}
	for p, until := range m.flashes {
		if !now.Before(until) {
			delete(m.flashes, p)
		}
	}
}

// Flashing reports whether pitch was hit within the last FlashDuration
func (m *Model) Flashing(pitch int, now time.Time) bool {
	until, ok := m.flashes[pitch]
	return ok && now.Before(until)
}

// Position is the playback position shown on screen. A pending scrub wins
// over the engine so the seek bar follows the keys without waiting.
func (m *Model) Position() float64 {
	if t, ok := m.Scrub.Pending(); ok {
		return t
	}
	return m.Engine.Now()
}

// PressPiano records a qwerty press of pitch and returns its press number
func (m *Model) PressPiano(pitch int) int {
	m.presses[pitch]++
	return m.presses[pitch]
}

// ReleasePiano reports whether press is still the latest press of pitch
func (m *Model) ReleasePiano(pitch, press int) bool {
	if m.presses[pitch] != press {
		return false
	}
	delete(m.presses, pitch)
	return true
}

// FramePosition is Position as of the last Tick, so a render reads the same
// snapshot the lanes were built from
func (m *Model) FramePosition() float64 {
	if t, ok := m.Scrub.Pending(); ok {
		return t
	}
	return m.Frame.Now
}

// Rate is the selected playback rate multiplier
func (m *Model) Rate() float64 {
	return types.PlaybackRates[m.RateIndex]
}

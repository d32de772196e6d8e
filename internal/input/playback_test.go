package input

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/keyfall/internal/config"
	"github.com/schollz/keyfall/internal/engine"
	"github.com/schollz/keyfall/internal/model"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/transport"
	"github.com/schollz/keyfall/internal/types"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, withScore bool) (*model.Model, *transport.ManualClock) {
	t.Helper()
	clock := transport.NewManualClock(time.Unix(3000, 0))
	eng := engine.New(engine.WithClock(clock))
	t.Cleanup(eng.Close)
	if withScore {
		eng.Load(score.New("keys", 120, []score.Track{
			{Name: "right", Notes: []score.Note{
				score.NewNote(60, 0, 1, 0.8),
				score.NewNote(62, 1, 1, 0.8),
			}},
		}))
	}
	m := model.NewModel(eng, config.DefaultConfig())
	m.TermWidth, m.TermHeight = 120, 40
	return m, clock
}

func TestTogglePlayback(t *testing.T) {
	t.Run("without a score", func(t *testing.T) {
		m, _ := newTestModel(t, false)
		assert.Nil(t, HandleKeyInput(m, tea.KeyMsg{Type: tea.KeySpace}))
		assert.Equal(t, "No score loaded", m.Status)
		assert.Equal(t, types.Stopped, m.Engine.State().Mode)
	})

	t.Run("play pause resume", func(t *testing.T) {
		m, clock := newTestModel(t, true)
		HandleKeyInput(m, tea.KeyMsg{Type: tea.KeySpace})
		assert.Equal(t, types.Playing, m.Engine.State().Mode)

		clock.Advance(400 * time.Millisecond)
		HandleKeyInput(m, tea.KeyMsg{Type: tea.KeySpace})
		assert.Equal(t, types.Paused, m.Engine.State().Mode)
		assert.Equal(t, "Paused", m.Status)
		assert.InDelta(t, 0.4, m.Engine.Now(), 1e-9)

		HandleKeyInput(m, tea.KeyMsg{Type: tea.KeySpace})
		assert.Equal(t, types.Playing, m.Engine.State().Mode)
	})

	t.Run("pending scrub commits on play", func(t *testing.T) {
		m, _ := newTestModel(t, true)
		HandleKeyInput(m, tea.KeyMsg{Type: tea.KeyRight})
		assert.Equal(t, 0.0, m.Engine.Now())
		HandleKeyInput(m, tea.KeyMsg{Type: tea.KeySpace})
		assert.InDelta(t, 0.31, m.Engine.Now(), 1e-9)
		_, pending := m.Scrub.Pending()
		assert.False(t, pending)
	})
}

func TestHandleKeyInput(t *testing.T) {
	tests := []struct {
		name  string
		keys  []tea.KeyMsg
		check func(t *testing.T, m *model.Model)
	}{
		{
			name: "stop returns to the top",
			keys: []tea.KeyMsg{{Type: tea.KeySpace}, runes("s")},
			check: func(t *testing.T, m *model.Model) {
				assert.Equal(t, types.Stopped, m.Engine.State().Mode)
				assert.Equal(t, "Stopped", m.Status)
			},
		},
		{
			name: "restart plays",
			keys: []tea.KeyMsg{runes("r")},
			check: func(t *testing.T, m *model.Model) {
				assert.Equal(t, types.Playing, m.Engine.State().Mode)
			},
		},
		{
			name: "fast jog",
			keys: []tea.KeyMsg{{Type: tea.KeyShiftRight}, {Type: tea.KeyShiftRight}, {Type: tea.KeyLeft}},
			check: func(t *testing.T, m *model.Model) {
				// 1.55 + 1.55 clamps to 2.0, then back 0.31
				assert.InDelta(t, 1.69, m.Position(), 1e-9)
			},
		},
		{
			name: "zoom",
			keys: []tea.KeyMsg{{Type: tea.KeyUp}, {Type: tea.KeyUp}, {Type: tea.KeyDown}},
			check: func(t *testing.T, m *model.Model) {
				assert.Equal(t, 250.0, m.FallSpeed)
			},
		},
		{
			name: "rate",
			keys: []tea.KeyMsg{runes("+"), runes("="), runes("-")},
			check: func(t *testing.T, m *model.Model) {
				assert.Equal(t, 1.25, m.Engine.State().Rate)
			},
		},
		{
			name: "hand and instrument",
			keys: []tea.KeyMsg{runes("h"), runes("h"), runes("i")},
			check: func(t *testing.T, m *model.Model) {
				assert.Equal(t, types.LeftHand, m.Engine.HandView())
				assert.Equal(t, types.Electric, m.Engine.Instrument())
			},
		},
		{
			name: "help toggles",
			keys: []tea.KeyMsg{runes("?")},
			check: func(t *testing.T, m *model.Model) {
				assert.True(t, m.ShowHelp)
			},
		},
		{
			name: "unbound keys do nothing",
			keys: []tea.KeyMsg{runes("a"), runes("7")},
			check: func(t *testing.T, m *model.Model) {
				assert.Empty(t, m.Engine.State().Held)
				assert.Equal(t, types.Stopped, m.Engine.State().Mode)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(t, true)
			for _, k := range tt.keys {
				HandleKeyInput(m, k)
			}
			tt.check(t, m)
		})
	}
}

func TestQuit(t *testing.T) {
	for _, k := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		m, _ := newTestModel(t, false)
		cmd := HandleKeyInput(m, k)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestQwertyPiano(t *testing.T) {
	m, _ := newTestModel(t, true)
	HandleKeyInput(m, tea.KeyMsg{Type: tea.KeyTab})
	require.True(t, m.PianoMode)

	cmd := HandleKeyInput(m, runes("a"))
	require.NotNil(t, cmd, "note keys schedule their release")
	assert.Equal(t, []int{60}, m.Engine.State().Held)
	assert.Equal(t, "C4 correct", m.Status)

	HandleKeyInput(m, runes("s"))
	assert.Equal(t, types.Stopped, m.Engine.State().Mode, "s is a note in piano mode")
	assert.Equal(t, []int{60, 62}, m.Engine.State().Held)

	ReleasePiano(m, PianoReleaseMsg{Pitch: 60, Press: 1})
	assert.Equal(t, []int{62}, m.Engine.State().Held)

	HandleKeyInput(m, runes("z"))
	assert.Equal(t, 3, m.PianoOctave)
	HandleKeyInput(m, runes("w"))
	assert.Equal(t, []int{49, 62}, m.Engine.State().Held)

	HandleKeyInput(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.False(t, m.PianoMode)
}

func TestQwertyRepeatedPress(t *testing.T) {
	m, _ := newTestModel(t, true)
	HandleKeyInput(m, tea.KeyMsg{Type: tea.KeyTab})

	first := HandleKeyInput(m, runes("a"))
	require.NotNil(t, first)
	second := HandleKeyInput(m, runes("a"))
	require.NotNil(t, second)
	assert.Equal(t, []int{60}, m.Engine.State().Held)

	ReleasePiano(m, PianoReleaseMsg{Pitch: 60, Press: 1})
	assert.Equal(t, []int{60}, m.Engine.State().Held, "the earlier press does not end the later one")

	msg := second()
	assert.Equal(t, PianoReleaseMsg{Pitch: 60, Press: 2}, msg)
	ReleasePiano(m, msg.(PianoReleaseMsg))
	assert.Empty(t, m.Engine.State().Held)

	// a fresh press after the release starts over
	HandleKeyInput(m, runes("a"))
	ReleasePiano(m, PianoReleaseMsg{Pitch: 60, Press: 1})
	assert.Empty(t, m.Engine.State().Held)
}

func TestPianoPitch(t *testing.T) {
	tests := []struct {
		key    string
		octave int
		want   int
		ok     bool
	}{
		{"a", 4, 60, true},
		{"w", 4, 61, true},
		{"k", 4, 72, true},
		{"'", 4, 77, true},
		{"a", -1, 0, true},
		{"'", 8, 125, true},
		{"a", 9, 120, true},
		{"k", 9, 132, false},
		{"q", 4, 0, false},
	}
	for _, tt := range tests {
		got, ok := PianoPitch(tt.key, tt.octave)
		assert.Equal(t, tt.ok, ok, "%s@%d", tt.key, tt.octave)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%s@%d", tt.key, tt.octave)
		}
	}
}

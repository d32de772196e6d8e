package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/keyfall/internal/config"
	"github.com/schollz/keyfall/internal/engine"
	"github.com/schollz/keyfall/internal/input"
	"github.com/schollz/keyfall/internal/model"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/types"
)

func bounceFixture() *score.Score {
	return score.New("fixture", 120, []score.Track{
		{Name: "right", Notes: []score.Note{
			score.NewNote(60, 0, 0.5, 0.8),
			score.NewNote(64, 1, 0.5, 0.8),
		}},
		{Name: "left", Notes: []score.Note{
			score.NewNote(48, 0.5, 1, 0.6),
		}},
	})
}

func TestBounceScore(t *testing.T) {
	t.Run("every note is struck once", func(t *testing.T) {
		voice := bounceScore(config.DefaultConfig(), bounceFixture())
		strikes := voice.Strikes()
		require.Len(t, strikes, 3)

		starts := map[string]float64{}
		for _, s := range strikes {
			starts[s.Name] = s.Start
		}
		assert.InDelta(t, 0.0, starts["C4"], 0.02)
		assert.InDelta(t, 0.5, starts["C3"], 0.02)
		assert.InDelta(t, 1.0, starts["E4"], 0.02)
	})

	t.Run("rate compresses the timeline", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Rate = 2
		voice := bounceScore(cfg, bounceFixture())
		strikes := voice.Strikes()
		require.Len(t, strikes, 3)
		for _, s := range strikes {
			if s.Name == "E4" {
				assert.InDelta(t, 0.5, s.Start, 0.02)
			}
		}
	})

	t.Run("instrument is forwarded", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Instrument = string(types.Organ)
		voice := bounceScore(cfg, bounceFixture())
		for _, s := range voice.Strikes() {
			assert.Equal(t, types.Organ, s.Instrument)
		}
	})
}

func TestNewEngineAppliesSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Rate = 1.5
	cfg.Hand = "left"
	cfg.Instrument = "strings"

	eng := newEngine(cfg)
	defer eng.Close()

	st := eng.State()
	assert.Equal(t, 1.5, st.Rate)
	assert.Equal(t, types.LeftHand, st.HandView)
	assert.Equal(t, types.Strings, st.Instrument)
	assert.False(t, st.Loaded)
}

func TestTrackerModelUpdate(t *testing.T) {
	eng := engine.New()
	defer eng.Close()
	tm := &TrackerModel{model: model.NewModel(eng, config.DefaultConfig())}

	assert.Empty(t, tm.View())

	_, cmd := tm.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	assert.Equal(t, 120, tm.model.TermWidth)
	assert.Equal(t, 40, tm.model.TermHeight)
	assert.NotEmpty(t, tm.View())

	_, cmd = tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.Nil(t, cmd)
	assert.True(t, tm.model.ShowHelp)

	_, cmd = tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	assert.NotNil(t, tm.Init())
	_, cmd = tm.Update(input.TickMsg{})
	assert.NotNil(t, cmd)
}

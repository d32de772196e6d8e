package model

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/keyfall/internal/config"
	"github.com/schollz/keyfall/internal/engine"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/transport"
	"github.com/schollz/keyfall/internal/types"
)

func testScore() *score.Score {
	return score.New("test", 120, []score.Track{
		{Name: "right", Notes: []score.Note{
			score.NewNote(60, 0, 0.5, 0.8),
			score.NewNote(64, 1, 0.5, 0.8),
			score.NewNote(67, 2, 1.0, 0.8),
		}},
	})
}

func newTestModel(t *testing.T) (*Model, *transport.ManualClock) {
	t.Helper()
	clock := transport.NewManualClock(time.Unix(2000, 0))
	eng := engine.New(engine.WithClock(clock))
	t.Cleanup(eng.Close)
	m := NewModel(eng, config.DefaultConfig())
	m.TermWidth = 120
	m.TermHeight = 40
	return m, clock
}

func TestCanvas(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, 31, m.LaneRows())
	assert.Equal(t, 116, m.LaneCols())

	c := m.Canvas()
	assert.Equal(t, m.Keyboard.TotalWidth(), c.Width)
	assert.Equal(t, 620.0, c.Height)
	assert.InDelta(t, 3.1, m.VisibleSeconds(), 1e-9)

	m.TermWidth, m.TermHeight = 2, 3
	assert.Equal(t, 1, m.LaneRows(), "tiny terminals keep one row")
	assert.Equal(t, 1, m.LaneCols())
}

func TestTickFlashes(t *testing.T) {
	m, clock := newTestModel(t)
	m.Engine.Load(testScore())
	require.True(t, m.Engine.Start())

	now := time.Unix(0, 0)
	m.Tick(now)
	require.Len(t, m.Frame.Hits, 1)
	assert.True(t, m.Flashing(60, now))
	assert.True(t, m.Flashing(60, now.Add(FlashDuration-time.Millisecond)))
	assert.False(t, m.Flashing(60, now.Add(FlashDuration)))
	assert.False(t, m.Flashing(64, now))

	clock.Advance(1100 * time.Millisecond)
	later := now.Add(time.Second)
	m.Tick(later)
	assert.False(t, m.Flashing(60, later))
	assert.True(t, m.Flashing(64, later))
	assert.Len(t, m.flashes, 1, "expired flashes are dropped")
}

func TestJogSeek(t *testing.T) {
	m, _ := newTestModel(t)

	m.JogSeek(1, false)
	_, pending := m.Scrub.Pending()
	assert.False(t, pending, "nothing to seek without a score")

	m.Engine.Load(testScore())
	m.JogSeek(1, false)
	target, pending := m.Scrub.Pending()
	require.True(t, pending)
	assert.InDelta(t, 0.31, target, 1e-9)
	assert.InDelta(t, 0.31, m.Position(), 1e-9)
	assert.Equal(t, 0.0, m.Engine.Now(), "engine untouched until the scrub commits")

	m.Scrub.Flush()
	_, pending = m.Scrub.Pending()
	assert.False(t, pending)
	assert.InDelta(t, 0.31, m.Engine.Now(), 1e-9)

	m.JogSeek(1, true)
	assert.InDelta(t, 1.86, m.Position(), 1e-9)
	m.JogSeek(1, true)
	assert.Equal(t, 3.0, m.Position(), "clamped to the score")
	m.JogSeek(-1, true)
	m.JogSeek(-1, true)
	m.JogSeek(-1, true)
	assert.Equal(t, 0.0, m.Position())
	assert.Contains(t, m.Status, "0:00.0")
}

func TestScrubberDebounce(t *testing.T) {
	var mu sync.Mutex
	var seeks []float64
	s := NewScrubber(10*time.Millisecond, func(t float64) float64 {
		mu.Lock()
		defer mu.Unlock()
		seeks = append(seeks, t)
		return t
	})

	s.Set(1)
	s.Set(2)
	s.Set(3)
	assert.Eventually(t, func() bool {
		_, pending := s.Pending()
		return !pending
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{3}, seeks)
}

func TestZoomFallSpeed(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, 200.0, m.FallSpeed)

	m.ZoomFallSpeed(true)
	assert.Equal(t, 250.0, m.FallSpeed)
	m.ZoomFallSpeed(false)
	assert.Equal(t, 200.0, m.FallSpeed)

	for i := 0; i < 30; i++ {
		m.ZoomFallSpeed(true)
	}
	assert.Equal(t, MaxFallSpeed, m.FallSpeed)
	for i := 0; i < 30; i++ {
		m.ZoomFallSpeed(false)
	}
	assert.Equal(t, MinFallSpeed, m.FallSpeed)
}

func TestCycleRate(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, 1.0, m.Rate())

	m.CycleRate(1)
	assert.Equal(t, 1.25, m.Rate())
	assert.Equal(t, 1.25, m.Engine.State().Rate)

	for i := 0; i < 10; i++ {
		m.CycleRate(1)
	}
	assert.Equal(t, 2.0, m.Rate(), "no wrap past the fastest rate")

	for i := 0; i < 10; i++ {
		m.CycleRate(-1)
	}
	assert.Equal(t, 0.5, m.Rate())
	assert.Equal(t, 0.5, m.Engine.State().Rate)
}

func TestCycleRateFollowsEngine(t *testing.T) {
	m, _ := newTestModel(t)
	require.True(t, m.Engine.SetRate(1.5))
	m.Engine.Load(testScore())
	require.Equal(t, 1.5, m.Engine.State().Rate)

	m.CycleRate(1)
	assert.Equal(t, 2.0, m.Rate())
	assert.Equal(t, 2.0, m.Engine.State().Rate)
}

func TestCycleHandAndInstrument(t *testing.T) {
	m, _ := newTestModel(t)

	m.CycleHand()
	assert.Equal(t, types.RightHand, m.Engine.HandView())
	m.CycleHand()
	m.CycleHand()
	assert.Equal(t, types.BothHands, m.Engine.HandView())

	m.CycleInstrument()
	assert.Equal(t, types.Electric, m.Engine.Instrument())
	assert.Equal(t, "Instrument: electric", m.Status)
}

func TestRateIndex(t *testing.T) {
	assert.Equal(t, 2, rateIndex(1))
	assert.Equal(t, 0, rateIndex(0.1))
	assert.Equal(t, 5, rateIndex(3))
	assert.Equal(t, 3, rateIndex(1.2))
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00.0"},
		{-1, "0:00.0"},
		{61.25, "1:01.3"},
		{59.96, "1:00.0"},
		{3599.9, "59:59.9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTime(tt.seconds), "%v", tt.seconds)
	}
}

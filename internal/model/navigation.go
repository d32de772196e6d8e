package model

import (
	"fmt"

	"github.com/schollz/keyfall/internal/types"
)

// JogSeek moves the playhead by a fraction of the visible window:
// 10% per step, 50% when fast. Repeated jogs are committed once the keys
// go quiet.
func (m *Model) JogSeek(direction float64, fast bool) {
	st := m.Engine.State()
	if !st.Loaded {
		return
	}
	stepPercent := 0.1
	if fast {
		stepPercent = 0.5
	}
	step := m.VisibleSeconds() * stepPercent * direction

	target := m.Position() + step
	if target < 0 {
		target = 0
	}
	if target > st.Duration {
		target = st.Duration
	}
	m.Scrub.Set(target)
	m.Status = fmt.Sprintf("Seek %s", FormatTime(target))
}

// ZoomFallSpeed stretches (zoomIn) or squeezes the falling notes
func (m *Model) ZoomFallSpeed(zoomIn bool) {
	if zoomIn {
		m.FallSpeed *= 1.25
	} else {
		m.FallSpeed *= 0.8
	}
	if m.FallSpeed < MinFallSpeed {
		m.FallSpeed = MinFallSpeed
	}
	if m.FallSpeed > MaxFallSpeed {
		m.FallSpeed = MaxFallSpeed
	}
	m.Status = fmt.Sprintf("Fall speed %.0f px/s", m.FallSpeed)
}

// CycleRate steps through the rate menu without wrapping
func (m *Model) CycleRate(direction int) {
	// the engine rate may have been changed over HTTP or OSC
	idx := rateIndex(m.Engine.State().Rate) + direction
	if idx < 0 || idx >= len(types.PlaybackRates) {
		return
	}
	if !m.Engine.SetRate(types.PlaybackRates[idx]) {
		return
	}
	m.RateIndex = idx
	m.Status = fmt.Sprintf("Rate %.2fx", m.Rate())
}

func (m *Model) CycleHand() {
	h := m.Engine.HandView().Next()
	m.Engine.SetHandView(h)
	m.Status = fmt.Sprintf("Hand: %s", h)
}

func (m *Model) CycleInstrument() {
	i := types.NextInstrument(m.Engine.Instrument())
	m.Engine.SetInstrument(i)
	m.Status = fmt.Sprintf("Instrument: %s", i)
}

// FormatTime renders seconds as m:ss.t
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	tenths := int(seconds*10 + 0.5)
	return fmt.Sprintf("%d:%02d.%d", tenths/600, (tenths/10)%60, tenths%10)
}

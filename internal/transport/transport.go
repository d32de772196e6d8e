// Package transport owns the logical playback position.
//
// Position is kept in ticks rather than wall time. While playing, ticks
// accumulate from an anchor at BaseTempo*Rate/60*PPQ ticks per wall second,
// and the anchor is re-taken on every transition and rate change. A rate
// change is therefore an exact rescaling of future progress and a seek is a
// single assignment.
package transport

import (
	"math"
	"time"

	"github.com/schollz/keyfall/internal/types"
)

// PPQ is the tick resolution per quarter note
const PPQ = 960

// Snapshot is an immutable view of the transport at one wall instant
type Snapshot struct {
	Mode      types.RunMode
	Ticks     float64
	Rate      float64
	BaseTempo float64
	Duration  float64
	Wall      time.Time
}

// Seconds converts the snapshot position to score seconds
func (s Snapshot) Seconds() float64 {
	return TicksToSeconds(s.Ticks, s.BaseTempo)
}

// TicksPerSecond is the wall-clock accumulation rate at the snapshot's rate
func (s Snapshot) TicksPerSecond() float64 {
	return s.BaseTempo * s.Rate / 60 * PPQ
}

// WallTimeOf returns the wall instant at which the running transport reaches
// ticks. For a non-running snapshot it returns the snapshot instant.
func (s Snapshot) WallTimeOf(ticks float64) time.Time {
	tps := s.TicksPerSecond()
	if s.Mode != types.Playing || tps <= 0 {
		return s.Wall
	}
	delta := (ticks - s.Ticks) / tps
	return s.Wall.Add(time.Duration(delta * float64(time.Second)))
}

// SecondsToTicks converts score seconds to ticks at the base tempo
func SecondsToTicks(seconds, baseTempo float64) float64 {
	return seconds * baseTempo / 60 * PPQ
}

// TicksToSeconds converts ticks to score seconds at the base tempo
func TicksToSeconds(ticks, baseTempo float64) float64 {
	if baseTempo <= 0 {
		return 0
	}
	return ticks / PPQ * 60 / baseTempo
}

// Transport is the canonical playback clock. It is not safe for concurrent
// use; the engine serializes access.
type Transport struct {
	clock Clock

	mode      types.RunMode
	baseTempo float64
	rate      float64
	duration  float64
	loaded    bool

	// while playing: ticks = anchorTicks + elapsed(anchorWall) * tps
	anchorTicks float64
	anchorWall  time.Time
}

// New creates a stopped transport with no score loaded
func New(clock Clock) *Transport {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Transport{
		clock:     clock,
		baseTempo: 120,
		rate:      1,
	}
}

// Loaded reports whether a score has been adopted
func (t *Transport) Loaded() bool {
	return t.loaded
}

// Load adopts a new score's tempo and duration: stopped, at zero. The rate
// multiplier carries over.
func (t *Transport) Load(baseTempo, duration float64) {
	if baseTempo <= 0 || math.IsNaN(baseTempo) {
		baseTempo = 120
	}
	t.mode = types.Stopped
	t.baseTempo = baseTempo
	t.duration = math.Max(0, duration)
	t.anchorTicks = 0
	t.anchorWall = t.clock.Now()
	t.loaded = true
}

// Snapshot captures the transport state at the current wall instant
func (t *Transport) Snapshot() Snapshot {
	now := t.clock.Now()
	return Snapshot{
		Mode:      t.mode,
		Ticks:     t.ticksAt(now),
		Rate:      t.rate,
		BaseTempo: t.baseTempo,
		Duration:  t.duration,
		Wall:      now,
	}
}

func (t *Transport) ticksAt(now time.Time) float64 {
	if t.mode != types.Playing {
		return t.anchorTicks
	}
	elapsed := now.Sub(t.anchorWall).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return t.anchorTicks + elapsed*t.baseTempo*t.rate/60*PPQ
}

// reanchor folds accumulated progress into the anchor
func (t *Transport) reanchor() {
	now := t.clock.Now()
	t.anchorTicks = t.ticksAt(now)
	t.anchorWall = now
}

// Mode returns the run mode
func (t *Transport) Mode() types.RunMode {
	return t.mode
}

// Start resumes from the current position. Returns false if already playing
// or nothing is loaded.
func (t *Transport) Start() bool {
	if !t.loaded || t.mode == types.Playing {
		return false
	}
	t.anchorWall = t.clock.Now()
	t.mode = types.Playing
	return true
}

// Pause freezes the position. Returns false unless playing.
func (t *Transport) Pause() bool {
	if t.mode != types.Playing {
		return false
	}
	t.reanchor()
	t.mode = types.Paused
	return true
}

// Stop returns to zero from any state
func (t *Transport) Stop() {
	t.mode = types.Stopped
	t.anchorTicks = 0
	t.anchorWall = t.clock.Now()
}

// Seek moves to seconds, clamped to [0, duration], keeping the run mode.
// Returns the clamped target.
func (t *Transport) Seek(seconds float64) float64 {
	if !t.loaded {
		return 0
	}
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if seconds > t.duration {
		seconds = t.duration
	}
	t.anchorTicks = SecondsToTicks(seconds, t.baseTempo)
	t.anchorWall = t.clock.Now()
	return seconds
}

// SetRate sets the playback rate relative to the base tempo. Rates are
// absolute, not compounding. Non-positive values are ignored.
func (t *Transport) SetRate(multiplier float64) bool {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return false
	}
	t.reanchor()
	t.rate = multiplier
	return true
}

// Rate returns the playback rate multiplier
func (t *Transport) Rate() float64 {
	return t.rate
}

// Tempo is the effective tempo in BPM
func (t *Transport) Tempo() float64 {
	return t.baseTempo * t.rate
}

// Ticks returns the current tick position
func (t *Transport) Ticks() float64 {
	return t.ticksAt(t.clock.Now())
}

// Now returns the current logical position in score seconds
func (t *Transport) Now() float64 {
	return TicksToSeconds(t.Ticks(), t.baseTempo)
}

// Duration returns the loaded score's duration in seconds
func (t *Transport) Duration() float64 {
	return t.duration
}

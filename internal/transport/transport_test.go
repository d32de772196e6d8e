package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/keyfall/internal/types"
)

func newLoaded(bpm, duration float64) (*Transport, *ManualClock) {
	clock := NewManualClock(time.Unix(1000, 0))
	tr := New(clock)
	tr.Load(bpm, duration)
	return tr, clock
}

func TestLoadResets(t *testing.T) {
	tr, clock := newLoaded(120, 60)
	tr.Start()
	tr.SetRate(2)
	clock.Advance(3 * time.Second)

	tr.Load(90, 30)

	assert.Equal(t, types.Stopped, tr.Mode())
	assert.Equal(t, 0.0, tr.Ticks())
	assert.Equal(t, 2.0, tr.Rate())
	assert.Equal(t, 180.0, tr.Tempo())
	assert.Equal(t, 30.0, tr.Duration())
}

func TestNowAdvancesWithWallClock(t *testing.T) {
	tr, clock := newLoaded(120, 60)
	assert.True(t, tr.Start())

	clock.Advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, tr.Now(), 1e-9)
	// 120 BPM = 2 beats/s
	assert.InDelta(t, 3*PPQ, tr.Ticks(), 1e-6)
}

func TestStartIdempotent(t *testing.T) {
	tr, clock := newLoaded(120, 60)
	assert.True(t, tr.Start())
	clock.Advance(time.Second)

	before := tr.Ticks()
	assert.False(t, tr.Start(), "second start is a no-op")
	assert.Equal(t, types.Playing, tr.Mode())
	assert.Equal(t, before, tr.Ticks())

	clock.Advance(time.Second)
	assert.InDelta(t, 2.0, tr.Now(), 1e-9, "second start did not re-anchor")
}

func TestStartWithoutScore(t *testing.T) {
	tr := New(NewManualClock(time.Unix(0, 0)))
	assert.False(t, tr.Start())
	assert.Equal(t, types.Stopped, tr.Mode())
	assert.Equal(t, 0.0, tr.Seek(10))
}

func TestPauseFreezesAndResumes(t *testing.T) {
	tr, clock := newLoaded(100, 60)
	tr.Start()
	clock.Advance(2 * time.Second)

	assert.True(t, tr.Pause())
	assert.Equal(t, types.Paused, tr.Mode())
	frozen := tr.Now()
	assert.InDelta(t, 2.0, frozen, 1e-9)

	clock.Advance(10 * time.Second)
	assert.Equal(t, frozen, tr.Now(), "paused position does not move")
	assert.False(t, tr.Pause(), "pause while paused is a no-op")

	tr.Start()
	clock.Advance(time.Second)
	assert.InDelta(t, 3.0, tr.Now(), 1e-9, "resume keeps position")
}

func TestStopResets(t *testing.T) {
	tr, clock := newLoaded(120, 60)
	tr.Start()
	clock.Advance(5 * time.Second)
	tr.Stop()

	assert.Equal(t, types.Stopped, tr.Mode())
	assert.Equal(t, 0.0, tr.Now())
	clock.Advance(time.Second)
	assert.Equal(t, 0.0, tr.Now())
}

func TestSeekRoundTrip(t *testing.T) {
	tr, _ := newLoaded(97, 240)
	for _, s := range []float64{0, 0.001, 1.234, 59.99, 120.5, 240} {
		tr.Seek(s)
		assert.InDelta(t, s, tr.Now(), 1e-9, "seek %.3f", s)
	}
}

func TestSeekClamps(t *testing.T) {
	tr, _ := newLoaded(120, 10)
	assert.Equal(t, 0.0, tr.Seek(-5))
	assert.Equal(t, 0.0, tr.Now())
	assert.Equal(t, 10.0, tr.Seek(99))
	assert.Equal(t, 10.0, tr.Now())
}

func TestSeekKeepsRunMode(t *testing.T) {
	tr, clock := newLoaded(120, 60)
	tr.Start()
	clock.Advance(time.Second)
	tr.Seek(30)
	assert.Equal(t, types.Playing, tr.Mode())
	clock.Advance(time.Second)
	assert.InDelta(t, 31.0, tr.Now(), 1e-9)

	tr.Pause()
	tr.Seek(5)
	assert.Equal(t, types.Paused, tr.Mode())
	assert.InDelta(t, 5.0, tr.Now(), 1e-9)
}

func TestRateLaw(t *testing.T) {
	fast, fastClock := newLoaded(120, 600)
	fast.SetRate(2.0)
	fast.Start()
	fastClock.Advance(time.Second)

	slow, slowClock := newLoaded(120, 600)
	slow.SetRate(1.0)
	slow.Start()
	slowClock.Advance(2 * time.Second)

	assert.InDelta(t, slow.Ticks(), fast.Ticks(), 1e-6)
}

func TestRateIsAbsoluteAndKeepsPosition(t *testing.T) {
	tr, clock := newLoaded(120, 600)
	tr.Start()
	clock.Advance(time.Second)

	before := tr.Ticks()
	assert.True(t, tr.SetRate(2))
	assert.Equal(t, before, tr.Ticks(), "rate change does not move position")
	assert.True(t, tr.SetRate(2))
	assert.Equal(t, 240.0, tr.Tempo(), "repeated rate does not compound")

	clock.Advance(time.Second)
	assert.InDelta(t, 3.0, tr.Now(), 1e-9)
}

func TestRateRejectsInvalid(t *testing.T) {
	tr, _ := newLoaded(120, 60)
	assert.False(t, tr.SetRate(0))
	assert.False(t, tr.SetRate(-1))
	assert.Equal(t, 1.0, tr.Rate())
}

func TestSnapshotWallTimeOf(t *testing.T) {
	tr, clock := newLoaded(120, 60)
	tr.Start()
	clock.Advance(time.Second)

	snap := tr.Snapshot()
	target := SecondsToTicks(1.5, 120)
	assert.Equal(t, snap.Wall.Add(500*time.Millisecond), snap.WallTimeOf(target))

	past := SecondsToTicks(0.75, 120)
	assert.Equal(t, snap.Wall.Add(-250*time.Millisecond), snap.WallTimeOf(past))

	tr.SetRate(2)
	snap = tr.Snapshot()
	assert.Equal(t, snap.Wall.Add(250*time.Millisecond), snap.WallTimeOf(target))
}

// TestTimingDriftLongDuration verifies no drift accumulates over an hour of frames
func TestTimingDriftLongDuration(t *testing.T) {
	tr, clock := newLoaded(60, 7200)
	tr.Start()

	checkPoints := []int{60, 300, 600, 1800, 3600}
	frame := time.Second / 60
	elapsed := 0
	for _, sec := range checkPoints {
		for elapsed < sec {
			for f := 0; f < 60; f++ {
				clock.Advance(frame)
			}
			elapsed++
		}
		assert.InDelta(t, float64(sec), tr.Now(), 1e-3, "after %d seconds", sec)
	}
}

func BenchmarkSnapshot(b *testing.B) {
	tr := New(SystemClock{})
	tr.Load(120, 600)
	tr.Start()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tr.Snapshot().Seconds()
	}
}

package engine

import (
	"time"

	"github.com/schollz/keyfall/internal/scheduler"
	"github.com/schollz/keyfall/internal/types"
)

// Voice is the sound renderer the engine drives. Calls are made while the
// engine lock is held, so implementations must return quickly and must not
// call back into the engine.
type Voice interface {
	scheduler.Trigger
	TriggerHold(name string, at time.Time, velocity float64)
	Release(name string, at time.Time)
	SetInstrument(instrument types.Instrument)
	ReleaseAll(at time.Time)
}

// NopVoice discards everything
type NopVoice struct{}

func (NopVoice) TriggerAndRelease(string, float64, time.Time, float64) {}
func (NopVoice) TriggerHold(string, time.Time, float64)                {}
func (NopVoice) Release(string, time.Time)                             {}
func (NopVoice) SetInstrument(types.Instrument)                        {}
func (NopVoice) ReleaseAll(time.Time)                                  {}

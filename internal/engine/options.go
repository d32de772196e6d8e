package engine

import (
	"time"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/scheduler"
	"github.com/schollz/keyfall/internal/transport"
	"github.com/schollz/keyfall/internal/window"
)

// DefaultReleaseTail is how long playback continues past the last note
// before the engine stops on its own
const DefaultReleaseTail = time.Second

type Config struct {
	Clock       transport.Clock
	Voice       Voice
	Lookahead   time.Duration
	Keyboard    geometry.Keyboard
	Grace       time.Duration
	ReleaseTail time.Duration
}

type Option func(*Config)

func WithClock(clock transport.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

func WithVoice(voice Voice) Option {
	return func(c *Config) {
		c.Voice = voice
	}
}

// WithLookahead sets how far ahead of the playhead notes are queued
func WithLookahead(d time.Duration) Option {
	return func(c *Config) {
		c.Lookahead = d
	}
}

func WithKeyboard(kb geometry.Keyboard) Option {
	return func(c *Config) {
		c.Keyboard = kb
	}
}

// WithGrace sets how long a note stays on screen after its onset
func WithGrace(d time.Duration) Option {
	return func(c *Config) {
		c.Grace = d
	}
}

func WithReleaseTail(d time.Duration) Option {
	return func(c *Config) {
		c.ReleaseTail = d
	}
}

func defaultConfig() *Config {
	return &Config{
		Clock:       transport.SystemClock{},
		Voice:       NopVoice{},
		Lookahead:   scheduler.DefaultLookahead,
		Keyboard:    geometry.DefaultKeyboard(),
		Grace:       time.Duration(window.DefaultGrace * float64(time.Second)),
		ReleaseTail: DefaultReleaseTail,
	}
}

// Package config reads the optional keyfall settings file. Nothing is ever
// written back: settings live for one session.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/types"
	"github.com/schollz/keyfall/internal/window"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OSCConfig addresses the SuperCollider voice
type OSCConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// LatencyMs is added to every bundle timetag so the server can schedule
	// notes ahead of their onset
	LatencyMs int `json:"latencyMs"`
}

// KeyboardConfig is the lane layout
type KeyboardConfig struct {
	Low          int     `json:"low"`
	High         int     `json:"high"`
	NaturalWidth float64 `json:"naturalWidth"`
	SharpWidth   float64 `json:"sharpWidth"`
	Gap          float64 `json:"gap"`
}

// DisplayConfig controls the falling-notes view
type DisplayConfig struct {
	FallSpeed float64 `json:"fallSpeed"` // pixels per second
	RowPixels float64 `json:"rowPixels"` // pixels per terminal row
	FPS       int     `json:"fps"`
	GraceSec  float64 `json:"graceSec"`
}

type Config struct {
	OSC         OSCConfig      `json:"osc"`
	Keyboard    KeyboardConfig `json:"keyboard"`
	Display     DisplayConfig  `json:"display"`
	LookaheadMs int            `json:"lookaheadMs"`
	Rate        float64        `json:"rate"`
	Instrument  string         `json:"instrument"`
	Hand        string         `json:"hand"`
	MIDIInput   string         `json:"midiInput,omitempty"` // substring of the input port name
	HTTPAddr    string         `json:"httpAddr"`
	SampleRate  int            `json:"sampleRate"` // offline bounce

	// AllowedOrigins lists browser origins the HTTP API answers; "*" is any.
	// Empty serves only clients that send no Origin header.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// DefaultConfig returns the settings used when no file is given
func DefaultConfig() *Config {
	return &Config{
		OSC: OSCConfig{
			Host:      "localhost",
			Port:      57120,
			LatencyMs: 100,
		},
		Keyboard: KeyboardConfig{
			Low:          geometry.PianoLow,
			High:         geometry.PianoHigh,
			NaturalWidth: geometry.NaturalWidth,
			SharpWidth:   geometry.SharpWidth,
			Gap:          geometry.LaneGap,
		},
		Display: DisplayConfig{
			FallSpeed: window.DefaultFallSpeed,
			RowPixels: 20,
			FPS:       30,
			GraceSec:  window.DefaultGrace,
		},
		LookaheadMs: 100,
		Rate:        1.0,
		Instrument:  string(types.Piano),
		Hand:        types.BothHands.String(),
		HTTPAddr:    "localhost:8321",
		SampleRate:  44100,
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise be silently clamped later
func (c *Config) Validate() error {
	if c.Keyboard.Low < geometry.MinPitch || c.Keyboard.High > geometry.MaxPitch || c.Keyboard.Low > c.Keyboard.High {
		return fmt.Errorf("keyboard range %d-%d outside 0-127", c.Keyboard.Low, c.Keyboard.High)
	}
	if c.Keyboard.NaturalWidth <= 0 || c.Keyboard.SharpWidth <= 0 {
		return fmt.Errorf("lane widths must be positive")
	}
	if c.Display.FallSpeed <= 0 {
		return fmt.Errorf("fall speed must be positive, got %v", c.Display.FallSpeed)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", c.Rate)
	}
	if _, ok := types.ParseInstrument(c.Instrument); !ok {
		return fmt.Errorf("unknown instrument %q", c.Instrument)
	}
	if _, ok := types.ParseHandView(c.Hand); !ok {
		return fmt.Errorf("unknown hand view %q", c.Hand)
	}
	if c.OSC.Port <= 0 || c.OSC.Port > 65535 {
		return fmt.Errorf("osc port %d out of range", c.OSC.Port)
	}
	return nil
}

// KeyboardLayout converts the keyboard settings to lane geometry
func (c *Config) KeyboardLayout() geometry.Keyboard {
	return geometry.Keyboard{
		Min:          c.Keyboard.Low,
		Max:          c.Keyboard.High,
		NaturalWidth: c.Keyboard.NaturalWidth,
		SharpWidth:   c.Keyboard.SharpWidth,
		Gap:          c.Keyboard.Gap,
	}
}

func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.LookaheadMs) * time.Millisecond
}

func (c *Config) Grace() time.Duration {
	return time.Duration(c.Display.GraceSec * float64(time.Second))
}

func (c *Config) OSCLatency() time.Duration {
	return time.Duration(c.OSC.LatencyMs) * time.Millisecond
}

// InstrumentValue returns the parsed instrument, defaulting to piano
func (c *Config) InstrumentValue() types.Instrument {
	i, _ := types.ParseInstrument(c.Instrument)
	return i
}

// HandView returns the parsed hand view, defaulting to both
func (c *Config) HandView() types.HandView {
	h, _ := types.ParseHandView(c.Hand)
	return h
}

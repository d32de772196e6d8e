// Package midiin bridges a hardware MIDI keyboard to the engine's live
// note-on/note-off entry points.
package midiin

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/schollz/keyfall/internal/types"
)

// ports that are never picked automatically
var excluded = []string{"midi through", "through port", "dummy"}

// Sink receives decoded key events. *engine.Engine satisfies it.
type Sink interface {
	NoteOn(pitch int, velocity float64) types.Feedback
	NoteOff(pitch int)
}

// Event is one decoded key press or release.
type Event struct {
	Pitch    int
	Velocity float64
	On       bool
}

// Decode turns a raw message into a key event. A note-on with velocity 0
// is a release. Anything that is not a note message reports false.
func Decode(msg midi.Message) (Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Pitch: int(key), Velocity: float64(vel) / 127, On: true}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Pitch: int(key)}, true
	}
	return Event{}, false
}

// Deliver forwards ev to sink.
func Deliver(sink Sink, ev Event) {
	if ev.On {
		fb := sink.NoteOn(ev.Pitch, ev.Velocity)
		log.Printf("MIDI: note on %d vel %.2f -> %s", ev.Pitch, ev.Velocity, fb)
		return
	}
	sink.NoteOff(ev.Pitch)
	log.Printf("MIDI: note off %d", ev.Pitch)
}

// Devices lists the names of the available input ports.
func Devices() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// Pick chooses a port index from names. An empty pattern takes the first
// port that is not a virtual through port; otherwise the first name that
// contains pattern, case-insensitively.
func Pick(names []string, pattern string) (int, bool) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	for i, name := range names {
		lower := strings.ToLower(name)
		if pattern != "" {
			if strings.Contains(lower, pattern) {
				return i, true
			}
			continue
		}
		if !isExcluded(lower) {
			return i, true
		}
	}
	return -1, false
}

func isExcluded(lower string) bool {
	for _, pat := range excluded {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// Listener is an open input port feeding a Sink.
type Listener struct {
	mu   sync.Mutex
	name string
	port drivers.In
	stop func()
}

// Open connects to the port selected by pattern and starts delivering
// note events to sink from the driver's goroutine.
func Open(pattern string, sink Sink) (*Listener, error) {
	ports := midi.GetInPorts()
	names := make([]string, len(ports))
	for i, in := range ports {
		names[i] = in.String()
	}
	idx, ok := Pick(names, pattern)
	if !ok {
		if pattern == "" {
			return nil, fmt.Errorf("no midi input found")
		}
		return nil, fmt.Errorf("no midi input matching %q", pattern)
	}
	port := ports[idx]

	stop, err := midi.ListenTo(port, func(msg midi.Message, _ int32) {
		if ev, ok := Decode(msg); ok {
			Deliver(sink, ev)
		}
	}, midi.HandleError(func(err error) {
		log.Printf("MIDI: listener error on %s: %v", port.String(), err)
	}))
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", port.String(), err)
	}
	log.Printf("MIDI: connected to %s", port.String())
	return &Listener{name: port.String(), port: port, stop: stop}, nil
}

// Name reports the connected port name.
func (l *Listener) Name() string {
	return l.name
}

// Close stops listening and closes the port. Safe to call twice.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop == nil {
		return nil
	}
	l.stop()
	l.stop = nil
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("close %q: %w", l.name, err)
	}
	return nil
}

// CloseDriver releases the rtmidi driver. Call once at exit.
func CloseDriver() {
	midi.CloseDriver()
}

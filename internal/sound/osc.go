// Package sound renders engine voice calls: live to a SuperCollider server
// over OSC, or offline into a WAV file.
package sound

import (
	"log"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/types"
)

// OSC addresses understood by the keyfall SynthDefs
const (
	AddrNote       = "/keyfall/note"
	AddrHold       = "/keyfall/hold"
	AddrRelease    = "/keyfall/release"
	AddrReleaseAll = "/keyfall/releaseall"
	AddrInstrument = "/keyfall/instrument"
)

// Sender is satisfied by *osc.Client
type Sender interface {
	Send(packet osc.Packet) error
}

// OSCVoice sends every call as a timetagged bundle so the server plays it at
// the scheduled instant plus a fixed latency, independent of when the pump
// got around to it
type OSCVoice struct {
	mu         sync.Mutex
	client     Sender
	latency    time.Duration
	instrument types.Instrument
}

// NewOSCVoice sends to a SuperCollider language or server at host:port
func NewOSCVoice(host string, port int, latency time.Duration) *OSCVoice {
	log.Printf("OSC voice sending to %s:%d (latency %v)", host, port, latency)
	return NewOSCVoiceWithSender(osc.NewClient(host, port), latency)
}

func NewOSCVoiceWithSender(client Sender, latency time.Duration) *OSCVoice {
	return &OSCVoice{
		client:     client,
		latency:    latency,
		instrument: types.Piano,
	}
}

func frequencyOf(name string) float32 {
	p, err := geometry.ParseNoteName(name)
	if err != nil {
		return 0
	}
	return float32(geometry.Frequency(p))
}

func (v *OSCVoice) send(at time.Time, msg *osc.Message) {
	bundle := osc.NewBundle(at.Add(v.latency))
	if err := bundle.Append(msg); err != nil {
		log.Printf("Error building OSC bundle for %s: %v", msg.Address, err)
		return
	}
	if err := v.client.Send(bundle); err != nil {
		log.Printf("Error sending OSC %s: %v", msg.Address, err)
	}
}

func (v *OSCVoice) TriggerAndRelease(name string, duration float64, at time.Time, velocity float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg := osc.NewMessage(AddrNote)
	msg.Append(name)
	msg.Append(frequencyOf(name))
	msg.Append(float32(velocity))
	msg.Append(float32(duration))
	msg.Append(string(v.instrument))
	v.send(at, msg)
}

func (v *OSCVoice) TriggerHold(name string, at time.Time, velocity float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg := osc.NewMessage(AddrHold)
	msg.Append(name)
	msg.Append(frequencyOf(name))
	msg.Append(float32(velocity))
	msg.Append(string(v.instrument))
	v.send(at, msg)
}

func (v *OSCVoice) Release(name string, at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg := osc.NewMessage(AddrRelease)
	msg.Append(name)
	v.send(at, msg)
}

// SetInstrument is sent immediately so following notes pick it up
func (v *OSCVoice) SetInstrument(instrument types.Instrument) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.instrument = instrument
	msg := osc.NewMessage(AddrInstrument)
	msg.Append(string(instrument))
	if err := v.client.Send(msg); err != nil {
		log.Printf("Error sending OSC %s: %v", AddrInstrument, err)
	}
}

func (v *OSCVoice) ReleaseAll(at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.send(at, osc.NewMessage(AddrReleaseAll))
}

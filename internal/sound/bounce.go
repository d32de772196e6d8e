package sound

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/schollz/audiomorph"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/types"
)

// Strike is one rendered note. Start and Length are seconds from the bounce
// origin.
type Strike struct {
	Name       string
	Frequency  float64
	Start      float64
	Length     float64
	Velocity   float64
	Instrument types.Instrument
}

// timbre is a small additive recipe: harmonic amplitudes plus an
// attack/release envelope in seconds
type timbre struct {
	harmonics []float64
	attack    float64
	decay     float64 // exponential decay rate while held, per second
	release   float64
}

var timbres = map[types.Instrument]timbre{
	types.Piano:    {harmonics: []float64{1, 0.5, 0.25, 0.12}, attack: 0.005, decay: 1.5, release: 0.3},
	types.Electric: {harmonics: []float64{1, 0, 0.35, 0, 0.1}, attack: 0.002, decay: 1.0, release: 0.4},
	types.Organ:    {harmonics: []float64{1, 0.8, 0.6, 0.4, 0.3}, attack: 0.02, decay: 0, release: 0.05},
	types.Strings:  {harmonics: []float64{1, 0.6, 0.45, 0.3, 0.2, 0.15}, attack: 0.25, decay: 0, release: 0.6},
	types.Synth:    {harmonics: []float64{1, 0.5, 0.33, 0.25, 0.2, 0.16, 0.14}, attack: 0.01, decay: 0.3, release: 0.2},
}

// BounceVoice records voice calls against a fixed origin and renders them
// to a WAV file afterwards. Pair it with a manual clock to bounce faster
// than real time.
type BounceVoice struct {
	mu         sync.Mutex
	origin     time.Time
	instrument types.Instrument
	strikes    []Strike
	held       map[string]Strike
}

// NewBounceVoice starts recording with origin as time zero
func NewBounceVoice(origin time.Time) *BounceVoice {
	return &BounceVoice{
		origin:     origin,
		instrument: types.Piano,
		held:       make(map[string]Strike),
	}
}

func (b *BounceVoice) offset(at time.Time) float64 {
	s := at.Sub(b.origin).Seconds()
	if s < 0 {
		return 0
	}
	return s
}

func (b *BounceVoice) strike(name string, at time.Time, velocity float64) Strike {
	freq := 0.0
	if p, err := geometry.ParseNoteName(name); err == nil {
		freq = geometry.Frequency(p)
	}
	return Strike{
		Name:       name,
		Frequency:  freq,
		Start:      b.offset(at),
		Velocity:   velocity,
		Instrument: b.instrument,
	}
}

func (b *BounceVoice) TriggerAndRelease(name string, duration float64, at time.Time, velocity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.strike(name, at, velocity)
	s.Length = duration
	b.strikes = append(b.strikes, s)
}

func (b *BounceVoice) TriggerHold(name string, at time.Time, velocity float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held[name] = b.strike(name, at, velocity)
}

func (b *BounceVoice) Release(name string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.release(name, at)
}

func (b *BounceVoice) release(name string, at time.Time) {
	s, ok := b.held[name]
	if !ok {
		return
	}
	delete(b.held, name)
	s.Length = b.offset(at) - s.Start
	if s.Length > 0 {
		b.strikes = append(b.strikes, s)
	}
}

func (b *BounceVoice) SetInstrument(instrument types.Instrument) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instrument = instrument
}

func (b *BounceVoice) ReleaseAll(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name := range b.held {
		b.release(name, at)
	}
}

// Strikes returns the recorded notes ordered by start time
func (b *BounceVoice) Strikes() []Strike {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Strike, len(b.strikes))
	copy(out, b.strikes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Render mixes the recorded strikes into mono 16-bit samples
func Render(strikes []Strike, sampleRate int) *audio.IntBuffer {
	end := 0.0
	for _, s := range strikes {
		tb := timbreFor(s.Instrument)
		if e := s.Start + s.Length + tb.release; e > end {
			end = e
		}
	}
	n := int(math.Ceil(end * float64(sampleRate)))
	mix := make([]float64, n)
	for _, s := range strikes {
		renderStrike(mix, s, sampleRate)
	}

	peak := 0.0
	for _, v := range mix {
		peak = math.Max(peak, math.Abs(v))
	}
	gain := 0.8
	if peak > 1 {
		gain /= peak
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, n),
		SourceBitDepth: 16,
	}
	for i, v := range mix {
		buf.Data[i] = int(math.Round(v * gain * math.MaxInt16))
	}
	return buf
}

func timbreFor(i types.Instrument) timbre {
	if tb, ok := timbres[i]; ok {
		return tb
	}
	return timbres[types.Piano]
}

func renderStrike(mix []float64, s Strike, sampleRate int) {
	if s.Frequency <= 0 || s.Length <= 0 {
		return
	}
	tb := timbreFor(s.Instrument)
	sr := float64(sampleRate)
	start := int(s.Start * sr)
	total := int((s.Length + tb.release) * sr)
	norm := 0.0
	for _, h := range tb.harmonics {
		norm += h
	}
	amp := 0.25 * s.Velocity / norm
	nyquist := sr / 2

	for i := 0; i < total && start+i < len(mix); i++ {
		t := float64(i) / sr
		env := 1.0
		if t < tb.attack {
			env = t / tb.attack
		}
		if tb.decay > 0 {
			env *= math.Exp(-tb.decay * math.Min(t, s.Length))
		}
		if t > s.Length {
			env *= math.Max(0, 1-(t-s.Length)/tb.release)
		}
		v := 0.0
		for k, h := range tb.harmonics {
			f := s.Frequency * float64(k+1)
			if h == 0 || f >= nyquist {
				continue
			}
			v += h * math.Sin(2*math.Pi*f*t)
		}
		mix[start+i] += amp * env * v
	}
}

// WriteWAV renders the voice's strikes to path
func (b *BounceVoice) WriteWAV(path string, sampleRate int) error {
	strikes := b.Strikes()
	buf := Render(strikes, sampleRate)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	log.Printf("Bounced %d notes to %s (%.2fs at %d Hz)", len(strikes), path,
		float64(len(buf.Data))/float64(sampleRate), sampleRate)
	return nil
}

// Export renders to path in the format its extension names. WAV goes
// through WriteWAV; aiff, mp3, ogg and flac are encoded by audiomorph.
func (b *BounceVoice) Export(path string, sampleRate int) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		return b.WriteWAV(path, sampleRate)
	case ".aif", ".aiff", ".mp3", ".ogg", ".flac":
	default:
		return fmt.Errorf("unsupported bounce format %q", ext)
	}

	strikes := b.Strikes()
	buf := Render(strikes, sampleRate)
	a := &audiomorph.Audio{
		NumChannels: 1,
		SampleRate:  sampleRate,
		BitDepth:    buf.SourceBitDepth,
		Data:        [][]int{buf.Data},
		Duration:    float64(len(buf.Data)) / float64(sampleRate),
	}
	if err := audiomorph.EncodeFile(a, path); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	log.Printf("Bounced %d notes to %s (%.2fs at %d Hz)", len(strikes), path, a.Duration, sampleRate)
	return nil
}

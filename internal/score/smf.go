package score

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
)

type tempoChange struct {
	tick uint64
	bpm  float64
}

// tempoMap converts absolute ticks to seconds across tempo changes
type tempoMap struct {
	resolution float64
	changes    []tempoChange
	offsets    []float64 // seconds at each change
}

func newTempoMap(resolution uint16, changes []tempoChange) *tempoMap {
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	if len(changes) == 0 || changes[0].tick != 0 {
		changes = append([]tempoChange{{tick: 0, bpm: DefaultTempo}}, changes...)
	}
	tm := &tempoMap{resolution: float64(resolution), changes: changes}
	tm.offsets = make([]float64, len(changes))
	for i := 1; i < len(changes); i++ {
		prev := changes[i-1]
		tm.offsets[i] = tm.offsets[i-1] + tm.span(changes[i].tick-prev.tick, prev.bpm)
	}
	return tm
}

func (tm *tempoMap) span(ticks uint64, bpm float64) float64 {
	return float64(ticks) / tm.resolution * 60 / bpm
}

func (tm *tempoMap) seconds(tick uint64) float64 {
	i := sort.Search(len(tm.changes), func(i int) bool { return tm.changes[i].tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	return tm.offsets[i] + tm.span(tick-tm.changes[i].tick, tm.changes[i].bpm)
}

// LoadFile reads a Standard MIDI File from disk
func LoadFile(path string) (*Score, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(bytes.NewReader(dat), name)
}

// Load parses a Standard MIDI File. The smf reader can panic on malformed
// input, so panics are turned into errors.
func Load(r io.Reader, name string) (sc *Score, e error) {
	defer func() {
		if rec := recover(); rec != nil {
			sc = nil
			e = fmt.Errorf("parsing midi file: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("parsing midi file: %w", err)
	}
	return FromSMF(s, name)
}

type openNote struct {
	tick     uint64
	velocity uint8
}

// FromSMF converts a decoded SMF into a Score. Tracks without notes (such as
// the conductor track of a format 1 file) are skipped so that the first two
// note-bearing tracks carry the primary and secondary hands.
func FromSMF(s *smf.SMF, name string) (*Score, error) {
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.New("unsupported midi time format (SMPTE)")
	}
	resolution := mt.Resolution()
	if resolution == 0 {
		return nil, errors.New("midi file has zero resolution")
	}

	// tempo changes may live in any track
	var changes []tempoChange
	for _, tr := range s.Tracks {
		var abs uint64
		for _, ev := range tr {
			abs += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				changes = append(changes, tempoChange{tick: abs, bpm: bpm})
			}
		}
	}
	tm := newTempoMap(resolution, changes)

	var tracks []Track
	for ti, tr := range s.Tracks {
		var (
			abs       uint64
			trackName string
			notes     []Note
		)
		open := make(map[[2]uint8][]openNote)

		closeNote := func(key [2]uint8, endTick uint64) {
			stack := open[key]
			if len(stack) == 0 {
				return
			}
			on := stack[0]
			open[key] = stack[1:]
			onset := tm.seconds(on.tick)
			dur := tm.seconds(endTick) - onset
			if dur <= 0 {
				return
			}
			notes = append(notes, NewNote(key[1], onset, dur, float64(on.velocity)/127))
		}

		for _, ev := range tr {
			abs += uint64(ev.Delta)
			var ch, key, vel uint8
			var text string
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				k := [2]uint8{ch, key}
				open[k] = append(open[k], openNote{tick: abs, velocity: vel})
			case ev.Message.GetNoteEnd(&ch, &key):
				closeNote([2]uint8{ch, key}, abs)
			case ev.Message.GetMetaTrackName(&text):
				trackName = text
			}
		}

		// notes still held at end of track end there
		for k, stack := range open {
			for range stack {
				closeNote(k, abs)
			}
		}

		if len(notes) == 0 {
			log.Printf("Skipping track %d (%q): no notes", ti, trackName)
			continue
		}
		tracks = append(tracks, Track{Name: trackName, Notes: notes})
	}

	baseTempo := tm.changes[0].bpm
	sc := New(name, baseTempo, tracks)
	log.Printf("Loaded %q: %d tracks, %d notes, %.1f BPM, %.2fs", name, sc.NumTracks(), len(sc.Events()), sc.BaseTempo, sc.Duration)
	return sc, nil
}

// Package engine ties the transport, scheduler, live input and visible
// window together behind one lock. Each public method reads a single
// transport snapshot, so everything derived within a call agrees on the
// playback position.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/live"
	"github.com/schollz/keyfall/internal/scheduler"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/transport"
	"github.com/schollz/keyfall/internal/types"
	"github.com/schollz/keyfall/internal/window"
)

// State is a point-in-time summary for control surfaces
type State struct {
	Loaded     bool             `json:"loaded"`
	ScoreID    uuid.UUID        `json:"scoreId"`
	ScoreName  string           `json:"scoreName"`
	Mode       types.RunMode    `json:"-"`
	ModeName   string           `json:"mode"`
	Now        float64          `json:"now"`
	Duration   float64          `json:"duration"`
	Rate       float64          `json:"rate"`
	Tempo      float64          `json:"tempo"`
	HandView   types.HandView   `json:"-"`
	HandName   string           `json:"hand"`
	Instrument types.Instrument `json:"instrument"`
	Held       []int            `json:"held"`
}

// FrameResult is everything a renderer needs for one frame
type FrameResult struct {
	State     State
	Now       float64
	Mode      types.RunMode
	Duration  float64
	Notes     []window.VisibleNote
	Hits      []window.Hit
	Labels    []window.Label
	Active    []live.FeedbackEntry
	GridLines []float64
}

type Engine struct {
	mu sync.Mutex

	cfg   Config
	voice Voice
	tr    *transport.Transport
	sched *scheduler.Scheduler
	notes live.NoteSet
	hits  *window.HitTracker

	score      *score.Score
	hand       types.HandView
	instrument types.Instrument

	closed bool
	done   chan struct{}
}

// New builds a stopped engine with no score loaded
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = transport.SystemClock{}
	}
	if cfg.Voice == nil {
		cfg.Voice = NopVoice{}
	}
	return &Engine{
		cfg:        *cfg,
		voice:      cfg.Voice,
		tr:         transport.New(cfg.Clock),
		sched:      scheduler.New(cfg.Lookahead),
		hits:       window.NewHitTracker(),
		instrument: types.Piano,
		done:       make(chan struct{}),
	}
}

// Keyboard returns the configured lane layout
func (e *Engine) Keyboard() geometry.Keyboard {
	return e.cfg.Keyboard
}

// Score returns the loaded score, or nil
func (e *Engine) Score() *score.Score {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// Load replaces the score. Everything queued for the previous score is
// cancelled before the new one is scheduled, and the transport is stopped at
// zero.
func (e *Engine) Load(sc *score.Score) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if sc == nil {
		log.Printf("Load called with nil score, ignoring")
		return
	}
	e.sched.Cancel()
	e.tr.Load(sc.BaseTempo, sc.Duration)
	e.sched.Schedule(sc, 0)
	e.hits.Reset(0)
	e.score = sc
	log.Printf("Loaded score %q (%s): %d tracks, %d notes, %.1f BPM, %.2fs",
		sc.Name, sc.ID, sc.NumTracks(), len(sc.Events()), sc.BaseTempo, sc.Duration)
}

func (e *Engine) ready(op string) bool {
	if e.closed {
		return false
	}
	if e.score == nil {
		log.Printf("%s: no score loaded", op)
		return false
	}
	return true
}

// Start plays from the current position. Returns false if nothing changed.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready("Start") {
		return false
	}
	if !e.tr.Start() {
		return false
	}
	log.Printf("Playback started at %.3fs (rate %.2f)", e.tr.Now(), e.tr.Rate())
	e.pump(e.tr.Snapshot())
	return true
}

// Pause freezes the position. Queued notes stay queued.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready("Pause") {
		return false
	}
	ok := e.tr.Pause()
	if ok {
		log.Printf("Playback paused at %.3fs", e.tr.Now())
	}
	return ok
}

// Stop returns to zero and drops everything queued
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready("Stop") {
		return
	}
	e.stop()
}

func (e *Engine) stop() {
	e.tr.Stop()
	e.sched.Schedule(e.score, 0)
	e.hits.Reset(0)
	log.Printf("Playback stopped")
}

// Restart stops and immediately plays from the beginning
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready("Restart") {
		return
	}
	e.stop()
	e.tr.Start()
	e.pump(e.tr.Snapshot())
}

// Seek moves to seconds, clamped to the score. Returns the position reached.
func (e *Engine) Seek(seconds float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready("Seek") {
		return 0
	}
	target := e.tr.Seek(seconds)
	e.sched.Reposition(e.tr.Ticks())
	e.hits.Reset(target)
	log.Printf("Seek to %.3fs (requested %.3fs)", target, seconds)
	return target
}

// SetRate sets the playback rate relative to the score tempo
func (e *Engine) SetRate(multiplier float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	ok := e.tr.SetRate(multiplier)
	if !ok {
		log.Printf("SetRate: ignoring invalid rate %v", multiplier)
	}
	return ok
}

// Now is the playback position in score seconds
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tr.Now()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state(e.tr.Snapshot())
}

func (e *Engine) state(snap transport.Snapshot) State {
	st := State{
		Loaded:     e.score != nil,
		Mode:       snap.Mode,
		ModeName:   snap.Mode.String(),
		Now:        snap.Seconds(),
		Duration:   snap.Duration,
		Rate:       snap.Rate,
		Tempo:      snap.BaseTempo * snap.Rate,
		HandView:   e.hand,
		HandName:   e.hand.String(),
		Instrument: e.instrument,
		Held:       e.notes.HeldPitches(),
	}
	if e.score != nil {
		st.ScoreID = e.score.ID
		st.ScoreName = e.score.Name
	}
	return st
}

// SetHandView changes which tracks sound and show. Notes already queued are
// filtered when they fire.
func (e *Engine) SetHandView(h types.HandView) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hand = h
	log.Printf("Hand view: %s", h)
}

func (e *Engine) HandView() types.HandView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hand
}

// SetInstrument forwards the timbre to the voice
func (e *Engine) SetInstrument(i types.Instrument) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.instrument = i
	e.voice.SetInstrument(i)
	log.Printf("Instrument: %s", i)
}

func (e *Engine) Instrument() types.Instrument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instrument
}

// NoteOn records a held key, sounds it, and returns its feedback
func (e *Engine) NoteOn(pitch int, velocity float64) types.Feedback {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return types.FeedbackNone
	}
	snap := e.tr.Snapshot()
	if e.notes.NoteOn(pitch) {
		e.voice.TriggerHold(geometry.NoteName(pitch), snap.Wall, velocity)
	}
	fb := e.notes.Classify(e.score, pitch, snap.Seconds())
	log.Printf("LIVE: note on %d vel %.2f at %.3fs -> %s", pitch, velocity, snap.Seconds(), fb)
	return fb
}

// NoteOff releases a held key
func (e *Engine) NoteOff(pitch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.notes.NoteOff(pitch) {
		e.voice.Release(geometry.NoteName(pitch), e.cfg.Clock.Now())
		log.Printf("LIVE: note off %d", pitch)
	}
}

// Classify returns the feedback for pitch at the current position
func (e *Engine) Classify(pitch int) types.Feedback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notes.Classify(e.score, pitch, e.tr.Now())
}

// Active lists held keys with their feedback plus, while a score is playing
// or paused, the notes it is sounding
func (e *Engine) Active() []live.FeedbackEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active(e.tr.Snapshot())
}

func (e *Engine) active(snap transport.Snapshot) []live.FeedbackEntry {
	includeScore := e.score != nil && snap.Mode != types.Stopped
	return e.notes.Active(e.score, snap.Seconds(), e.hand, includeScore)
}

// Frame computes one render tick. Hits are only reported while playing.
func (e *Engine) Frame(f window.Frame) FrameResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f.Grace == 0 {
		f.Grace = e.cfg.Grace.Seconds()
	}
	snap := e.tr.Snapshot()
	t := snap.Seconds()
	res := FrameResult{
		State:     e.state(snap),
		Now:       t,
		Mode:      snap.Mode,
		Duration:  snap.Duration,
		Active:    e.active(snap),
		GridLines: window.GridLines(e.cfg.Keyboard, f),
	}
	if e.score == nil {
		return res
	}
	for vn := range window.Visible(e.score, e.cfg.Keyboard, f, t, e.hand) {
		res.Notes = append(res.Notes, vn)
	}
	res.Labels = window.Labels(res.Notes, window.LabelMinHeight, window.LabelSpacing)
	if snap.Mode == types.Playing {
		res.Hits = e.hits.Advance(e.score, e.cfg.Keyboard, f, t, e.hand)
	}
	return res
}

// Pump queues notes inside the lookahead and fires the ones that are due.
// Playback stops on its own once the position passes the end of the score
// plus the release tail.
func (e *Engine) Pump() []scheduler.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.score == nil {
		return nil
	}
	return e.pump(e.tr.Snapshot())
}

func (e *Engine) pump(snap transport.Snapshot) []scheduler.Entry {
	if snap.Mode != types.Playing {
		return nil
	}
	if snap.Seconds() >= snap.Duration+e.cfg.ReleaseTail.Seconds() {
		log.Printf("Reached end of %q at %.3fs", e.score.Name, snap.Seconds())
		e.stop()
		return nil
	}
	e.sched.Fill(snap)
	return e.sched.Fire(snap, e.hand, e.voice)
}

// Run pumps at the given interval until ctx is done or the engine is closed
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case <-ticker.C:
			e.Pump()
		}
	}
}

// Close stops playback, drops everything queued and silences held notes.
// Later calls do nothing.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.sched.Cancel()
	e.tr.Stop()
	e.notes.Clear()
	e.voice.ReleaseAll(e.cfg.Clock.Now())
	close(e.done)
	log.Printf("Engine closed")
}

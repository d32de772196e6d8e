package model

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Scrubber collects rapid seek requests and hands only the last one to the
// engine, once no new request has arrived for the debounce delay.
type Scrubber struct {
	mu        sync.Mutex
	target    float64
	pending   bool
	seek      func(float64) float64
	debounced func(func())
}

func NewScrubber(delay time.Duration, seek func(float64) float64) *Scrubber {
	return &Scrubber{seek: seek, debounced: debounce.New(delay)}
}

// Set records target and restarts the debounce timer
func (s *Scrubber) Set(target float64) {
	s.mu.Lock()
	s.target = target
	s.pending = true
	s.mu.Unlock()
	s.debounced(s.commit)
}

// Pending returns the uncommitted target, if any
func (s *Scrubber) Pending() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.pending
}

// Flush commits a pending target now. The timer still fires later but
// finds nothing to do.
func (s *Scrubber) Flush() {
	s.commit()
}

func (s *Scrubber) commit() {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return
	}
	target := s.target
	s.pending = false
	s.mu.Unlock()
	s.seek(target)
}

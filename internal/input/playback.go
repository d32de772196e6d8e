package input

import (
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/schollz/keyfall/internal/model"
	"github.com/schollz/keyfall/internal/types"
)

// TickMsg drives the render loop
type TickMsg time.Time

// TickInterval is the frame period for fps, 30 fps when unset
func TickInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}

func Tick(m *model.Model) tea.Cmd {
	return tea.Tick(TickInterval(m.FPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// TogglePlayback pauses while playing and otherwise starts, committing any
// pending scrub first so playback resumes where the screen says.
func TogglePlayback(m *model.Model) tea.Cmd {
	if m.Engine.State().Mode == types.Playing {
		m.Engine.Pause()
		m.Status = "Paused"
		log.Printf("Playback paused at %.3fs", m.Engine.Now())
		return nil
	}
	m.Scrub.Flush()
	if !m.Engine.Start() {
		m.Status = "No score loaded"
		return nil
	}
	m.Status = "Playing"
	log.Printf("Playback started at %.3fs", m.Engine.Now())
	return nil
}

func StopPlayback(m *model.Model) {
	m.Scrub.Flush()
	m.Engine.Stop()
	m.Status = "Stopped"
}

func RestartPlayback(m *model.Model) {
	m.Scrub.Flush()
	m.Engine.Restart()
	if m.Engine.State().Loaded {
		m.Status = "Playing from the top"
	}
}

// HandleKeyInput applies one key press to the model
func HandleKeyInput(m *model.Model, msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, Keys.Quit):
		return tea.Quit
	case key.Matches(msg, Keys.Piano):
		m.PianoMode = !m.PianoMode
		if m.PianoMode {
			m.Status = "Qwerty piano on"
		} else {
			m.Status = "Qwerty piano off"
		}
		return nil
	case key.Matches(msg, Keys.Play):
		return TogglePlayback(m)
	case key.Matches(msg, Keys.Back):
		m.JogSeek(-1, false)
		return nil
	case key.Matches(msg, Keys.Forward):
		m.JogSeek(1, false)
		return nil
	case key.Matches(msg, Keys.BackFast):
		m.JogSeek(-1, true)
		return nil
	case key.Matches(msg, Keys.ForwardFast):
		m.JogSeek(1, true)
		return nil
	case key.Matches(msg, Keys.ZoomIn):
		m.ZoomFallSpeed(true)
		return nil
	case key.Matches(msg, Keys.ZoomOut):
		m.ZoomFallSpeed(false)
		return nil
	}

	// letters play notes while the qwerty piano is on
	if m.PianoMode {
		switch {
		case key.Matches(msg, Keys.OctaveDown):
			shiftOctave(m, -1)
			return nil
		case key.Matches(msg, Keys.OctaveUp):
			shiftOctave(m, 1)
			return nil
		}
		if cmd, ok := playPianoKey(m, msg.String()); ok {
			return cmd
		}
		return nil
	}

	switch {
	case key.Matches(msg, Keys.Stop):
		StopPlayback(m)
	case key.Matches(msg, Keys.Restart):
		RestartPlayback(m)
	case key.Matches(msg, Keys.Faster):
		m.CycleRate(1)
	case key.Matches(msg, Keys.Slower):
		m.CycleRate(-1)
	case key.Matches(msg, Keys.Hand):
		m.CycleHand()
	case key.Matches(msg, Keys.Instrument):
		m.CycleInstrument()
	case key.Matches(msg, Keys.Help):
		m.ShowHelp = !m.ShowHelp
	}
	return nil
}

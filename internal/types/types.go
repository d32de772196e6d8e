package types

import "strings"

// RunMode is the transport run state
type RunMode int

const (
	Stopped RunMode = iota
	Playing
	Paused
)

func (r RunMode) String() string {
	switch r {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// HandView restricts which score tracks produce audio and visual output.
// Track 0 is the primary (right) hand, track 1 the secondary (left) hand.
type HandView int

const (
	BothHands HandView = iota
	RightHand
	LeftHand
)

func (h HandView) String() string {
	switch h {
	case RightHand:
		return "right"
	case LeftHand:
		return "left"
	default:
		return "both"
	}
}

// Allows reports whether notes from the given track pass the filter.
// Tracks beyond the first two are only shown when both hands are selected.
func (h HandView) Allows(track int) bool {
	switch h {
	case RightHand:
		return track == 0
	case LeftHand:
		return track == 1
	default:
		return true
	}
}

// Next cycles both -> right -> left -> both
func (h HandView) Next() HandView {
	return (h + 1) % 3
}

// ParseHandView parses "both", "right"/"primary" or "left"/"secondary"
func ParseHandView(s string) (HandView, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "both", "":
		return BothHands, true
	case "right", "primary":
		return RightHand, true
	case "left", "secondary":
		return LeftHand, true
	}
	return BothHands, false
}

// Feedback is the per-pitch verdict comparing live input to the score
type Feedback int

const (
	FeedbackNone Feedback = iota
	FeedbackCorrect
	FeedbackIncorrect
)

func (f Feedback) String() string {
	switch f {
	case FeedbackCorrect:
		return "correct"
	case FeedbackIncorrect:
		return "incorrect"
	default:
		return "none"
	}
}

// Instrument selects the timbre the sound renderer builds its voices with.
// The engine never interprets it.
type Instrument string

const (
	Piano    Instrument = "piano"
	Electric Instrument = "electric"
	Organ    Instrument = "organ"
	Strings  Instrument = "strings"
	Synth    Instrument = "synth"
)

// Instruments lists the selectable timbres in menu order
var Instruments = []Instrument{Piano, Electric, Organ, Strings, Synth}

// NextInstrument cycles through Instruments
func NextInstrument(i Instrument) Instrument {
	for idx, candidate := range Instruments {
		if candidate == i {
			return Instruments[(idx+1)%len(Instruments)]
		}
	}
	return Instruments[0]
}

// ParseInstrument accepts any of the Instruments names
func ParseInstrument(s string) (Instrument, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, candidate := range Instruments {
		if string(candidate) == s {
			return candidate, true
		}
	}
	return Piano, false
}

// PlaybackRates are the rate multipliers offered by the controls
var PlaybackRates = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 2.0}

package views

import (
	"strings"

	"github.com/schollz/keyfall/internal/model"
)

// renderRuler labels the seek bar with times across [0, duration]. The
// interval grows with the duration and labels that would collide with the
// previous one are skipped.
func renderRuler(width int, duration float64) string {
	if width <= 0 {
		return ""
	}
	line := []rune(strings.Repeat(" ", width))
	if duration <= 0 {
		return string(line)
	}

	var interval float64
	switch {
	case duration < 10:
		interval = 1
	case duration < 60:
		interval = 5
	case duration < 300:
		interval = 30
	case duration < 1200:
		interval = 60
	default:
		interval = 300
	}

	next := 0 // first free column
	for t := 0.0; t <= duration+1e-9; t += interval {
		label := rulerLabel(t)
		if len(label) > width {
			break
		}
		pos := int(float64(width-1) * t / duration)
		start := pos - len(label)/2
		if start < 0 {
			start = 0
		}
		if start+len(label) > width {
			start = width - len(label)
		}
		if start < next {
			continue
		}
		copy(line[start:], []rune(label))
		next = start + len(label) + 1
	}
	return string(line)
}

// rulerLabel drops the tenths that FormatTime shows
func rulerLabel(t float64) string {
	s := model.FormatTime(t)
	return s[:len(s)-2]
}

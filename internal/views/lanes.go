package views

import (
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/schollz/keyfall/internal/live"
	"github.com/schollz/keyfall/internal/model"
	"github.com/schollz/keyfall/internal/types"
)

const (
	NaturalColor   = "#00f3ff"
	SharpColor     = "#ff00aa"
	CorrectColor   = "#39ff14"
	IncorrectColor = "#ff3131"
	GridColor      = "#303030"
	KeyWhite       = "#d0d0d0"
	KeyBlack       = "#202020"
	FlashColor     = "#ffffff"
)

const (
	noteChar      = '█'
	sharpNoteChar = '▓'
	gridChar      = '│'
)

type cell struct {
	ch rune
	fg string
	bg string
}

var blank = cell{ch: ' '}

// laneColor is the note colour for a lane. The secondary hand is drawn a
// shade darker so the hands stay apart when they overlap.
func laneColor(sharp bool, track int) string {
	base := NaturalColor
	if sharp {
		base = SharpColor
	}
	if track == 0 {
		return base
	}
	c, err := colorful.Hex(base)
	if err != nil {
		return base
	}
	return c.BlendLab(colorful.Color{}, 0.35).Clamped().Hex()
}

// feedbackColor tints lane toward the verdict colour
func feedbackColor(lane string, fb types.Feedback) string {
	target := ""
	switch fb {
	case types.FeedbackCorrect:
		target = CorrectColor
	case types.FeedbackIncorrect:
		target = IncorrectColor
	default:
		return lane
	}
	a, errA := colorful.Hex(lane)
	b, errB := colorful.Hex(target)
	if errA != nil || errB != nil {
		return target
	}
	return a.BlendLab(b, 0.75).Clamped().Hex()
}

func toCol(x, scale float64) int {
	return int(math.Floor(x * scale))
}

// buildLanes lays the last frame out on a rows x cols grid
func buildLanes(m *model.Model) [][]cell {
	rows, cols := m.LaneRows(), m.LaneCols()
	canvas := m.Canvas()
	scale := float64(cols) / canvas.Width

	grid := make([][]cell, rows)
	for r := range grid {
		grid[r] = make([]cell, cols)
		for c := range grid[r] {
			grid[r][c] = blank
		}
	}

	for _, x := range m.Frame.GridLines {
		c := toCol(x, scale)
		if c < 0 || c >= cols {
			continue
		}
		for r := 0; r < rows; r++ {
			grid[r][c] = cell{ch: gridChar, fg: GridColor}
		}
	}

	// naturals first so sharps sit on top
	for _, sharp := range []bool{false, true} {
		for _, vn := range m.Frame.Notes {
			if vn.Sharp != sharp {
				continue
			}
			x0 := toCol(vn.X, scale)
			x1 := toCol(vn.X+vn.Width, scale)
			if x1 <= x0 {
				x1 = x0 + 1
			}
			y0 := int(math.Floor(vn.Y / m.RowPixels))
			y1 := int(math.Ceil((vn.Y + vn.Height) / m.RowPixels))
			ch := noteChar
			if sharp {
				ch = sharpNoteChar
			}
			fg := laneColor(sharp, vn.Track)
			for r := max(y0, 0); r < min(y1, rows); r++ {
				for c := max(x0, 0); c < min(x1, cols); c++ {
					grid[r][c] = cell{ch: ch, fg: fg}
				}
			}
		}
	}

	for _, l := range m.Frame.Labels {
		r := int(math.Floor(l.Y / m.RowPixels))
		if r < 0 || r >= rows {
			continue
		}
		name := []rune(l.Name)
		start := toCol(l.X, scale) - len(name)/2
		for i, ch := range name {
			c := start + i
			if c < 0 || c >= cols {
				continue
			}
			under := grid[r][c]
			grid[r][c] = cell{ch: ch, fg: KeyBlack, bg: under.fg}
		}
	}
	return grid
}

// keyAt maps every column to the natural and sharp key under it, -1 for none
func keyAt(m *model.Model) (naturals, sharps []int) {
	cols := m.LaneCols()
	scale := float64(cols) / m.Canvas().Width
	naturals = make([]int, cols)
	sharps = make([]int, cols)
	for c := range naturals {
		naturals[c], sharps[c] = -1, -1
	}
	for p := m.Keyboard.Min; p <= m.Keyboard.Max; p++ {
		lane, ok := m.Keyboard.LaneFor(p)
		if !ok {
			continue
		}
		dst := naturals
		w := m.Keyboard.NaturalWidth
		if lane.Sharp {
			dst = sharps
			w = lane.Width
		}
		x0 := toCol(lane.X, scale)
		x1 := toCol(lane.X+w, scale)
		if x1 <= x0 {
			x1 = x0 + 1
		}
		for c := max(x0, 0); c < min(x1, cols); c++ {
			dst[c] = p
		}
	}
	return naturals, sharps
}

// buildKeyboard draws two rows of keys. Sharps show on the top row only.
func buildKeyboard(m *model.Model, now time.Time) [][]cell {
	naturals, sharps := keyAt(m)
	active := make(map[int]live.FeedbackEntry)
	for _, e := range m.Frame.Active {
		if _, ok := active[e.Pitch]; !ok {
			active[e.Pitch] = e
		}
	}

	keyColor := func(p int, sharp bool) string {
		if m.Flashing(p, now) {
			return FlashColor
		}
		if e, ok := active[p]; ok {
			track := e.Track
			if track < 0 {
				track = 0
			}
			return feedbackColor(laneColor(sharp, track), e.Feedback)
		}
		if sharp {
			return KeyBlack
		}
		return KeyWhite
	}

	cols := len(naturals)
	rowsOut := [][]cell{make([]cell, cols), make([]cell, cols)}
	for c := 0; c < cols; c++ {
		for r := 0; r < 2; r++ {
			p := naturals[c]
			sharp := false
			if r == 0 && sharps[c] >= 0 {
				p, sharp = sharps[c], true
			}
			if p < 0 {
				rowsOut[r][c] = blank
				continue
			}
			ch := noteChar
			// a gap at the right edge of each natural key
			if !sharp && (c+1 == cols || naturals[c+1] != p) {
				ch = '▌'
			}
			rowsOut[r][c] = cell{ch: ch, fg: keyColor(p, sharp)}
		}
	}
	return rowsOut
}

// renderCells joins runs of identically styled cells into one styled span
func renderCells(rows [][]cell) string {
	var sb strings.Builder
	for _, row := range rows {
		for i := 0; i < len(row); {
			j := i
			var run []rune
			for j < len(row) && row[j].fg == row[i].fg && row[j].bg == row[i].bg {
				run = append(run, row[j].ch)
				j++
			}
			style := lipgloss.NewStyle()
			if row[i].fg != "" {
				style = style.Foreground(lipgloss.Color(row[i].fg))
			}
			if row[i].bg != "" {
				style = style.Background(lipgloss.Color(row[i].bg))
			}
			sb.WriteString(style.Render(string(run)))
			i = j
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderLanes draws the falling notes of the last frame
func RenderLanes(m *model.Model) string {
	return renderCells(buildLanes(m))
}

// RenderKeyboard draws the keyboard with held, sounding and hit keys lit
func RenderKeyboard(m *model.Model, now time.Time) string {
	return renderCells(buildKeyboard(m, now))
}

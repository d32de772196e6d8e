package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/model"
	"github.com/schollz/keyfall/internal/types"
)

// Common styles used across the screen
type ViewStyles struct {
	Title     lipgloss.Style
	Normal    lipgloss.Style
	Label     lipgloss.Style
	Container lipgloss.Style
	Playback  lipgloss.Style
	Paused    lipgloss.Style
	Piano     lipgloss.Style
}

func getCommonStyles() *ViewStyles {
	return &ViewStyles{
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color(NaturalColor)),
		Normal:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Container: lipgloss.NewStyle().Padding(1, 2),
		Playback:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Paused:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Piano:     lipgloss.NewStyle().Foreground(lipgloss.Color(SharpColor)),
	}
}

func modeIndicator(styles *ViewStyles, mode types.RunMode) string {
	switch mode {
	case types.Playing:
		return styles.Playback.Render("▶")
	case types.Paused:
		return styles.Paused.Render("‖")
	default:
		return styles.Label.Render("■")
	}
}

// RenderHeader renders the title line, the seek bar and the time ruler
func RenderHeader(m *model.Model, styles *ViewStyles) string {
	width := m.LaneCols()
	st := m.Frame.State
	pos := m.FramePosition()

	name := "no score"
	if st.Loaded {
		name = st.ScoreName
	}
	left := styles.Title.Render("keyfall") + " " + styles.Normal.Render(name)

	parts := []string{
		modeIndicator(styles, st.Mode),
		styles.Normal.Render(fmt.Sprintf("%s / %s", model.FormatTime(pos), model.FormatTime(st.Duration))),
		styles.Label.Render(fmt.Sprintf("%.2fx", st.Rate)),
		styles.Label.Render(st.HandName),
		styles.Label.Render(string(st.Instrument)),
	}
	if m.PianoMode {
		parts = append(parts, styles.Piano.Render("qwerty "+geometry.NoteName((m.PianoOctave+1)*12)))
	}
	if m.DeviceName != "" {
		parts = append(parts, styles.Label.Render("midi: "+m.DeviceName))
	}
	right := strings.Join(parts, "  ")

	var content strings.Builder
	content.WriteString(spread(left, right, width))
	content.WriteString("\n")

	bar := progress.New(progress.WithGradient(NaturalColor, SharpColor), progress.WithoutPercentage())
	bar.Width = width
	pct := 0.0
	if st.Duration > 0 {
		pct = pos / st.Duration
	}
	content.WriteString(bar.ViewAs(pct))
	content.WriteString("\n")
	content.WriteString(styles.Label.Render(renderRuler(width, st.Duration)))
	content.WriteString("\n")
	return content.String()
}

// spread pads between left and right so the line fills width
func spread(left, right string, width int) string {
	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

// RenderFooter renders the status line and the key help
func RenderFooter(m *model.Model, styles *ViewStyles, keys help.KeyMap) string {
	h := help.New()
	h.Width = m.LaneCols()
	var content strings.Builder
	content.WriteString(styles.Label.Render(m.Status))
	content.WriteString("\n")
	content.WriteString(h.ShortHelpView(keys.ShortHelp()))
	return content.String()
}

// RenderMainView draws the whole screen: header, falling notes, keyboard
// and footer. The full key help replaces the notes while it is open.
func RenderMainView(m *model.Model, keys help.KeyMap, now time.Time) string {
	styles := getCommonStyles()
	var content strings.Builder
	content.WriteString(RenderHeader(m, styles))
	if m.ShowHelp {
		content.WriteString(renderFullHelp(m, keys))
	} else {
		content.WriteString(RenderLanes(m))
	}
	content.WriteString(RenderKeyboard(m, now))
	content.WriteString(RenderFooter(m, styles, keys))
	return styles.Container.Render(content.String())
}

func renderFullHelp(m *model.Model, keys help.KeyMap) string {
	h := help.New()
	h.Width = m.LaneCols()
	text := h.FullHelpView(keys.FullHelp())
	lines := strings.Split(text, "\n")
	rows := m.LaneRows()
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return strings.Join(lines[:rows], "\n") + "\n"
}

package input

import (
	"github.com/charmbracelet/bubbles/key"
)

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

// KeyMap is every control the terminal front end understands
type KeyMap struct {
	Play        key.Binding
	Stop        key.Binding
	Restart     key.Binding
	Back        key.Binding
	Forward     key.Binding
	BackFast    key.Binding
	ForwardFast key.Binding
	ZoomIn      key.Binding
	ZoomOut     key.Binding
	Faster      key.Binding
	Slower      key.Binding
	Hand        key.Binding
	Instrument  key.Binding
	Piano       key.Binding
	OctaveDown  key.Binding
	OctaveUp    key.Binding
	Help        key.Binding
	Quit        key.Binding
}

var Keys = KeyMap{
	Play:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Stop:        binding("stop", "s"),
	Restart:     binding("restart", "r"),
	Back:        binding("back", "left"),
	Forward:     binding("forward", "right"),
	BackFast:    binding("back more", "shift+left"),
	ForwardFast: binding("forward more", "shift+right"),
	ZoomIn:      binding("stretch", "up"),
	ZoomOut:     binding("squeeze", "down"),
	Faster:      binding("faster", "+", "="),
	Slower:      binding("slower", "-", "_"),
	Hand:        binding("hand", "h"),
	Instrument:  binding("instrument", "i"),
	Piano:       binding("qwerty piano", "tab"),
	OctaveDown:  binding("octave down", "z"),
	OctaveUp:    binding("octave up", "x"),
	Help:        binding("help", "?"),
	Quit:        binding("quit", "q", "ctrl+c"),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Stop, k.Back, k.Forward, k.Hand, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop, k.Restart},
		{k.Back, k.Forward, k.BackFast, k.ForwardFast},
		{k.ZoomIn, k.ZoomOut, k.Faster, k.Slower},
		{k.Hand, k.Instrument, k.Piano, k.OctaveDown, k.OctaveUp},
		{k.Help, k.Quit},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/schollz/keyfall/internal/config"
	"github.com/schollz/keyfall/internal/engine"
	"github.com/schollz/keyfall/internal/input"
	"github.com/schollz/keyfall/internal/midiin"
	"github.com/schollz/keyfall/internal/model"
	"github.com/schollz/keyfall/internal/remote"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/sound"
	"github.com/schollz/keyfall/internal/transport"
	"github.com/schollz/keyfall/internal/types"
	"github.com/schollz/keyfall/internal/views"
	"github.com/schollz/keyfall/internal/window"
)

const (
	pumpInterval = 5 * time.Millisecond
	bounceStep   = 5 * time.Millisecond
)

var (
	Version = "dev"

	// Command-line configuration
	flags struct {
		debug      string
		configPath string
		host       string
		port       int
		midiIn     string
		noMIDI     bool
		ascii      bool
		remote     bool
		httpAddr   string
		hand       string
		instrument string
		rate       float64
		out        string
	}
)

var rootCmd = &cobra.Command{
	Use:   "keyfall [score.mid]",
	Short: "Falling-notes piano player and practice tool",
	Long: `keyfall plays a MIDI file through SuperCollider while its notes fall
toward an on-screen keyboard. Notes played on a MIDI keyboard are marked
correct or incorrect against the score as they are played.`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runPlay,
}

var bounceCmd = &cobra.Command{
	Use:   "bounce score.mid",
	Short: "Render a score to an audio file without a sound server",
	Args:  cobra.ExactArgs(1),
	RunE:  runBounce,
}

var serveCmd = &cobra.Command{
	Use:   "serve [score.mid]",
	Short: "Run headless with HTTP and OSC control",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List MIDI input devices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		defer midiin.CloseDriver()
		names := midiin.Devices()
		if len(names) == 0 {
			fmt.Println("no MIDI inputs found")
			return
		}
		for i, name := range names {
			fmt.Printf("%d: %s\n", i, name)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.debug, "log", "l", "",
		"Write debug logs to specified file (empty disables)")
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"JSON settings file")
	rootCmd.PersistentFlags().StringVar(&flags.host, "host", "localhost",
		"SuperCollider host")
	rootCmd.PersistentFlags().IntVar(&flags.port, "port", 57120,
		"OSC port for SuperCollider communication")
	rootCmd.PersistentFlags().StringVarP(&flags.midiIn, "midi", "m", "",
		"MIDI input to listen to (substring of the device name)")
	rootCmd.PersistentFlags().BoolVar(&flags.noMIDI, "no-midi", false,
		"Do not open a MIDI input")
	rootCmd.PersistentFlags().StringVar(&flags.hand, "hand", "both",
		"Hands to play and show: both, right or left")
	rootCmd.PersistentFlags().StringVar(&flags.instrument, "instrument", "piano",
		"Instrument: piano, electric, organ, strings or synth")
	rootCmd.PersistentFlags().Float64Var(&flags.rate, "rate", 1,
		"Playback rate relative to the score tempo")
	rootCmd.PersistentFlags().StringVar(&flags.httpAddr, "http", "localhost:8321",
		"HTTP control address")

	rootCmd.Flags().BoolVar(&flags.ascii, "ascii", false,
		"Disable colours")
	rootCmd.Flags().BoolVar(&flags.remote, "remote", false,
		"Also accept HTTP and OSC control while the screen is running")
	bounceCmd.Flags().StringVarP(&flags.out, "out", "o", "",
		"Output path; the extension picks wav, aiff, mp3, ogg or flac (default: score name with .wav)")

	rootCmd.AddCommand(bounceCmd, serveCmd, devicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging routes the log package to the debug file, or discards it
func setupLogging() (io.Closer, error) {
	if flags.debug == "" {
		log.SetOutput(io.Discard)
		return nil, nil
	}
	f, err := tea.LogToFile(flags.debug, "debug")
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	log.SetOutput(f)
	// Set log flags to include file and line number for VS Code clickable links
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Debug logging enabled")
	return f, nil
}

// loadSettings reads the config file and applies flags the user set
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.OSC.Host = flags.host
	}
	if changed("port") {
		cfg.OSC.Port = flags.port
	}
	if changed("midi") {
		cfg.MIDIInput = flags.midiIn
	}
	if changed("hand") {
		cfg.Hand = flags.hand
	}
	if changed("instrument") {
		cfg.Instrument = flags.instrument
	}
	if changed("rate") {
		cfg.Rate = flags.rate
	}
	if changed("http") {
		cfg.HTTPAddr = flags.httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// newEngine builds an engine with the session settings applied
func newEngine(cfg *config.Config, opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{
		engine.WithLookahead(cfg.Lookahead()),
		engine.WithKeyboard(cfg.KeyboardLayout()),
		engine.WithGrace(cfg.Grace()),
	}, opts...)
	eng := engine.New(opts...)
	eng.SetRate(cfg.Rate)
	eng.SetHandView(cfg.HandView())
	eng.SetInstrument(cfg.InstrumentValue())
	return eng
}

func loadScore(eng *engine.Engine, args []string) error {
	if len(args) == 0 {
		return nil
	}
	sc, err := score.LoadFile(args[0])
	if err != nil {
		return err
	}
	eng.Load(sc)
	log.Printf("Loaded %s: %d tracks, %.1fs at %.0f BPM (%s)", sc.Name, sc.NumTracks(), sc.Duration, sc.BaseTempo, sc.ID)
	return nil
}

// openMIDI connects the configured input unless disabled. A missing device
// is not fatal.
func openMIDI(cfg *config.Config, eng *engine.Engine) *midiin.Listener {
	if flags.noMIDI {
		return nil
	}
	l, err := midiin.Open(cfg.MIDIInput, eng)
	if err != nil {
		log.Printf("MIDI input unavailable: %v", err)
		return nil
	}
	return l
}

// startRemote runs the HTTP API and the OSC control listener until ctx ends
func startRemote(ctx context.Context, cfg *config.Config, eng *engine.Engine) {
	frame := window.Frame{
		Width:     cfg.KeyboardLayout().TotalWidth(),
		Height:    600,
		FallSpeed: cfg.Display.FallSpeed,
	}
	go func() {
		if err := remote.Serve(ctx, cfg.HTTPAddr, remote.NewRouter(eng, frame, cfg.AllowedOrigins)); err != nil {
			log.Printf("Error running HTTP server: %v", err)
		}
	}()
	go func() {
		if err := remote.ServeOSC(ctx, fmt.Sprintf(":%d", cfg.OSC.Port+1), eng); err != nil {
			log.Printf("Error running OSC control server: %v", err)
		}
	}()
}

func runPlay(cmd *cobra.Command, args []string) error {
	logFile, err := setupLogging()
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if flags.ascii {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	voice := sound.NewOSCVoice(cfg.OSC.Host, cfg.OSC.Port, cfg.OSCLatency())
	eng := newEngine(cfg, engine.WithVoice(voice))
	defer eng.Close()
	if err := loadScore(eng, args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		if err := eng.Run(ctx, pumpInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Engine stopped: %v", err)
		}
	}()
	if flags.remote {
		startRemote(ctx, cfg, eng)
	}

	tm := &TrackerModel{model: model.NewModel(eng, cfg)}
	if l := openMIDI(cfg, eng); l != nil {
		defer midiin.CloseDriver()
		defer l.Close()
		tm.model.DeviceName = l.Name()
	}
	if st := eng.State(); st.Loaded {
		tm.model.Status = fmt.Sprintf("Loaded %s, space to play", st.ScoreName)
	} else {
		tm.model.Status = "No score loaded"
	}

	p := tea.NewProgram(tm, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logFile, err := setupLogging()
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	voice := sound.NewOSCVoice(cfg.OSC.Host, cfg.OSC.Port, cfg.OSCLatency())
	eng := newEngine(cfg, engine.WithVoice(voice))
	defer eng.Close()
	if err := loadScore(eng, args); err != nil {
		return err
	}
	if l := openMIDI(cfg, eng); l != nil {
		defer midiin.CloseDriver()
		defer l.Close()
		fmt.Printf("Listening to MIDI input %s\n", l.Name())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	startRemote(ctx, cfg, eng)
	fmt.Printf("Serving control API on http://%s (OSC control on port %d)\n", cfg.HTTPAddr, cfg.OSC.Port+1)
	if err := eng.Run(ctx, pumpInterval); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// bounceScore plays sc to the end on a manual clock and returns the voice
// holding every note struck
func bounceScore(cfg *config.Config, sc *score.Score) *sound.BounceVoice {
	clock := transport.NewManualClock(time.Unix(0, 0))
	voice := sound.NewBounceVoice(clock.Now())
	eng := newEngine(cfg, engine.WithClock(clock), engine.WithVoice(voice))
	defer eng.Close()
	eng.Load(sc)
	eng.Start()
	for eng.State().Mode == types.Playing {
		clock.Advance(bounceStep)
		eng.Pump()
	}
	return voice
}

func runBounce(cmd *cobra.Command, args []string) error {
	logFile, err := setupLogging()
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	sc, err := score.LoadFile(args[0])
	if err != nil {
		return err
	}
	out := flags.out
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".wav"
	}

	start := time.Now()
	voice := bounceScore(cfg, sc)
	if err := voice.Export(out, cfg.SampleRate); err != nil {
		return err
	}
	fmt.Printf("Wrote %s: %d notes, %.1fs of score in %v\n", out, len(voice.Strikes()), sc.Duration, time.Since(start).Round(time.Millisecond))
	return nil
}

// TrackerModel wraps the model and implements the tea.Model interface
type TrackerModel struct {
	model *model.Model
}

func (tm *TrackerModel) Init() tea.Cmd {
	return input.Tick(tm.model)
}

func (tm *TrackerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		tm.model.TermHeight = msg.Height
		tm.model.TermWidth = msg.Width
		return tm, nil

	case input.TickMsg:
		tm.model.Tick(time.Time(msg))
		return tm, input.Tick(tm.model)

	case input.PianoReleaseMsg:
		input.ReleasePiano(tm.model, msg)
		return tm, nil

	case tea.KeyMsg:
		return tm, input.HandleKeyInput(tm.model, msg)
	}

	return tm, nil
}

func (tm *TrackerModel) View() string {
	if tm.model.TermWidth == 0 {
		return ""
	}
	return views.RenderMainView(tm.model, input.Keys, time.Now())
}

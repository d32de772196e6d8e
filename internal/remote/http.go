// Package remote exposes the engine's controls over HTTP and OSC so a
// browser page, a script or another music program can drive playback.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/cors"

	"github.com/schollz/keyfall/internal/engine"
	"github.com/schollz/keyfall/internal/geometry"
	"github.com/schollz/keyfall/internal/live"
	"github.com/schollz/keyfall/internal/score"
	"github.com/schollz/keyfall/internal/types"
	"github.com/schollz/keyfall/internal/window"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Engine is the part of *engine.Engine the control surfaces drive.
type Engine interface {
	Load(sc *score.Score)
	State() engine.State
	Start() bool
	Pause() bool
	Stop()
	Restart()
	Seek(seconds float64) float64
	SetRate(multiplier float64) bool
	SetHandView(h types.HandView)
	SetInstrument(i types.Instrument)
	NoteOn(pitch int, velocity float64) types.Feedback
	NoteOff(pitch int)
	Active() []live.FeedbackEntry
	Frame(f window.Frame) engine.FrameResult
}

type seekRequest struct {
	Seconds float64 `json:"seconds"`
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

type handRequest struct {
	Hand string `json:"hand"`
}

type instrumentRequest struct {
	Instrument string `json:"instrument"`
}

type noteRequest struct {
	Pitch    int      `json:"pitch"`
	Velocity *float64 `json:"velocity,omitempty"`
}

type loadRequest struct {
	Path string `json:"path"`
}

type noteResponse struct {
	Pitch    int    `json:"pitch"`
	Feedback string `json:"feedback"`
}

type activeEntry struct {
	Pitch    int    `json:"pitch"`
	Name     string `json:"name"`
	Track    int    `json:"track"`
	Live     bool   `json:"live"`
	Feedback string `json:"feedback"`
}

type frameNote struct {
	Track    int     `json:"track"`
	Pitch    uint8   `json:"pitch"`
	Name     string  `json:"name"`
	Onset    float64 `json:"onset"`
	Duration float64 `json:"duration"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Sharp    bool    `json:"sharp"`
}

type frameLabel struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type frameResponse struct {
	Now       float64       `json:"now"`
	Mode      string        `json:"mode"`
	Duration  float64       `json:"duration"`
	Notes     []frameNote   `json:"notes"`
	Hits      []frameNote   `json:"hits"`
	Labels    []frameLabel  `json:"labels"`
	Active    []activeEntry `json:"active"`
	GridLines []float64     `json:"gridLines"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	eng   Engine
	frame window.Frame
}

// NewRouter builds the control API. frame supplies the default canvas for
// GET /frame; width and height query parameters override it. Browser
// requests are accepted only from origins listed in allowedOrigins ("*"
// allows any); clients that send no Origin header are always served.
func NewRouter(eng Engine, frame window.Frame, allowedOrigins []string) http.Handler {
	h := &handler{eng: eng, frame: frame}
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/state", h.handleState).Methods("GET")
	router.HandleFunc("/active", h.handleActive).Methods("GET")
	router.HandleFunc("/frame", h.handleFrame).Methods("GET")
	router.HandleFunc("/load", h.handleLoad).Methods("POST")
	router.HandleFunc("/play", h.transport(func() { eng.Start() })).Methods("POST")
	router.HandleFunc("/pause", h.transport(func() { eng.Pause() })).Methods("POST")
	router.HandleFunc("/stop", h.transport(eng.Stop)).Methods("POST")
	router.HandleFunc("/restart", h.transport(eng.Restart)).Methods("POST")
	router.HandleFunc("/seek", h.handleSeek).Methods("POST")
	router.HandleFunc("/rate", h.handleRate).Methods("POST")
	router.HandleFunc("/hand", h.handleHand).Methods("POST")
	router.HandleFunc("/instrument", h.handleInstrument).Methods("POST")
	router.HandleFunc("/noteon", h.handleNoteOn).Methods("POST")
	router.HandleFunc("/noteoff", h.handleNoteOff).Methods("POST")

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			for _, o := range allowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(rejectForeignOrigins(c, router))
}

// rejectForeignOrigins refuses browser requests from origins the CORS
// policy does not allow. Simple requests skip the preflight, so CORS
// headers alone would not stop them from reaching the engine.
func rejectForeignOrigins(c *cors.Cors, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !c.OriginAllowed(r) {
			log.Printf("HTTP: refused %s %s from origin %s", r.Method, r.URL.Path, origin)
			writeError(w, http.StatusForbidden, fmt.Errorf("origin %s not allowed", origin))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("HTTP: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (h *handler) transport(op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op()
		writeJSON(w, http.StatusOK, h.eng.State())
	}
}

func (h *handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}
	sc, err := score.LoadFile(req.Path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.eng.Load(sc)
	log.Printf("HTTP: loaded %s (%s)", sc.Name, sc.ID)
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.eng.Seek(req.Seconds)
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) handleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !h.eng.SetRate(req.Rate) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid rate %v", req.Rate))
		return
	}
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) handleHand(w http.ResponseWriter, r *http.Request) {
	var req handRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hand, ok := types.ParseHandView(req.Hand)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown hand %q", req.Hand))
		return
	}
	h.eng.SetHandView(hand)
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) handleInstrument(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	inst, ok := types.ParseInstrument(req.Instrument)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown instrument %q", req.Instrument))
		return
	}
	h.eng.SetInstrument(inst)
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) handleNoteOn(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	vel := 1.0
	if req.Velocity != nil {
		vel = *req.Velocity
	}
	fb := h.eng.NoteOn(req.Pitch, vel)
	writeJSON(w, http.StatusOK, noteResponse{Pitch: req.Pitch, Feedback: fb.String()})
}

func (h *handler) handleNoteOff(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.eng.NoteOff(req.Pitch)
	writeJSON(w, http.StatusOK, h.eng.State())
}

func (h *handler) handleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toActive(h.eng.Active()))
}

func (h *handler) handleFrame(w http.ResponseWriter, r *http.Request) {
	f := h.frame
	for key, dst := range map[string]*float64{"width": &f.Width, "height": &f.Height} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s %q", key, raw))
			return
		}
		*dst = v
	}
	res := h.eng.Frame(f)
	out := frameResponse{
		Now:       res.Now,
		Mode:      res.Mode.String(),
		Duration:  res.Duration,
		Notes:     make([]frameNote, 0, len(res.Notes)),
		Hits:      make([]frameNote, 0, len(res.Hits)),
		Labels:    make([]frameLabel, 0, len(res.Labels)),
		Active:    toActive(res.Active),
		GridLines: res.GridLines,
	}
	for _, vn := range res.Notes {
		out.Notes = append(out.Notes, frameNote{
			Track: vn.Track, Pitch: vn.Note.Pitch, Name: vn.Note.Name,
			Onset: vn.Note.Onset, Duration: vn.Note.Duration,
			X: vn.X, Y: vn.Y, Width: vn.Width, Height: vn.Height, Sharp: vn.Sharp,
		})
	}
	for _, hit := range res.Hits {
		out.Hits = append(out.Hits, frameNote{
			Track: hit.Track, Pitch: hit.Note.Pitch, Name: hit.Note.Name,
			Onset: hit.Note.Onset, Duration: hit.Note.Duration,
			X: hit.X, Y: hit.Y, Sharp: hit.Sharp,
		})
	}
	for _, l := range res.Labels {
		out.Labels = append(out.Labels, frameLabel{Name: l.Name, X: l.X, Y: l.Y})
	}
	writeJSON(w, http.StatusOK, out)
}

func toActive(entries []live.FeedbackEntry) []activeEntry {
	out := make([]activeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, activeEntry{
			Pitch:    e.Pitch,
			Name:     geometry.NoteName(e.Pitch),
			Track:    e.Track,
			Live:     e.Live(),
			Feedback: e.Feedback.String(),
		})
	}
	return out
}

// Serve runs the control API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP control server on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

package remote

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/keyfall/internal/types"
)

// Addresses accepted by the OSC control surface
const (
	AddrPlay       = "/keyfall/ctl/play"
	AddrPause      = "/keyfall/ctl/pause"
	AddrStop       = "/keyfall/ctl/stop"
	AddrRestart    = "/keyfall/ctl/restart"
	AddrSeek       = "/keyfall/ctl/seek"
	AddrRate       = "/keyfall/ctl/rate"
	AddrHand       = "/keyfall/ctl/hand"
	AddrInstrument = "/keyfall/ctl/instrument"
	AddrNoteOn     = "/keyfall/ctl/noteon"
	AddrNoteOff    = "/keyfall/ctl/noteoff"
)

func argFloat(msg *osc.Message, i int) (float64, bool) {
	if i >= len(msg.Arguments) {
		return 0, false
	}
	switch v := msg.Arguments[i].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func argString(msg *osc.Message, i int) (string, bool) {
	if i >= len(msg.Arguments) {
		return "", false
	}
	s, ok := msg.Arguments[i].(string)
	return s, ok
}

// NewDispatcher routes control messages to eng. Malformed messages are
// logged and dropped.
func NewDispatcher(eng Engine) *osc.StandardDispatcher {
	d := osc.NewStandardDispatcher()
	add := func(addr string, fn func(msg *osc.Message) error) {
		if err := d.AddMsgHandler(addr, func(msg *osc.Message) {
			if err := fn(msg); err != nil {
				log.Printf("OSC: %s: %v", addr, err)
			}
		}); err != nil {
			log.Printf("OSC: register %s: %v", addr, err)
		}
	}

	add(AddrPlay, func(*osc.Message) error { eng.Start(); return nil })
	add(AddrPause, func(*osc.Message) error { eng.Pause(); return nil })
	add(AddrStop, func(*osc.Message) error { eng.Stop(); return nil })
	add(AddrRestart, func(*osc.Message) error { eng.Restart(); return nil })
	add(AddrSeek, func(msg *osc.Message) error {
		sec, ok := argFloat(msg, 0)
		if !ok {
			return fmt.Errorf("expected seconds, got %v", msg.Arguments)
		}
		eng.Seek(sec)
		return nil
	})
	add(AddrRate, func(msg *osc.Message) error {
		rate, ok := argFloat(msg, 0)
		if !ok {
			return fmt.Errorf("expected rate, got %v", msg.Arguments)
		}
		if !eng.SetRate(rate) {
			return fmt.Errorf("invalid rate %v", rate)
		}
		return nil
	})
	add(AddrHand, func(msg *osc.Message) error {
		s, _ := argString(msg, 0)
		hand, ok := types.ParseHandView(s)
		if !ok {
			return fmt.Errorf("unknown hand %q", s)
		}
		eng.SetHandView(hand)
		return nil
	})
	add(AddrInstrument, func(msg *osc.Message) error {
		s, _ := argString(msg, 0)
		inst, ok := types.ParseInstrument(s)
		if !ok {
			return fmt.Errorf("unknown instrument %q", s)
		}
		eng.SetInstrument(inst)
		return nil
	})
	add(AddrNoteOn, func(msg *osc.Message) error {
		pitch, ok := argFloat(msg, 0)
		if !ok {
			return fmt.Errorf("expected pitch, got %v", msg.Arguments)
		}
		vel, ok := argFloat(msg, 1)
		if !ok {
			vel = 1
		}
		eng.NoteOn(int(pitch), vel)
		return nil
	})
	add(AddrNoteOff, func(msg *osc.Message) error {
		pitch, ok := argFloat(msg, 0)
		if !ok {
			return fmt.Errorf("expected pitch, got %v", msg.Arguments)
		}
		eng.NoteOff(int(pitch))
		return nil
	})
	return d
}

// NewServer wraps NewDispatcher in an osc.Server listening on addr.
func NewServer(addr string, eng Engine) *osc.Server {
	return &osc.Server{Addr: addr, Dispatcher: NewDispatcher(eng)}
}

// ServeOSC listens for control messages on addr until ctx is done.
func ServeOSC(ctx context.Context, addr string, eng Engine) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("osc listen %s: %w", addr, err)
	}
	log.Printf("Starting OSC control server on %s", conn.LocalAddr())
	return serveOSC(ctx, conn, NewServer(addr, eng))
}

// serveOSC runs server on conn and closes conn when ctx ends
func serveOSC(ctx context.Context, conn net.PacketConn, server *osc.Server) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	err := server.Serve(conn)
	if ctx.Err() != nil {
		return nil
	}
	conn.Close()
	return fmt.Errorf("osc server: %w", err)
}

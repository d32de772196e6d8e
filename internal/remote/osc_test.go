package remote

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/keyfall/internal/engine"
	"github.com/schollz/keyfall/internal/transport"
	"github.com/schollz/keyfall/internal/types"
)

func message(addr string, args ...interface{}) *osc.Message {
	msg := osc.NewMessage(addr)
	for _, a := range args {
		msg.Append(a)
	}
	return msg
}

func TestOSCTransport(t *testing.T) {
	clock := transport.NewManualClock(time.Unix(1000, 0))
	e := engine.New(engine.WithClock(clock))
	defer e.Close()
	e.Load(demoScore())
	d := NewDispatcher(e)

	d.Dispatch(message(AddrPlay))
	assert.Equal(t, types.Playing, e.State().Mode)

	clock.Advance(time.Second)
	d.Dispatch(message(AddrPause))
	assert.Equal(t, types.Paused, e.State().Mode)
	assert.InDelta(t, 1.0, e.Now(), 1e-9)

	d.Dispatch(message(AddrSeek, float32(2.5)))
	assert.InDelta(t, 2.5, e.Now(), 1e-6)
	d.Dispatch(message(AddrSeek, int32(1)))
	assert.InDelta(t, 1.0, e.Now(), 1e-9)
	d.Dispatch(message(AddrSeek, "soon"))
	assert.InDelta(t, 1.0, e.Now(), 1e-9, "bad argument is dropped")

	d.Dispatch(message(AddrRestart))
	assert.Equal(t, types.Playing, e.State().Mode)
	assert.Equal(t, 0.0, e.Now())

	d.Dispatch(message(AddrStop))
	assert.Equal(t, types.Stopped, e.State().Mode)
}

func TestOSCSettings(t *testing.T) {
	e := engine.New(engine.WithClock(transport.NewManualClock(time.Unix(1000, 0))))
	defer e.Close()
	e.Load(demoScore())
	d := NewDispatcher(e)

	d.Dispatch(message(AddrRate, float32(0.75)))
	d.Dispatch(message(AddrRate, float32(-1)))
	d.Dispatch(message(AddrHand, "right"))
	d.Dispatch(message(AddrHand, "feet"))
	d.Dispatch(message(AddrInstrument, "strings"))
	d.Dispatch(message(AddrInstrument))

	st := e.State()
	assert.Equal(t, 0.75, st.Rate)
	assert.Equal(t, types.RightHand, st.HandView)
	assert.Equal(t, types.Strings, st.Instrument)
}

func TestOSCLiveNotes(t *testing.T) {
	e := engine.New(engine.WithClock(transport.NewManualClock(time.Unix(1000, 0))))
	defer e.Close()
	e.Load(demoScore())
	d := NewDispatcher(e)

	d.Dispatch(message(AddrNoteOn, int32(60), float32(0.9)))
	d.Dispatch(message(AddrNoteOn, int32(72)))
	assert.Equal(t, []int{60, 72}, e.State().Held)
	assert.Equal(t, types.FeedbackCorrect, e.Classify(60))

	d.Dispatch(message(AddrNoteOff, int32(60)))
	d.Dispatch(message(AddrNoteOff))
	assert.Equal(t, []int{72}, e.State().Held)
}

func TestServeOSCStopsWithContext(t *testing.T) {
	e := engine.New()
	defer e.Close()
	e.Load(demoScore())

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- serveOSC(ctx, conn, NewServer(conn.LocalAddr().String(), e))
	}()

	client := osc.NewClient("127.0.0.1", port)
	require.NoError(t, client.Send(message(AddrPlay)))
	assert.Eventually(t, func() bool {
		return e.State().Mode == types.Playing
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("osc server still running after cancel")
	}

	// the port is free again
	again, err := net.ListenPacket("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	again.Close()
}

func TestServeOSCBadAddress(t *testing.T) {
	e := engine.New()
	defer e.Close()
	err := ServeOSC(context.Background(), "not-an-address", e)
	assert.Error(t, err)
}

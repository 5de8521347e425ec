package routeros

import (
	"bytes"

	"github.com/firadio/routeros/internal/wire"
	"github.com/rs/zerolog"
)

// testConn builds a Connection with no real socket: its transmitter drains
// into an in-memory buffer and its tag router can be driven directly by
// calling route() with synthetic router sentences. This exercises the same
// Channel/Stream/tagRouter code Dial would wire up, without any networking.
type testConn struct {
	conn *Connection
	sent bytes.Buffer
}

func newTestConn() *testConn {
	tc := &testConn{}
	c := &Connection{
		log:         zerolog.Nop(),
		state:       stateConnected,
		transmitter: wire.NewTransmitter(),
	}
	c.tags = newTagRouter(c.log)
	c.receiver = wire.NewReceiver(c.tags.route)
	_ = c.transmitter.Ready(&tc.sent)
	tc.conn = c
	return tc
}

// sentSentences decodes every sentence written to the transmitter's sink so
// far.
func (tc *testConn) sentSentences() [][]string {
	var got [][]string
	r := wire.NewReceiver(func(w []string) { got = append(got, w) })
	_ = r.Write(tc.sent.Bytes())
	return got
}

// deliver simulates the router sending one sentence down the wire.
func (tc *testConn) deliver(words []string) {
	tc.conn.tags.route(words)
}

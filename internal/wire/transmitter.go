package wire

import (
	"errors"
	"io"
	"sync"

	"github.com/firadio/routeros/internal/proto"
)

// ErrNotConnected is returned by Write once the Transmitter has been closed.
var ErrNotConnected = errors.New("wire: not connected")

// Transmitter serializes sentences onto an io.Writer. Writes issued before
// Ready is called are buffered in a FIFO queue and drained, in order, the
// moment the sink becomes available — this lets Channels/Streams enqueue
// their request the instant they are constructed, without waiting on the
// Connector's dial to finish.
type Transmitter struct {
	mu     sync.Mutex
	sink   io.Writer
	queue  [][]byte
	closed bool
}

// NewTransmitter returns a Transmitter with no sink yet attached.
func NewTransmitter() *Transmitter {
	return &Transmitter{}
}

// Write encodes words as one sentence (words followed by the zero-length
// terminator) and either sends it immediately, if Ready has been called, or
// enqueues it for later draining.
func (t *Transmitter) Write(words []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrNotConnected
	}

	var buf []byte
	for _, w := range words {
		var err error
		buf, err = proto.EncodeWord(buf, w)
		if err != nil {
			return err
		}
	}
	buf = proto.EncodeLength(buf, 0)

	if t.sink == nil {
		t.queue = append(t.queue, buf)
		return nil
	}
	_, err := t.sink.Write(buf)
	return err
}

// Ready attaches the sink and drains any buffered sentences onto it, in the
// order they were enqueued. Sentence boundaries are preserved: each queued
// buffer already carries its own terminator, and one buffer is written in
// full before the next begins.
func (t *Transmitter) Ready(sink io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrNotConnected
	}

	t.sink = sink
	for _, buf := range t.queue {
		if _, err := sink.Write(buf); err != nil {
			return err
		}
	}
	t.queue = nil
	return nil
}

// Close marks the Transmitter closed. Any further Write calls fail with
// ErrNotConnected; anything still queued (never drained because Ready was
// never called) is discarded.
func (t *Transmitter) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.sink = nil
	t.queue = nil
}

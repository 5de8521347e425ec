package routeros

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/firadio/routeros/internal/proto"
)

// streamState is the per-stream state machine of §3 ("Stream state").
type streamState int

const (
	streamIdle streamState = iota
	streamStreaming
	streamPausing
	streamPaused
	streamStopping
	streamStopped
	streamTrapped
)

// sectionQuiescence is how long the stream waits, after the last sentence in
// the current section, before flushing it as a batch (§4.8).
const sectionQuiescence = 300 * time.Millisecond

// debounceSlack is added on top of the request's =interval= to decide a tick
// has gone silent (§4.8).
const debounceSlack = 300 * time.Millisecond

// Stream is a long-lived channel handle for subscriptions such as
// /ip/address/listen or /tool/torch. Data is delivered to the callback
// registered with OnData, either one row group at a time or, when the
// router tags replies with .section=, batched as full snapshots.
type Stream struct {
	conn    *Connection
	words   []string // original request words, without .tag
	tag     string
	onData  func(rows []map[string]string, err error)
	onDataMu sync.Mutex

	mu    sync.Mutex
	state streamState

	hasSection     bool
	currentSection string
	sectionBuf     []map[string]string
	sectionTimer   *time.Timer

	debounceInterval time.Duration
	debounceTimer    *time.Timer

	pauseAck chan struct{}
	stopAck  chan struct{}
}

// newStream issues the initial request and starts the stream in the
// Streaming state.
func newStream(conn *Connection, words []string) (*Stream, error) {
	s := &Stream{
		conn:  conn,
		words: words,
		tag:   conn.tags.nextTag(),
		state: streamStreaming,
	}
	if interval, ok := intervalOf(words); ok {
		s.debounceInterval = interval
	}

	if err := s.arm(); err != nil {
		return nil, err
	}
	return s, nil
}

// OnData registers the consumer callback. It may be called more than once
// across Pause/Resume cycles; only one callback is active at a time.
func (s *Stream) OnData(cb func(rows []map[string]string, err error)) {
	s.onDataMu.Lock()
	defer s.onDataMu.Unlock()
	s.onData = cb
}

func (s *Stream) deliver(rows []map[string]string, err error) {
	s.onDataMu.Lock()
	cb := s.onData
	s.onDataMu.Unlock()
	if cb != nil {
		cb(rows, err)
	}
}

// arm (re)subscribes the stream's tag and sends the request. Used both for
// the initial start and for Resume, which re-issues the original request on
// the same tag.
func (s *Stream) arm() error {
	s.conn.tags.subscribe(s.tag, s.onSentence)
	request := append(append([]string{}, s.words...), ".tag="+s.tag)
	if err := s.conn.transmitter.Write(request); err != nil {
		s.conn.tags.unsubscribe(s.tag)
		return err
	}
	s.resetDebounce()
	return nil
}

func intervalOf(words []string) (time.Duration, bool) {
	for _, w := range words {
		if v, ok := strings.CutPrefix(w, "=interval="); ok {
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0, false
			}
			return time.Duration(secs * float64(time.Second)), true
		}
	}
	return 0, false
}

// onSentence is the tag router callback, invoked on the Connection's single
// reader goroutine.
func (s *Stream) onSentence(words []string) {
	category := proto.ReplyWord(words)

	switch category {
	case "!re":
		s.resetDebounce()
		attrs := proto.Attributes(words)
		if section, ok := proto.Section(words); ok {
			s.bufferSectioned(section, attrs)
			return
		}
		s.deliver([]map[string]string{attrs}, nil)

	case "!trap":
		attrs := proto.Attributes(words)
		trap := &TrapError{Category: attrs["category"], Message: attrs["message"]}

		s.mu.Lock()
		awaitingAck := s.state == streamPausing || s.state == streamStopping
		s.mu.Unlock()
		if trap.Interrupted() && awaitingAck {
			// First half of a pause/stop handshake: the router still owes
			// the !done that actually completes it (§4.7, §4.8).
			return
		}
		s.terminate(streamTrapped)
		s.deliver(nil, trap)

	case "!done":
		s.mu.Lock()
		state := s.state
		s.mu.Unlock()

		switch state {
		case streamPausing:
			s.mu.Lock()
			s.state = streamPaused
			s.mu.Unlock()
			s.signalAck(&s.pauseAck)
			return
		case streamStopping:
			s.terminate(streamStopped)
			s.signalAck(&s.stopAck)
			return
		default:
			// The router ended the stream on its own, outside of any
			// consumer-initiated pause/stop.
			s.flushSection()
			s.terminate(streamStopped)
		}

	case "!fatal":
		reason := ""
		if len(words) > 1 {
			reason = words[1]
		}
		s.terminate(streamTrapped)
		s.deliver(nil, &FatalError{Reason: reason})
	}
}

func (s *Stream) bufferSectioned(section string, row map[string]string) {
	s.mu.Lock()
	if !s.hasSection {
		s.hasSection = true
		s.currentSection = section
	} else if section != s.currentSection {
		flushed := s.sectionBuf
		s.sectionBuf = nil
		s.currentSection = section
		if s.sectionTimer != nil {
			s.sectionTimer.Stop()
		}
		s.mu.Unlock()
		if len(flushed) > 0 {
			s.deliver(flushed, nil)
		}
		s.mu.Lock()
	}
	s.sectionBuf = append(s.sectionBuf, row)
	if s.sectionTimer == nil {
		s.sectionTimer = time.AfterFunc(sectionQuiescence, s.flushSection)
	} else {
		s.sectionTimer.Reset(sectionQuiescence)
	}
	s.mu.Unlock()
}

// flushSection delivers and clears whatever the section buffer currently
// holds. Safe to call with no section batching in progress.
func (s *Stream) flushSection() {
	s.mu.Lock()
	rows := s.sectionBuf
	s.sectionBuf = nil
	s.mu.Unlock()
	if len(rows) > 0 {
		s.deliver(rows, nil)
	}
}

func (s *Stream) resetDebounce() {
	if s.debounceInterval <= 0 {
		return
	}
	wait := s.debounceInterval + debounceSlack
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounceTimer == nil {
		s.debounceTimer = time.AfterFunc(wait, s.onDebounceTick)
	} else {
		s.debounceTimer.Reset(wait)
	}
}

// onDebounceTick synthesizes an empty delivery when the stream has gone
// quiet for longer than the request's =interval= implies, then re-arms
// itself — this lets a consumer tell "no changes this tick" apart from a
// stalled connection.
func (s *Stream) onDebounceTick() {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != streamStreaming {
		return
	}
	s.deliver([]map[string]string{}, nil)
	s.resetDebounce()
}

func (s *Stream) stopTimers() {
	s.mu.Lock()
	if s.sectionTimer != nil {
		s.sectionTimer.Stop()
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.mu.Unlock()
}

func (s *Stream) terminate(state streamState) {
	s.mu.Lock()
	if s.state == streamStopped || s.state == streamTrapped {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.stopTimers()
	s.conn.tags.unsubscribe(s.tag)
}

// Pause sends an in-band cancel for the stream's tag and blocks until the
// router acknowledges with !trap message=interrupted followed by !done.
// Idempotent after the stream has reached a terminal state.
func (s *Stream) Pause() error {
	s.mu.Lock()
	if s.state != streamStreaming {
		terminal := s.state == streamStopped || s.state == streamTrapped
		s.mu.Unlock()
		if terminal {
			return ErrStreamClosed
		}
		return nil
	}
	s.state = streamPausing
	s.pauseAck = make(chan struct{})
	ack := s.pauseAck
	s.mu.Unlock()

	if err := s.conn.sendCancel(s.tag); err != nil {
		return err
	}
	<-ack
	return nil
}

// signalAck closes and clears whichever ack channel ptr points at, waking up
// the Pause()/Stop() caller blocked on it.
func (s *Stream) signalAck(ptr *chan struct{}) {
	s.mu.Lock()
	ack := *ptr
	*ptr = nil
	s.mu.Unlock()
	if ack != nil {
		close(ack)
	}
}

// Resume re-issues the stream's original request on the same tag and
// returns to Streaming. Valid only from Paused.
func (s *Stream) Resume() error {
	s.mu.Lock()
	if s.state != streamPaused {
		terminal := s.state == streamStopped || s.state == streamTrapped
		s.mu.Unlock()
		if terminal {
			return ErrStreamClosed
		}
		return nil
	}
	s.state = streamStreaming
	s.mu.Unlock()

	return s.arm()
}

// Stop tears the stream down permanently. After Stop returns, no further
// data callbacks will fire regardless of sentences that later arrive on the
// stream's former tag (it has already been unsubscribed).
func (s *Stream) Stop() error {
	s.mu.Lock()
	if s.state == streamStopped || s.state == streamTrapped {
		s.mu.Unlock()
		return nil
	}
	if s.state == streamPaused {
		// The router already completed the command when Pause() resolved
		// (its own !trap interrupted + !done handshake already ran on this
		// tag) — there is nothing left for /cancel to interrupt, so stopping
		// from here is just releasing the tag, not another wire round trip.
		s.mu.Unlock()
		s.terminate(streamStopped)
		return nil
	}
	s.state = streamStopping
	s.stopAck = make(chan struct{})
	ack := s.stopAck
	s.mu.Unlock()

	if err := s.conn.sendCancel(s.tag); err != nil {
		s.terminate(streamStopped)
		return err
	}
	<-ack
	return nil
}

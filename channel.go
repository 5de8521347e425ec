package routeros

import (
	"sync"

	"github.com/firadio/routeros/internal/proto"
)

// channelState is the per-command state machine of §3 ("Channel state").
type channelState int

const (
	chanOpen channelState = iota
	chanAwaitingReply
	chanDone
	chanTrapped
	chanFatal
	chanCancelled
)

// Reply is the accumulated result of a one-shot command: every !re row
// collected, plus the attribute words the terminating !done sentence itself
// carried (RouterOS sometimes attaches attributes directly to !done, e.g.
// =ret= during login).
type Reply struct {
	Re   []map[string]string
	Done map[string]string
}

// Channel is a one-shot request/reply handle: it owns exactly one tag for
// its lifetime and delivers exactly one terminal result.
type Channel struct {
	conn *Connection
	tag  string

	mu         sync.Mutex
	state      channelState
	re         []map[string]string
	cancelling bool // Close() is in flight: interrupted-trap is not terminal by itself
	resultC    chan channelResult
}

type channelResult struct {
	reply *Reply
	err   error
}

// newChannel allocates a tag, subscribes it, and enqueues the request. The
// Channel is immediately usable; Result() blocks until a terminal reply
// arrives.
func newChannel(conn *Connection, words []string) (*Channel, error) {
	ch := &Channel{
		conn:    conn,
		tag:     conn.tags.nextTag(),
		state:   chanOpen,
		resultC: make(chan channelResult, 1),
	}

	conn.tags.subscribe(ch.tag, ch.onSentence)

	request := append(append([]string{}, words...), ".tag="+ch.tag)
	if err := conn.transmitter.Write(request); err != nil {
		conn.tags.unsubscribe(ch.tag)
		return nil, err
	}

	ch.mu.Lock()
	ch.state = chanAwaitingReply
	ch.mu.Unlock()

	return ch, nil
}

// onSentence is the tag router callback for this Channel's tag. It runs on
// the Connection's single reader goroutine, so no further locking is needed
// around the state transition itself.
func (ch *Channel) onSentence(words []string) {
	category := proto.ReplyWord(words)

	switch category {
	case "!re":
		ch.mu.Lock()
		ch.re = append(ch.re, proto.Attributes(words))
		ch.mu.Unlock()

	case "!done":
		ch.mu.Lock()
		cancelling := ch.cancelling
		ch.mu.Unlock()
		if cancelling {
			ch.terminate(chanCancelled, channelResult{err: ErrCancelled})
			return
		}
		ch.terminate(chanDone, channelResult{
			reply: &Reply{Re: ch.snapshotRe(), Done: proto.Attributes(words)},
		})

	case "!trap":
		attrs := proto.Attributes(words)
		trap := &TrapError{Category: attrs["category"], Message: attrs["message"]}

		ch.mu.Lock()
		cancelling := ch.cancelling
		ch.mu.Unlock()
		if cancelling && trap.Interrupted() {
			// First half of the cancel handshake (§4.7): the router still
			// owes the !done that actually releases the tag.
			return
		}
		ch.terminate(chanTrapped, channelResult{err: trap})

	case "!fatal":
		reason := ""
		if len(words) > 1 {
			reason = words[1]
		}
		ch.terminate(chanFatal, channelResult{err: &FatalError{Reason: reason}})
	}
}

func (ch *Channel) snapshotRe() []map[string]string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]map[string]string, len(ch.re))
	copy(out, ch.re)
	return out
}

// terminate performs the one allowed terminal transition: it unsubscribes
// the tag and delivers the result exactly once. Subsequent calls (there
// should be none, but cancellation races are possible) are no-ops.
func (ch *Channel) terminate(state channelState, result channelResult) {
	ch.mu.Lock()
	if ch.state == chanDone || ch.state == chanTrapped || ch.state == chanFatal || ch.state == chanCancelled {
		ch.mu.Unlock()
		return
	}
	ch.state = state
	ch.mu.Unlock()

	ch.conn.tags.unsubscribe(ch.tag)
	ch.resultC <- result
}

// Result blocks until the command reaches a terminal state and returns its
// accumulated reply, or the terminal error (*TrapError, *FatalError, or
// ErrCancelled after Close).
func (ch *Channel) Result() (*Reply, error) {
	result := <-ch.resultC
	// Re-deliver to any further callers: Result is expected to be called
	// once, but make it idempotent rather than hang a second caller.
	ch.resultC <- result
	return result.reply, result.err
}

// Close cancels the command if it is still outstanding. Per §4.7, this
// sends /cancel =tag=<T> on a fresh tag and awaits the resulting !trap
// message=interrupted plus !done — both delivered on this Channel's own
// (original) tag, not the cancel command's tag — before releasing the tag.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.state != chanOpen && ch.state != chanAwaitingReply {
		ch.mu.Unlock()
		return nil
	}
	ch.cancelling = true
	ch.mu.Unlock()

	if err := ch.conn.sendCancel(ch.tag); err != nil {
		return err
	}

	ch.Result() // blocks until the !trap interrupted + !done handshake completes
	return nil
}

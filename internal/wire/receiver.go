// Package wire implements the RouterOS API framing state machines: the
// Receiver, which turns arbitrary byte chunks into complete sentences, and
// the Transmitter, which serializes sentences onto the socket in order.
package wire

import (
	"github.com/firadio/routeros/internal/proto"
)

// Receiver is an incremental sentence decoder. Feed arbitrary byte chunks to
// Write; complete sentences are delivered to the OnSentence callback as soon
// as their terminating empty word is seen. A Receiver must not be shared
// across goroutines without external synchronization — the Connector is the
// sole owner of its Receiver.
type Receiver struct {
	OnSentence func(words []string)
	// OnSuspectWord is called, if set, when a decoded word has length 1 and
	// a null payload byte. Some RouterOS implementations have been observed
	// treating this as an end-of-packet pad rather than a real word; this
	// Receiver never does that (the zero-length-word rule is the only
	// terminator), but surfaces the observation for diagnostics.
	OnSuspectWord func()

	expected        int // remaining bytes needed to complete currentWord; 0 means "read a length prefix next"
	currentWord     []byte
	currentSentence []string
	pendingPrefix   []byte // partial length-prefix bytes buffered across Write calls
}

// NewReceiver returns a Receiver that invokes onSentence for each complete
// sentence decoded from the bytes subsequently passed to Write.
func NewReceiver(onSentence func(words []string)) *Receiver {
	return &Receiver{OnSentence: onSentence}
}

// Write feeds newly arrived bytes into the decoder. It never blocks and
// never assumes any alignment between the chunk boundaries passed in and
// word/sentence boundaries on the wire.
func (r *Receiver) Write(chunk []byte) error {
	if len(r.pendingPrefix) > 0 {
		chunk = append(r.pendingPrefix, chunk...)
		r.pendingPrefix = nil
	}

	for len(chunk) > 0 {
		if r.expected > 0 {
			n := r.expected
			if n > len(chunk) {
				n = len(chunk)
			}
			r.currentWord = append(r.currentWord, chunk[:n]...)
			chunk = chunk[n:]
			r.expected -= n
			if r.expected == 0 {
				if len(r.currentWord) == 1 && r.currentWord[0] == 0x00 && r.OnSuspectWord != nil {
					r.OnSuspectWord()
				}
				word, err := proto.DecodeWord(r.currentWord)
				if err != nil {
					return err
				}
				r.currentSentence = append(r.currentSentence, word)
				r.currentWord = nil
			}
			continue
		}

		consumed, length, err := proto.DecodeLength(chunk)
		if err == proto.ErrShortBuffer {
			r.pendingPrefix = append([]byte(nil), chunk...)
			return nil
		}
		if err != nil {
			return err
		}
		chunk = chunk[consumed:]

		if length == 0 {
			sentence := r.currentSentence
			r.currentSentence = nil
			if r.OnSentence != nil {
				r.OnSentence(sentence)
			}
			continue
		}

		r.expected = length
		r.currentWord = make([]byte, 0, length)
	}

	return nil
}

package routeros

import (
	"strconv"
	"sync"

	"github.com/firadio/routeros/internal/proto"
	"github.com/rs/zerolog"
)

// tagRouter owns the map from tag to subscriber callback and demultiplexes
// every sentence the Receiver decodes. It is the sole authority on which
// tags are live on a connection.
type tagRouter struct {
	mu      sync.Mutex
	subs    map[string]func(words []string)
	global  func(words []string)
	counter uint64
	log     zerolog.Logger
}

func newTagRouter(log zerolog.Logger) *tagRouter {
	return &tagRouter{
		subs: make(map[string]func(words []string)),
		log:  log,
	}
}

// nextTag allocates a fresh tag. Tags are rendered from a monotonically
// increasing 64-bit counter in base36 and are never reused within the
// connection's lifetime, even after the tag is unsubscribed — reuse would
// let a router reply destined for a long-closed command get misdelivered to
// whatever new command happens to have been issued the same tag.
func (r *tagRouter) nextTag() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	return strconv.FormatUint(r.counter, 36)
}

// subscribe registers cb to receive every sentence carrying tag.
func (r *tagRouter) subscribe(tag string, cb func(words []string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[tag] = cb
}

// unsubscribe removes tag's subscription. It is safe to call more than
// once; only the first call has any effect.
func (r *tagRouter) unsubscribe(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, tag)
}

// setGlobal installs the callback for sentences carrying no .tag word (the
// login handshake and unsolicited !fatal).
func (r *tagRouter) setGlobal(cb func(words []string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = cb
}

// route dispatches one sentence decoded by the Receiver. Dispatch happens
// with the router's lock released, so a subscriber callback may itself call
// back into subscribe/unsubscribe (e.g. a Channel terminating) without
// deadlocking.
func (r *tagRouter) route(words []string) {
	tag, hasTag := proto.Tag(words)

	if !hasTag {
		r.mu.Lock()
		cb := r.global
		r.mu.Unlock()
		if cb != nil {
			cb(words)
		}
		return
	}

	r.mu.Lock()
	cb, ok := r.subs[tag]
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Str("tag", tag).Strs("words", words).Msg("sentence for unregistered tag")
		return
	}
	cb(words)
}

// fatalizeAll synthesizes a !fatal delivery to every subscribed tag (used
// when the transport fails) and clears the subscription map. The global
// callback, if any, also receives the synthetic sentence.
func (r *tagRouter) fatalizeAll(reason string) {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]func(words []string))
	global := r.global
	r.mu.Unlock()

	sentence := []string{"!fatal", reason}
	for _, cb := range subs {
		cb(sentence)
	}
	if global != nil {
		global(sentence)
	}
}

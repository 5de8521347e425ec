package routeros

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRouterNextTagNeverRepeats(t *testing.T) {
	r := newTagRouter(zerolog.Nop())
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tag := r.nextTag()
		require.False(t, seen[tag], "tag %q reused", tag)
		seen[tag] = true
	}
}

func TestTagRouterNextTagStillUniqueAfterUnsubscribe(t *testing.T) {
	r := newTagRouter(zerolog.Nop())
	first := r.nextTag()
	r.subscribe(first, func(words []string) {})
	r.unsubscribe(first)

	for i := 0; i < 10; i++ {
		tag := r.nextTag()
		assert.NotEqual(t, first, tag)
	}
}

func TestTagRouterRoutesOnlyToMatchingSubscriber(t *testing.T) {
	r := newTagRouter(zerolog.Nop())
	var aCalls, bCalls int
	r.subscribe("a", func(words []string) { aCalls++ })
	r.subscribe("b", func(words []string) { bCalls++ })

	r.route([]string{"!re", ".tag=a"})
	r.route([]string{"!re", ".tag=a"})
	r.route([]string{"!done", ".tag=b"})

	assert.Equal(t, 2, aCalls)
	assert.Equal(t, 1, bCalls)
}

func TestTagRouterDoesNotInvokeAfterUnsubscribe(t *testing.T) {
	r := newTagRouter(zerolog.Nop())
	var calls int
	r.subscribe("a", func(words []string) { calls++ })
	r.route([]string{"!re", ".tag=a"})
	r.unsubscribe("a")
	r.route([]string{"!re", ".tag=a"})

	assert.Equal(t, 1, calls)
}

func TestTagRouterUnregisteredTagIsIgnoredNotFatal(t *testing.T) {
	r := newTagRouter(zerolog.Nop())
	assert.NotPanics(t, func() {
		r.route([]string{"!re", ".tag=ghost"})
	})
}

func TestTagRouterGlobalReceivesUntaggedSentences(t *testing.T) {
	r := newTagRouter(zerolog.Nop())
	var got []string
	r.setGlobal(func(words []string) { got = words })

	r.route([]string{"!done", "=ret=deadbeef"})
	assert.Equal(t, []string{"!done", "=ret=deadbeef"}, got)
}

func TestTagRouterFatalizeAllInvokesEverySubscriberOnce(t *testing.T) {
	r := newTagRouter(zerolog.Nop())
	var aCalls, bCalls int
	r.subscribe("a", func(words []string) { aCalls++ })
	r.subscribe("b", func(words []string) { bCalls++ })

	r.fatalizeAll("connection reset")

	assert.Equal(t, 1, aCalls)
	assert.Equal(t, 1, bCalls)

	// After fatalizeAll, the subscription map is cleared: routing either tag
	// again must not reach the old (now-stale) callbacks.
	r.route([]string{"!re", ".tag=a"})
	assert.Equal(t, 1, aCalls)
}

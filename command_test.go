package routeros

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandBasicPrint(t *testing.T) {
	words := NewCommand("/interface/print").Flag("stats").Proplist("name", "rx-byte").Words()
	assert.Equal(t, []string{"/interface/print", "=stats", "=.proplist=name,rx-byte"}, words)
}

func TestCommandSetAndID(t *testing.T) {
	words := NewCommand("/interface/set").ID("*1").Set("name", "ether1-wan").Words()
	assert.Equal(t, []string{"/interface/set", "=.id=*1", "=name=ether1-wan"}, words)
}

func TestCommandSingleQuery(t *testing.T) {
	words := NewCommand("/interface/print").Eq("type", "ether").Words()
	assert.Equal(t, []string{"/interface/print", "?=type=ether"}, words)
}

func TestCommandQueryOrChaining(t *testing.T) {
	words := NewCommand("/interface/print").
		Match("name", "ether.*").
		HasNoValue("comment").
		Words()

	assert.Equal(t, []string{
		"/interface/print",
		"?name~ether.*",
		"?#|",
		"?-comment",
	}, words)
}

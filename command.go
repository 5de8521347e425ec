package routeros

import "strings"

// Command is a fluent builder producing the word slice the engine sends on
// the wire. The engine itself never interprets these words (§6); Command
// only assembles the string forms the command-builder convention defines.
//
// Grounded in this client's own hand-assembled /interface/print query
// (=stats, =.proplist=, ?name=, ?#| OR-chaining) generalized into a
// reusable type instead of one-off string concatenation.
type Command struct {
	menu    string
	attrs   []string
	queries []string
	or      bool
}

// NewCommand starts a command for the given menu path, e.g. "/interface/print".
func NewCommand(menu string) *Command {
	return &Command{menu: menu}
}

// Set adds an attribute word "=key=value" (used on add/set, or as a plain
// argument to a print-style command).
func (c *Command) Set(key, value string) *Command {
	c.attrs = append(c.attrs, "="+key+"="+value)
	return c
}

// Flag adds a valueless attribute word "=key" (e.g. "=stats").
func (c *Command) Flag(key string) *Command {
	c.attrs = append(c.attrs, "="+key)
	return c
}

// ID targets a row by its internal id for update/delete: "=.id=*<hex>".
func (c *Command) ID(id string) *Command {
	c.attrs = append(c.attrs, "=.id="+id)
	return c
}

// Proplist restricts the returned columns via "=.proplist=a,b,c".
func (c *Command) Proplist(columns ...string) *Command {
	c.attrs = append(c.attrs, "=.proplist="+strings.Join(columns, ","))
	return c
}

// Eq adds an equality query filter "?=key=value".
func (c *Command) Eq(key, value string) *Command {
	c.addQuery("?=" + key + "=" + value)
	return c
}

// Match adds a regex query filter "?key~value".
func (c *Command) Match(key, pattern string) *Command {
	c.addQuery("?" + key + "~" + pattern)
	return c
}

// HasNoValue adds a has-no-value query filter "?-key".
func (c *Command) HasNoValue(key string) *Command {
	c.addQuery("?-" + key)
	return c
}

// addQuery appends a query word, inserting the "?#|" OR-operator between
// this one and the previous query once there are two or more: the operator
// goes before each condition starting from the second.
func (c *Command) addQuery(word string) {
	if len(c.queries) > 0 {
		c.queries = append(c.queries, "?#|")
	}
	c.queries = append(c.queries, word)
}

// Words assembles the final word slice, not including the ".tag=" word the
// engine adds when it issues the command.
func (c *Command) Words() []string {
	words := make([]string, 0, 1+len(c.attrs)+len(c.queries))
	words = append(words, c.menu)
	words = append(words, c.attrs...)
	words = append(words, c.queries...)
	return words
}

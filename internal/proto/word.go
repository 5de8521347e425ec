package proto

import (
	"golang.org/x/text/encoding/charmap"
)

// EncodeWord converts a UTF-8 application string to its Windows-1252 wire
// representation and appends the length-prefixed word to dst. ASCII input is
// unaffected by the charmap round-trip, matching router behaviour observed
// in practice.
func EncodeWord(dst []byte, word string) ([]byte, error) {
	raw, err := charmap.Windows1252.NewEncoder().String(word)
	if err != nil {
		// Characters with no Windows-1252 representation fall back to the
		// original bytes rather than failing the whole sentence.
		raw = word
	}
	dst = EncodeLength(dst, len(raw))
	return append(dst, raw...), nil
}

// DecodeWord decodes the Windows-1252 payload bytes of a word into a UTF-8
// string for delivery to the application.
func DecodeWord(payload []byte) (string, error) {
	out, err := charmap.Windows1252.NewDecoder().Bytes(payload)
	if err != nil {
		return string(payload), nil
	}
	return string(out), nil
}

package proto

import "strings"

// Tag returns the value of the ".tag=" word in words, if present.
func Tag(words []string) (tag string, ok bool) {
	for _, w := range words {
		if v, found := strings.CutPrefix(w, ".tag="); found {
			return v, true
		}
	}
	return "", false
}

// ReplyWord returns the first word of a sentence, which is the reply
// category (!re, !done, !trap, !fatal) for router-originated sentences.
func ReplyWord(words []string) string {
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

// Attributes parses the attribute words of a sentence (words after the
// first) into a map, stripping the leading "=". Only words starting with "="
// are kept: query words ("?..."), API-attribute words (".tag=", ".section=",
// ...) and free strings are skipped, matching the engine's own contract that
// it does not interpret command-builder-produced words beyond routing them.
func Attributes(words []string) map[string]string {
	attrs := make(map[string]string, len(words))
	for _, w := range words {
		if !strings.HasPrefix(w, "=") {
			continue
		}
		kv := strings.SplitN(w[1:], "=", 2)
		if len(kv) != 2 {
			continue
		}
		attrs[kv[0]] = kv[1]
	}
	return attrs
}

// Section returns the value of the ".section=" word, if present.
func Section(words []string) (section string, ok bool) {
	for _, w := range words {
		if v, found := strings.CutPrefix(w, ".section="); found {
			return v, true
		}
	}
	return "", false
}

package routeros

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/firadio/routeros/internal/proto"
)

// login performs the RouterOS API login handshake on the global (untagged)
// reply channel, grounded in this client's original, hand-rolled
// challenge-response flow: send a plain /login, and only fall back to the
// MD5 challenge form if the router's reply carries =ret=, which is how a
// pre-6.43 router signals it still wants the old handshake.
func login(c *Connection, username, password string) error {
	done := make(chan loginResult, 1)
	c.tags.setGlobal(func(words []string) {
		deliverLoginReply(done, words)
	})
	defer c.tags.setGlobal(nil)

	if err := c.transmitter.Write([]string{"/login", "=name=" + username, "=password=" + password}); err != nil {
		return err
	}

	result := <-done
	if result.err != nil {
		return result.err
	}

	if challenge, ok := result.attrs["ret"]; ok {
		response, err := md5ChallengeResponse(password, challenge)
		if err != nil {
			return fmt.Errorf("routeros: decoding login challenge: %w", err)
		}

		done2 := make(chan loginResult, 1)
		c.tags.setGlobal(func(words []string) {
			deliverLoginReply(done2, words)
		})
		if err := c.transmitter.Write([]string{"/login", "=name=" + username, "=response=" + response}); err != nil {
			return err
		}
		result = <-done2
		if result.err != nil {
			return result.err
		}
	}

	return nil
}

type loginResult struct {
	attrs map[string]string
	err   error
}

// deliverLoginReply inspects one handshake reply sentence and resolves done
// if its reply word is terminal (!done/!trap/!fatal); other sentences are
// ignored.
// Login replies carry no .tag, so this runs on the global channel rather
// than through a Channel/tagRouter subscription.
func deliverLoginReply(done chan<- loginResult, words []string) {
	if len(words) == 0 {
		return
	}
	switch words[0] {
	case "!done":
		done <- loginResult{attrs: proto.Attributes(words)}
	case "!trap":
		attrs := proto.Attributes(words)
		done <- loginResult{err: &TrapError{Category: attrs["category"], Message: attrs["message"]}}
	case "!fatal":
		reason := ""
		if len(words) > 1 {
			reason = words[1]
		}
		done <- loginResult{err: &FatalError{Reason: reason}}
	}
}

// md5ChallengeResponse implements the pre-6.43 login response:
// "00" + hex(md5(0x00 || password || binary(challenge))).
func md5ChallengeResponse(password, challengeHex string) (string, error) {
	challenge, err := hex.DecodeString(challengeHex)
	if err != nil {
		return "", err
	}
	h := md5.New()
	h.Write([]byte{0})
	h.Write([]byte(password))
	h.Write(challenge)
	return "00" + hex.EncodeToString(h.Sum(nil)), nil
}

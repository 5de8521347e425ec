// Package routeros implements a client for the MikroTik RouterOS binary API
// protocol: a length-prefixed, word-oriented request/response protocol
// spoken over TCP (default port 8728) or TLS (default port 8729).
//
// Dial establishes a Connection and performs the login handshake.
// Connection.Write issues a one-shot command and returns a Channel;
// Connection.Stream issues a long-lived subscription (e.g. /tool/torch,
// /ip/address/listen) and returns a Stream supporting Pause/Resume/Stop.
// Many Channels and Streams may be open concurrently on one Connection —
// each gets its own tag, and replies are multiplexed back to the right
// caller as the router interleaves them.
package routeros

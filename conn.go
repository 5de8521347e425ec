package routeros

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/firadio/routeros/internal/proto"
	"github.com/firadio/routeros/internal/wire"
	"github.com/rs/zerolog"
)

// connState is the Connector's lifecycle state (§4.6).
type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateClosing
	stateClosed
)

// Connection owns the socket, Receiver, Transmitter and tag router for one
// RouterOS API session. It is the L6 Connector of the engine: every
// Channel/Stream reaches the wire only through the Connection's transmitter
// and registers only through its tag router.
type Connection struct {
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex
	state connState
	conn  net.Conn

	transmitter *wire.Transmitter
	receiver    *wire.Receiver
	tags        *tagRouter

	idleTimer *time.Timer

	onClose func(error)
}

// Dial connects to a router and performs the login handshake, returning a
// ready-to-use Connection. The context bounds connection establishment
// only; once connected, IdleTimeout governs liveness.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Connection, error) {
	c := &Connection{
		cfg:         cfg,
		log:         zerolog.Nop(),
		transmitter: wire.NewTransmitter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tags = newTagRouter(c.log)
	c.receiver = wire.NewReceiver(c.tags.route)
	c.receiver.OnSuspectWord = func() {
		c.log.Debug().Msg("observed length-1 null-byte word; treating as an ordinary word, not a terminator")
	}

	c.state = stateConnecting

	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout, KeepAlive: -1}
	if c.cfg.Keepalive {
		dialer.KeepAlive = 30 * time.Second
	}

	address := net.JoinHostPort(c.cfg.Host, portString(c.cfg.Port))

	var (
		conn net.Conn
		err  error
	)
	if c.cfg.TLS.Enabled {
		tlsCfg, tlsErr := buildTLSConfig(c.cfg.TLS, c.cfg.Host)
		if tlsErr != nil {
			return nil, tlsErr
		}
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsCfg}
		conn, err = tlsDialer.DialContext(ctx, "tcp", address)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
			}
			if opErr, ok := err.(*net.OpError); ok && opErr.Op == "dial" && ctx.Err() == nil {
				// net.Dialer itself failed (refused/unreachable), not the
				// TLS handshake that runs after the TCP connect succeeds.
				return nil, fmt.Errorf("routeros: connection refused: %w", err)
			}
			return nil, fmt.Errorf("routeros: TLS handshake failed: %w", err)
		}
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
			}
			return nil, fmt.Errorf("routeros: connection refused: %w", err)
		}
	}

	c.conn = conn
	c.log.Debug().Str("addr", address).Bool("tls", c.cfg.TLS.Enabled).Msg("dialed")

	if err := c.transmitter.Ready(conn); err != nil {
		conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.state = stateConnected
	c.mu.Unlock()

	go c.readLoop()
	c.armIdleTimer()

	if err := login(c, c.cfg.Username, c.cfg.Password); err != nil {
		c.closeWithError(err)
		return nil, fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}

	c.log.Info().Str("addr", address).Msg("connected")
	return c, nil
}

// Option configures a Connection at Dial time.
type Option func(*Connection)

// WithLogger attaches a zerolog.Logger for lifecycle and trace output.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connection) { c.log = log }
}

func buildTLSConfig(cfg TLSConfig, host string) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: !cfg.VerifyHostname,
	}

	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("routeros: reading ca_bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("routeros: ca_bundle contains no usable certificates")
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("routeros: loading client_cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

func portString(port int) string {
	return fmt.Sprintf("%d", port)
}

// readLoop is the Connection's single reader goroutine. It is the only
// goroutine that ever calls Receiver.Write, which keeps the Receiver's
// internal state machine, and everything it feeds into (the tag router,
// subscriber callbacks), serialized without an explicit mutex.
func (c *Connection) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.armIdleTimer()
			if decErr := c.receiver.Write(buf[:n]); decErr != nil {
				c.closeWithError(fmt.Errorf("%w: %v", ErrProtocolViolation, decErr))
				return
			}
		}
		if err != nil {
			c.closeWithError(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			return
		}
	}
}

func (c *Connection) armIdleTimer() {
	if c.cfg.IdleTimeout <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idleTimer == nil {
		c.idleTimer = time.AfterFunc(c.cfg.IdleTimeout, func() {
			c.closeWithError(ErrConnectionTimeout)
		})
		return
	}
	c.idleTimer.Reset(c.cfg.IdleTimeout)
}

// closeWithError tears the connection down: it unsubscribes every tag with
// a synthetic !fatal (reason = err), closes the socket, and releases
// resources. Safe to call more than once; only the first call acts.
func (c *Connection) closeWithError(err error) {
	c.mu.Lock()
	if c.state == stateClosed || c.state == stateClosing {
		c.mu.Unlock()
		return
	}
	c.state = stateClosing
	conn := c.conn
	timer := c.idleTimer
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	c.tags.fatalizeAll(err.Error())
	c.transmitter.Close()
	if conn != nil {
		conn.Close()
	}

	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()

	c.log.Warn().Err(err).Msg("connection closed")
	if c.onClose != nil {
		c.onClose(err)
	}
}

// Close closes the connection gracefully (no synthetic !fatal reason beyond
// "closed by caller").
func (c *Connection) Close() error {
	c.closeWithError(fmt.Errorf("routeros: closed by caller"))
	return nil
}

// OnClose registers a handler invoked exactly once when the connection
// transitions to Closed, whether by caller request or transport failure.
func (c *Connection) OnClose(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// Write issues a one-shot command and returns a Channel that will deliver
// its replies.
func (c *Connection) Write(words []string) (*Channel, error) {
	return newChannel(c, words)
}

// Stream issues a long-lived command (e.g. a /.../listen or /tool/torch)
// and returns a Stream for consuming its data events.
func (c *Connection) Stream(words []string) (*Stream, error) {
	return newStream(c, words)
}

// sendCancel issues /cancel =tag=<tag> on a disposable tag of its own. It
// does not wait for that command's own completion — the caller (Channel or
// Stream) waits for the trap/done handshake delivered on the ORIGINAL tag
// instead (§4.7, §4.8) — it only subscribes long enough to release the
// disposable tag cleanly once the router acknowledges /cancel itself.
func (c *Connection) sendCancel(tag string) error {
	cancelTag := c.tags.nextTag()
	c.tags.subscribe(cancelTag, func(words []string) {
		switch proto.ReplyWord(words) {
		case "!done", "!trap", "!fatal":
			c.tags.unsubscribe(cancelTag)
		}
	})
	if err := c.transmitter.Write([]string{"/cancel", "=tag=" + tag, ".tag=" + cancelTag}); err != nil {
		c.tags.unsubscribe(cancelTag)
		return err
	}
	return nil
}

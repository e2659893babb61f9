package bridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPort is the TCP port bridge devices dial on the LAN.
const DefaultPort = 23779

// legacyCipherSuites restores cipher suites Go's TLS stack no longer
// offers by default but that the device firmware's TLS client still
// requires (spec §4.2).
var legacyCipherSuites = []uint16{
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA,
}

// TLSConfig builds the server-side tls.Config bridge devices expect:
// TLS 1.2 minimum and the legacy cipher suite list re-enabled.
func TLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: legacyCipherSuites,
	}
}

// Listener accepts bridge device connections and runs one Session per
// connection until ctx is cancelled.
type Listener struct {
	addr      string
	tlsConfig *tls.Config
	registry  *Registry
	logger    Logger
	handle    FrameHandler

	// OnIdentified is called once a session completes its handshake and
	// is added to the registry, so callers can seed device state.
	OnIdentified func(s *Session)
}

// NewListener builds a Listener bound to addr (host:port) using tlsConfig.
func NewListener(addr string, tlsConfig *tls.Config, registry *Registry, logger Logger, handle FrameHandler) *Listener {
	return &Listener{addr: addr, tlsConfig: tlsConfig, registry: registry, logger: logger, handle: handle}
}

// Run accepts connections until ctx is cancelled, spawning one goroutine
// per session so a single session's error never brings down the accept
// loop; the errgroup only closes the listener once ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := tls.Listen("tcp", l.addr, l.tlsConfig)
	if err != nil {
		return fmt.Errorf("bridge: listen on %s: %w", l.addr, err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-groupCtx.Done()
		return ln.Close()
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-groupCtx.Done():
				return group.Wait()
			default:
				l.logger.Warn("accept failed", "err", err)
				continue
			}
		}
		l.spawn(groupCtx, conn)
	}
}

func (l *Listener) spawn(ctx context.Context, conn net.Conn) {
	session := NewSession(conn, l.logger)
	go func() {
		defer func() {
			l.registry.Remove(session)
			_ = session.Close()
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := session.Run(ctx, l.handle); err != nil {
				l.logger.Debug("session ended", "err", err, "remote", conn.RemoteAddr())
			}
		}()

		// Wait for the handshake to complete (state reaches at least
		// Identified) before registering, so the registry is never
		// keyed by a zero QueueID.
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for session.State() == StateAccepted {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
		l.registry.Add(session)
		if l.OnIdentified != nil {
			l.OnIdentified(session)
		}
		<-done
	}()
}

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jjYBdx4IL/james-protocols/logger"
	"github.com/jjYBdx4IL/james-protocols/server/idgen"
)

// DefaultListenBacklog is applied when no backlog is configured.
const DefaultListenBacklog = 250

// DefaultMaxLineLength caps command lines; DATA-mode line handlers are
// exempt.
const DefaultMaxLineLength = 16 * 1024

// DefaultIdleTimeout closes connections that stay silent too long.
const DefaultIdleTimeout = 5 * time.Minute

// ErrAlreadyBound is returned by configuration setters and Bind once the
// server has been bound.
var ErrAlreadyBound = errors.New("server is already bound")

// ErrNoAddress is returned by Bind when no listen address was supplied.
var ErrNoAddress = errors.New("no listen address configured")

// ProtocolResponses supplies the transport-level responses a protocol
// defines: the idle-timeout goodbye, the line-too-long complaint, and the
// generic fault response the dispatcher uses for handler panics.
type ProtocolResponses struct {
	Timeout     func() Response
	LineTooLong func() Response
	Fault       func() Response
}

// Server owns the listening sockets and the set of live connections of one
// protocol instance. Configuration is rejected once bound; the handler
// chain must be wired before Bind.
type Server struct {
	name       string
	protocol   string
	protoLabel string
	addrs      []string
	chain      *ProtocolHandlerChain
	dispatcher *CommandDispatcher
	config     Configuration
	responses  ProtocolResponses
	carryOver  []string

	maxLineLength  int
	idleTimeout    time.Duration
	backlog        int
	maxConnections int
	tlsConfig      *tls.Config
	implicitTLS    bool

	mu        sync.Mutex
	bound     bool
	listeners []net.Listener
	ctx       context.Context
	cancel    context.CancelFunc

	activeMu    sync.RWMutex
	activeConns map[*Conn]struct{}
	sessionsWg  sync.WaitGroup
}

// New creates an unbound server for one protocol. name labels the instance
// in logs; protocol is the session protocol name ("SMTP", "LMTP", "POP3");
// carryOver lists the transaction keys ResetState preserves.
func New(name, protocol string, chain *ProtocolHandlerChain, config Configuration, responses ProtocolResponses, carryOver []string) *Server {
	return &Server{
		name:          name,
		protocol:      protocol,
		protoLabel:    strings.ToLower(protocol),
		chain:         chain,
		config:        config,
		responses:     responses,
		carryOver:     carryOver,
		maxLineLength: DefaultMaxLineLength,
		idleTimeout:   DefaultIdleTimeout,
		backlog:       DefaultListenBacklog,
		activeConns:   make(map[*Conn]struct{}),
	}
}

// AddAddress appends a listen address. Rejected once bound.
func (s *Server) AddAddress(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrAlreadyBound
	}
	s.addrs = append(s.addrs, addr)
	return nil
}

// SetIdleTimeout configures the per-connection idle deadline. Rejected once
// bound.
func (s *Server) SetIdleTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrAlreadyBound
	}
	s.idleTimeout = d
	return nil
}

// SetMaxLineLength configures the command line length limit. Rejected once
// bound.
func (s *Server) SetMaxLineLength(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrAlreadyBound
	}
	s.maxLineLength = n
	return nil
}

// SetBacklog configures the TCP listen backlog. The value reaches the
// socket only on FreeBSD (SO_LISTENQLIMIT); on other platforms the kernel
// default backlog applies. Rejected once bound.
func (s *Server) SetBacklog(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrAlreadyBound
	}
	s.backlog = n
	return nil
}

// SetMaxConnections caps concurrent connections; 0 means unlimited.
// Rejected once bound.
func (s *Server) SetMaxConnections(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrAlreadyBound
	}
	s.maxConnections = n
	return nil
}

// SetTLSConfig supplies the TLS configuration used for STARTTLS/STLS
// upgrades, or for the socket itself with implicit set. Rejected once
// bound.
func (s *Server) SetTLSConfig(cfg *tls.Config, implicit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrAlreadyBound
	}
	s.tlsConfig = cfg
	s.implicitTLS = implicit
	return nil
}

// Bind opens the listeners and starts accepting. It fails if the server is
// already bound, no address is configured, or the handler chain is not
// wired. Accept loops run until Unbind or ctx cancellation.
func (s *Server) Bind(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound {
		return ErrAlreadyBound
	}
	if len(s.addrs) == 0 {
		return ErrNoAddress
	}
	if s.chain == nil || !s.chain.IsWired() {
		return errors.New("handler chain is not wired")
	}
	s.dispatcher = s.chain.Dispatcher()
	if s.dispatcher == nil {
		return errors.New("handler chain has no command dispatcher")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, addr := range s.addrs {
		listener, err := ListenWithBacklog(s.ctx, "tcp", addr, s.backlog)
		if err != nil {
			s.closeListenersLocked()
			s.cancel()
			return fmt.Errorf("failed to create listener on %s: %w", addr, err)
		}
		if s.implicitTLS {
			if s.tlsConfig == nil {
				listener.Close()
				s.closeListenersLocked()
				s.cancel()
				return errors.New("implicit TLS requires a TLS configuration")
			}
			listener = tls.NewListener(listener, s.tlsConfig)
		}
		s.listeners = append(s.listeners, listener)
		logger.Info("server listening",
			"protocol", s.protocol, "name", s.name, "addr", addr,
			"tls", s.implicitTLS, "idle_timeout", s.idleTimeout)
	}

	s.bound = true
	for _, listener := range s.listeners {
		go s.acceptLoop(listener)
	}
	return nil
}

// ListenerAddrs returns the bound listener addresses, for embedders that
// bind port 0.
func (s *Server) ListenerAddrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, l := range s.listeners {
		addrs = append(addrs, l.Addr())
	}
	return addrs
}

func (s *Server) closeListenersLocked() {
	for _, l := range s.listeners {
		l.Close()
	}
	s.listeners = nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		netConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				logger.Debug("server stopped accepting", "protocol", s.protocol, "name", s.name)
				return
			default:
			}
			if IsConnectionError(err) {
				continue
			}
			logger.Error("accept failed", "protocol", s.protocol, "name", s.name, "error", err)
			return
		}

		if tcpConn, ok := netConn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		if s.maxConnections > 0 && s.connCount() >= s.maxConnections {
			logger.Debug("connection rejected, server full",
				"protocol", s.protocol, "name", s.name, "remote", netConn.RemoteAddr())
			netConn.Close()
			continue
		}

		conn := newConn(s, netConn, idgen.New())
		s.addConn(conn)
		s.sessionsWg.Add(1)
		go func() {
			defer s.sessionsWg.Done()
			conn.run()
		}()
	}
}

// Unbind stops accepting, closes all live connections and waits for the
// session goroutines to drain. It is idempotent.
func (s *Server) Unbind() {
	s.mu.Lock()
	if !s.bound {
		s.mu.Unlock()
		return
	}
	s.bound = false
	s.cancel()
	s.closeListenersLocked()
	s.mu.Unlock()

	s.activeMu.RLock()
	conns := make([]*Conn, 0, len(s.activeConns))
	for c := range s.activeConns {
		conns = append(conns, c)
	}
	s.activeMu.RUnlock()
	for _, c := range conns {
		c.netConn.Close()
	}

	s.waitForSessionsDrain(30 * time.Second)
	logger.Info("server stopped", "protocol", s.protocol, "name", s.name)
}

// waitForSessionsDrain waits for active sessions to finish with a timeout.
func (s *Server) waitForSessionsDrain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.sessionsWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Debug("all sessions drained", "protocol", s.protocol, "name", s.name)
	case <-time.After(timeout):
		logger.Debug("session drain timeout, forcing shutdown",
			"protocol", s.protocol, "name", s.name, "timeout", timeout)
	}
}

func (s *Server) addConn(c *Conn) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.activeConns[c] = struct{}{}
}

func (s *Server) removeConn(c *Conn) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	delete(s.activeConns, c)
}

func (s *Server) connCount() int {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return len(s.activeConns)
}

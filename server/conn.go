package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/jjYBdx4IL/james-protocols/logger"
	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
)

var errLineTooLong = errors.New("line too long")

// ErrTLSUnavailable is returned by StartTLS when the server has no TLS
// configuration.
var ErrTLSUnavailable = errors.New("TLS is not configured")

type stackEntry struct {
	handler LineHandler
	raw     bool // exempt from the command line length limit (DATA mode)
}

// Conn is one accepted connection: the framing loop, the write side, the
// line-handler stack and the owning side of the Connection/Session pair.
// A Conn is serviced by exactly one goroutine for its whole life, so its
// state needs no locking.
type Conn struct {
	server  *Server
	netConn net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc

	stack      []stackEntry
	tlsActive  bool
	tlsPending bool
	startTime  time.Time
}

func newConn(server *Server, netConn net.Conn, id string) *Conn {
	ctx, cancel := context.WithCancel(server.ctx)
	c := &Conn{
		server:    server,
		netConn:   netConn,
		reader:    bufio.NewReader(netConn),
		writer:    bufio.NewWriter(netConn),
		ctx:       ctx,
		cancel:    cancel,
		tlsActive: server.implicitTLS,
		startTime: time.Now(),
	}
	c.session = NewSession(id, server.protocol, c, server.config, server.carryOver)
	if c.tlsActive {
		c.session.ConnectionState().Put(KeyTLSStarted, true)
	}
	c.stack = []stackEntry{{handler: server.dispatcher}}
	return c
}

// RemoteAddr returns the client address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// LocalAddr returns the local listener address.
func (c *Conn) LocalAddr() net.Addr {
	return c.netConn.LocalAddr()
}

// IsTLS reports whether the connection currently runs over TLS.
func (c *Conn) IsTLS() bool {
	return c.tlsActive
}

// Context returns the connection's context, cancelled when the connection
// or the server shuts down.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Session returns the session riding this connection.
func (c *Conn) Session() *Session {
	return c.session
}

// PushLineHandler pushes h onto the line-handler stack. It takes effect
// before the next line is framed.
func (c *Conn) PushLineHandler(h LineHandler) {
	c.stack = append(c.stack, stackEntry{handler: h})
}

// PushRawLineHandler pushes h with the command line length limit lifted,
// for message data transfer.
func (c *Conn) PushRawLineHandler(h LineHandler) {
	c.stack = append(c.stack, stackEntry{handler: h, raw: true})
}

// PopLineHandler removes the top line handler. The dispatcher at the bottom
// of the stack is never popped; unbalanced pops are a programming error and
// panic.
func (c *Conn) PopLineHandler() {
	if len(c.stack) <= 1 {
		panic("PopLineHandler: line handler stack underflow")
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// StartTLS schedules a TLS upgrade for after the pending response has been
// flushed. Any plaintext bytes the client pipelined behind the upgrade
// command are discarded, per RFC 3207's injection rule.
func (c *Conn) StartTLS() error {
	if c.server.tlsConfig == nil {
		return ErrTLSUnavailable
	}
	if c.tlsActive {
		return errors.New("TLS already active")
	}
	c.tlsPending = true
	return nil
}

// run drives the read-frame-dispatch loop until the session ends.
func (c *Conn) run() {
	defer c.close()

	protoLabel := c.server.protoLabel
	metrics.ConnectionsTotal.WithLabelValues(protoLabel).Inc()
	metrics.ConnectionsCurrent.WithLabelValues(protoLabel).Inc()
	defer func() {
		metrics.ConnectionsCurrent.WithLabelValues(protoLabel).Dec()
		metrics.ConnectionDuration.WithLabelValues(protoLabel).Observe(time.Since(c.startTime).Seconds())
	}()

	c.session.DebugLog("connected")

	for _, h := range c.server.chain.ConnectHandlers() {
		response := h.OnConnect(c.session)
		if response == nil {
			continue
		}
		if err := c.writeResponse(response); err != nil || response.IsEndSession() {
			return
		}
	}

	for {
		if c.ctx.Err() != nil {
			return
		}

		top := c.stack[len(c.stack)-1]
		line, err := c.readLine(!top.raw)
		if err != nil {
			c.handleReadError(err)
			return
		}

		response := top.handler.OnLine(c.session, line)
		if response != nil {
			if err := c.writeResponse(response); err != nil {
				return
			}
			if response.IsEndSession() {
				return
			}
		}

		if c.tlsPending {
			if err := c.upgradeTLS(); err != nil {
				c.session.Log("TLS handshake failed: %v", err)
				return
			}
		}
	}
}

func (c *Conn) handleReadError(err error) {
	switch {
	case errors.Is(err, errLineTooLong):
		// Terminate after flushing the protocol's complaint
		_ = c.writeResponse(c.server.responses.LineTooLong())
		c.session.Log("line too long, closing connection")
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			metrics.ConnectionTimeouts.WithLabelValues(c.server.protoLabel).Inc()
			_ = c.writeResponse(c.server.responses.Timeout())
			c.session.Log("idle timeout")
		} else if IsConnectionError(err) {
			c.session.DebugLog("client dropped connection: %v", err)
		} else {
			c.session.Log("read error: %v", err)
		}
	}
}

// readLine reads one CRLF-terminated line, without the terminator. A bare
// LF is tolerated. With limited set, lines longer than the server's maximum
// fail with errLineTooLong.
func (c *Conn) readLine(limited bool) ([]byte, error) {
	if c.server.idleTimeout > 0 {
		if err := c.netConn.SetReadDeadline(time.Now().Add(c.server.idleTimeout)); err != nil {
			return nil, err
		}
	}

	var line []byte
	for {
		frag, err := c.reader.ReadSlice('\n')
		line = append(line, frag...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			if limited && len(line) > c.server.maxLineLength {
				return nil, errLineTooLong
			}
			continue
		}
		return nil, err
	}
	if limited && len(line) > c.server.maxLineLength {
		return nil, errLineTooLong
	}

	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line, nil
}

func (c *Conn) writeResponse(response Response) error {
	if response == nil {
		return nil
	}
	if c.server.idleTimeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(c.server.idleTimeout)); err != nil {
			return err
		}
	}
	for _, line := range response.Lines() {
		if _, err := c.writer.WriteString(line); err != nil {
			return err
		}
		if _, err := c.writer.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

// upgradeTLS wraps the socket after the upgrade response has been flushed,
// discarding read-buffered plaintext and resetting framing.
func (c *Conn) upgradeTLS() error {
	c.tlsPending = false

	if buffered := c.reader.Buffered(); buffered > 0 {
		if _, err := c.reader.Discard(buffered); err != nil {
			return err
		}
		c.session.DebugLog("discarded %d plaintext bytes buffered across TLS upgrade", buffered)
	}

	tlsConn := tls.Server(c.netConn, c.server.tlsConfig)
	if c.server.idleTimeout > 0 {
		if err := c.netConn.SetReadDeadline(time.Now().Add(c.server.idleTimeout)); err != nil {
			return err
		}
	}
	if err := tlsConn.HandshakeContext(c.ctx); err != nil {
		return err
	}

	c.netConn = tlsConn
	c.reader.Reset(tlsConn)
	c.writer.Reset(tlsConn)
	c.tlsActive = true
	c.session.ConnectionState().Put(KeyTLSStarted, true)
	c.session.Log("TLS established")
	return nil
}

func (c *Conn) close() {
	c.cancel()
	if err := c.netConn.Close(); err != nil && !IsConnectionError(err) {
		logger.Debug("connection close", "protocol", c.server.protocol, "error", err)
	}
	c.session.DebugLog("closed")
	c.server.removeConn(c)
}

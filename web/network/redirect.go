// Package network holds listener helpers for serving the hub over TLS.
package network

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
	"sync"
)

// peekSize bounds how much of a connection's first packet is inspected.
const peekSize = 2048

// RedirectListener answers plain HTTP requests that reach a TLS port with a
// redirect to the https URL. Every other connection passes through as is.
type RedirectListener struct {
	net.Listener
}

// NewRedirectListener wraps l. It must sit below the TLS listener.
func NewRedirectListener(l net.Listener) net.Listener {
	return &RedirectListener{Listener: l}
}

func (l *RedirectListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &redirectConn{Conn: conn}, nil
}

type redirectConn struct {
	net.Conn

	once    sync.Once
	pending []byte
	err     error
}

// sniff reads the first packet. When it parses as an HTTP request the client
// gets a 307 to the https location and the connection is closed.
func (c *redirectConn) sniff() {
	buf := make([]byte, peekSize)
	n, err := c.Conn.Read(buf)
	c.pending = buf[:n]
	if err != nil {
		c.err = err
		return
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(c.pending)))
	if err != nil {
		return
	}
	resp := http.Response{
		StatusCode: http.StatusTemporaryRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Location": {"https://" + req.Host + req.RequestURI}},
	}
	_ = resp.Write(c.Conn)
	_ = c.Conn.Close()
	c.pending = nil
	c.err = net.ErrClosed
}

func (c *redirectConn) Read(p []byte) (int, error) {
	c.once.Do(c.sniff)
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	if c.err != nil {
		return 0, c.err
	}
	return c.Conn.Read(p)
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package transport

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"time"

	"github.com/jabberwock-im/jabberwock/transport/compress"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

const socketBuffSize = 4096

type socketTransport struct {
	conn       net.Conn
	rw         io.ReadWriter
	br         *bufio.Reader
	bw         *bufio.Writer
	codec      Codec
	keepAlive  time.Duration
	compressed bool
}

// NewSocketTransport creates a socket class stream transport.
// The codec built by cf frames elements over the connection bytes.
func NewSocketTransport(conn net.Conn, cf CodecFactory, keepAlive time.Duration) Transport {
	s := &socketTransport{
		conn:      conn,
		rw:        conn,
		br:        bufio.NewReaderSize(conn, socketBuffSize),
		bw:        bufio.NewWriterSize(conn, socketBuffSize),
		keepAlive: keepAlive,
	}
	s.codec = cf(struct {
		io.Reader
		io.Writer
	}{s.br, s.bw})
	return s
}

func (s *socketTransport) ReadElement() (xmpp.XElement, error) {
	if s.keepAlive > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.keepAlive))
	}
	return s.codec.Decode()
}

func (s *socketTransport) WriteElement(elem xmpp.XElement, includeClosing bool) error {
	defer func() { _ = s.bw.Flush() }()
	return s.codec.Encode(elem, includeClosing)
}

func (s *socketTransport) WriteString(str string) error {
	defer func() { _ = s.bw.Flush() }()
	_, err := io.WriteString(s.bw, str)
	return err
}

func (s *socketTransport) Close() error {
	return s.conn.Close()
}

func (s *socketTransport) Type() Type {
	return Socket
}

func (s *socketTransport) StartTLS(cfg *tls.Config, asClient bool) {
	if _, ok := s.conn.(*tls.Conn); ok {
		return
	}
	if asClient {
		s.conn = tls.Client(s.conn, cfg)
	} else {
		s.conn = tls.Server(s.conn, cfg)
	}
	s.rw = s.conn
	s.rebind()
}

func (s *socketTransport) EnableCompression(level compress.Level) {
	if s.compressed {
		return
	}
	s.rw = compress.NewZlibCompressor(s.rw, s.rw, level)
	s.compressed = true
	s.rebind()
}

func (s *socketTransport) PeerCertificates() []*x509.Certificate {
	if tlsConn, ok := s.conn.(tlsStateQueryable); ok {
		st := tlsConn.ConnectionState()
		return st.PeerCertificates
	}
	return nil
}

func (s *socketTransport) rebind() {
	s.br.Reset(s.rw)
	s.bw.Reset(s.rw)
	s.codec.Reset(struct {
		io.Reader
		io.Writer
	}{s.br, s.bw})
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package transport

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jabberwock-im/jabberwock/transport/compress"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

// WebSocketConn represents a websocket connection interface.
type WebSocketConn interface {
	NextReader() (messageType int, r io.Reader, err error)
	NextWriter(int) (io.WriteCloser, error)
	Close() error
	UnderlyingConn() net.Conn
	SetReadDeadline(t time.Time) error
}

type webSocketTransport struct {
	conn      WebSocketConn
	codec     Codec
	keepAlive time.Duration
}

// NewWebSocketTransport creates a websocket class stream transport.
func NewWebSocketTransport(conn WebSocketConn, cf CodecFactory, keepAlive time.Duration) Transport {
	wst := &webSocketTransport{
		conn:      conn,
		keepAlive: keepAlive,
	}
	wst.codec = cf(&wsReadWriter{conn: conn})
	return wst
}

func (w *webSocketTransport) ReadElement() (xmpp.XElement, error) {
	if w.keepAlive > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.keepAlive))
	}
	return w.codec.Decode()
}

func (w *webSocketTransport) WriteElement(elem xmpp.XElement, includeClosing bool) error {
	return w.codec.Encode(elem, includeClosing)
}

func (w *webSocketTransport) WriteString(str string) error {
	nw, err := w.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer func() { _ = nw.Close() }()

	_, err = io.WriteString(nw, str)
	return err
}

func (w *webSocketTransport) Close() error {
	return w.conn.Close()
}

func (w *webSocketTransport) Type() Type {
	return WebSocket
}

// StartTLS is a not supported operation: upgraded websocket
// connections are already secured at the HTTP layer.
func (w *webSocketTransport) StartTLS(_ *tls.Config, _ bool) {
}

// EnableCompression is a not supported operation: compression
// is negotiated at the websocket layer.
func (w *webSocketTransport) EnableCompression(_ compress.Level) {
}

func (w *webSocketTransport) PeerCertificates() []*x509.Certificate {
	if tlsConn, ok := w.conn.UnderlyingConn().(tlsStateQueryable); ok {
		st := tlsConn.ConnectionState()
		return st.PeerCertificates
	}
	return nil
}

// wsReadWriter adapts websocket message framing to a plain byte channel.
type wsReadWriter struct {
	conn WebSocketConn
	r    io.Reader
}

func (rw *wsReadWriter) Read(p []byte) (int, error) {
	if rw.r == nil {
		_, r, err := rw.conn.NextReader()
		if err != nil {
			return 0, err
		}
		rw.r = r
	}
	n, err := rw.r.Read(p)
	if err == io.EOF {
		rw.r = nil
		if n > 0 {
			return n, nil
		}
		return rw.Read(p)
	}
	return n, err
}

func (rw *wsReadWriter) Write(p []byte) (int, error) {
	nw, err := rw.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return 0, err
	}
	defer func() { _ = nw.Close() }()

	return nw.Write(p)
}

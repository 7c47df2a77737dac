/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package transport

import (
	"crypto/tls"
	"crypto/x509"
	"io"

	"github.com/jabberwock-im/jabberwock/transport/compress"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

// Type represents a stream transport type.
type Type int

const (
	// Socket represents a socket transport type.
	Socket Type = iota + 1

	// WebSocket represents a websocket transport type.
	WebSocket
)

// String returns Type string representation.
func (tt Type) String() string {
	switch tt {
	case Socket:
		return "socket"
	case WebSocket:
		return "websocket"
	}
	return ""
}

// Codec encodes and decodes stream elements over a raw byte channel.
// Codec instances are never safe for concurrent use.
type Codec interface {
	// Decode reads and returns next incoming element.
	Decode() (xmpp.XElement, error)

	// Encode serializes an element to the underlying writer.
	// includeClosing determines if the closing tag should be attached.
	Encode(elem xmpp.XElement, includeClosing bool) error

	// Reset rebinds the codec to a new byte channel, discarding
	// any buffered state.
	Reset(rw io.ReadWriter)
}

// CodecFactory builds a Codec bound to a given byte channel.
type CodecFactory func(rw io.ReadWriter) Codec

// Transport represents a stream element transport mechanism.
type Transport interface {
	// ReadElement reads and returns next incoming element.
	ReadElement() (xmpp.XElement, error)

	// WriteElement writes an element to the transport.
	// includeClosing determines if the closing tag should be attached.
	WriteElement(elem xmpp.XElement, includeClosing bool) error

	// WriteString writes a raw string to the transport.
	WriteString(s string) error

	// Close closes the transport releasing the underlying connection.
	Close() error

	// Type returns transport type value.
	Type() Type

	// StartTLS secures the transport using SSL/TLS.
	StartTLS(cfg *tls.Config, asClient bool)

	// EnableCompression activates a compression
	// mechanism on the transport.
	EnableCompression(level compress.Level)

	// PeerCertificates returns the certificate chain
	// presented by remote peer.
	PeerCertificates() []*x509.Certificate
}

type tlsStateQueryable interface {
	ConnectionState() tls.ConnectionState
}

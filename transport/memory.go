/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package transport

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"sync"
	"time"

	"github.com/jabberwock-im/jabberwock/transport/compress"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

// MemoryTransport is an in-process element transport backed by
// channels. Used on tests.
type MemoryTransport struct {
	mu      sync.Mutex
	recvCh  chan xmpp.XElement
	sentCh  chan xmpp.XElement
	closeCh chan struct{}
	closed  bool
	certs   []*x509.Certificate
	secured bool
}

// NewMemoryTransport returns an initialized memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		recvCh:  make(chan xmpp.XElement, 64),
		sentCh:  make(chan xmpp.XElement, 64),
		closeCh: make(chan struct{}),
	}
}

// DeliverElement enqueues an element as if it was received from the peer.
func (t *MemoryTransport) DeliverElement(elem xmpp.XElement) {
	select {
	case t.recvCh <- elem:
	case <-t.closeCh:
	}
}

// WaitElement blocks until an outgoing element is written to
// the transport, or until timeout is exceeded.
func (t *MemoryTransport) WaitElement(timeout time.Duration) xmpp.XElement {
	select {
	case elem := <-t.sentCh:
		return elem
	case <-time.After(timeout):
		return nil
	}
}

// SetPeerCertificates sets the certificate chain presented by the peer.
func (t *MemoryTransport) SetPeerCertificates(certs []*x509.Certificate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.certs = certs
}

// IsClosed returns true whether transport has been closed.
func (t *MemoryTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// IsSecured returns true whether StartTLS has been performed.
func (t *MemoryTransport) IsSecured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.secured
}

func (t *MemoryTransport) ReadElement() (xmpp.XElement, error) {
	select {
	case elem := <-t.recvCh:
		return elem, nil
	case <-t.closeCh:
		return nil, io.ErrClosedPipe
	}
}

func (t *MemoryTransport) WriteElement(elem xmpp.XElement, _ bool) error {
	select {
	case t.sentCh <- elem:
		return nil
	case <-t.closeCh:
		return io.ErrClosedPipe
	}
}

func (t *MemoryTransport) WriteString(_ string) error {
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closeCh)
	return nil
}

func (t *MemoryTransport) Type() Type {
	return Socket
}

func (t *MemoryTransport) StartTLS(_ *tls.Config, _ bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.secured = true
}

func (t *MemoryTransport) EnableCompression(_ compress.Level) {
}

func (t *MemoryTransport) PeerCertificates() []*x509.Certificate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.certs
}

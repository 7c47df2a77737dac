/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
)

// MockC2S represents a mocked c2s stream. Used on tests.
type MockC2S struct {
	id             string
	mu             sync.RWMutex
	flags          Flags
	isDisconnected bool
	jid            *jid.JID
	presence       *xmpp.Presence
	elemCh         chan xmpp.XElement
	discCh         chan error
}

// NewMockC2S returns a new mocked stream instance.
func NewMockC2S(id string, j *jid.JID) *MockC2S {
	return &MockC2S{
		id:     id,
		jid:    j,
		elemCh: make(chan xmpp.XElement, 16),
		discCh: make(chan error, 1),
	}
}

// ID returns mocked stream identifier.
func (m *MockC2S) ID() string {
	return m.id
}

// Kind returns C2SKind value.
func (m *MockC2S) Kind() Kind {
	return C2SKind
}

// LocalDomain returns current mocked stream domain.
func (m *MockC2S) LocalDomain() string {
	return m.Domain()
}

// Flags returns current mocked stream flags.
func (m *MockC2S) Flags() Flags {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags
}

// SetFlags sets mocked stream flags.
func (m *MockC2S) SetFlags(f Flags) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = f
}

// Username returns current mocked stream username.
func (m *MockC2S) Username() string {
	return m.JID().Node()
}

// Domain returns current mocked stream domain.
func (m *MockC2S) Domain() string {
	return m.JID().Domain()
}

// Resource returns current mocked stream resource.
func (m *MockC2S) Resource() string {
	return m.JID().Resource()
}

// SetJID sets the mocked stream JID value.
func (m *MockC2S) SetJID(j *jid.JID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jid = j
}

// JID returns current user JID.
func (m *MockC2S) JID() *jid.JID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jid
}

// IsSecured returns whether or not the mocked stream has been secured.
func (m *MockC2S) IsSecured() bool {
	return m.Flags()&Secured > 0
}

// IsAuthenticated returns whether or not the mocked stream
// has successfully authenticated.
func (m *MockC2S) IsAuthenticated() bool {
	return m.Flags()&Authenticated > 0
}

// IsDisconnected returns whether or not the mocked stream has been disconnected.
func (m *MockC2S) IsDisconnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isDisconnected
}

// SetPresence sets the mocked stream last received presence element.
func (m *MockC2S) SetPresence(presence *xmpp.Presence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presence = presence
}

// Presence returns last sent presence element.
func (m *MockC2S) Presence() *xmpp.Presence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.presence
}

// SendElement sends the given XML element.
func (m *MockC2S) SendElement(elem xmpp.XElement) {
	select {
	case m.elemCh <- elem:
	default:
	}
}

// Disconnect disconnects mocked stream.
func (m *MockC2S) Disconnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isDisconnected {
		return
	}
	m.discCh <- err
	m.isDisconnected = true
}

// ReceiveElement waits until a new XML element is sent to
// the mocked stream and returns it.
func (m *MockC2S) ReceiveElement() xmpp.XElement {
	select {
	case e := <-m.elemCh:
		return e
	case <-time.After(time.Second * 5):
		return &xmpp.Element{}
	}
}

// WaitDisconnection waits until the mocked stream disconnects.
func (m *MockC2S) WaitDisconnection() error {
	select {
	case err := <-m.discCh:
		return err
	case <-time.After(time.Second * 5):
		return errors.New("operation timed out")
	}
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package stream

import (
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
)

// Kind identifies a stream class.
type Kind int

const (
	// C2SKind represents a client-to-server stream kind.
	C2SKind Kind = iota + 1

	// S2SKind represents a server-to-server stream kind.
	S2SKind

	// ComponentKind represents an external component stream kind.
	ComponentKind
)

// String returns Kind string representation.
func (k Kind) String() string {
	switch k {
	case C2SKind:
		return "c2s"
	case S2SKind:
		return "s2s"
	case ComponentKind:
		return "comp"
	}
	return ""
}

// Flags represents a stream condition bitmask.
type Flags uint32

const (
	// Secured indicates that stream transport has been secured.
	Secured Flags = 1 << iota

	// Authenticated indicates that stream has been authenticated.
	Authenticated

	// Compressed indicates that stream compression has been enabled.
	Compressed

	// TLSRequired indicates that stream must be secured before proceeding.
	TLSRequired

	// RosterRequested indicates that stream user requested its roster.
	RosterRequested

	// AvailableResource indicates that an available presence
	// has been sent over the stream.
	AvailableResource

	// PositivePriority indicates that stream presence
	// carries a positive priority value.
	PositivePriority

	// NoAutoRestart indicates that stream must not be
	// automatically restarted once it terminates.
	NoAutoRestart

	// DialbackOnly indicates an outgoing stream established
	// with the only purpose of verifying a dialback key.
	DialbackOnly
)

// InStream represents a generic incoming stream.
type InStream interface {
	ID() string

	// Kind returns stream kind value.
	Kind() Kind

	// LocalDomain returns stream local domain.
	LocalDomain() string

	// Flags returns a snapshot of current stream condition flags.
	Flags() Flags

	// Disconnect dispatches a disconnection process over the stream.
	Disconnect(err error)
}

// InOutStream represents a generic incoming/outgoing stream.
type InOutStream interface {
	InStream

	// SendElement dispatches an element delivery over the stream.
	SendElement(elem xmpp.XElement)
}

// C2S represents a client-to-server XMPP stream.
type C2S interface {
	InOutStream

	Username() string
	Domain() string
	Resource() string

	JID() *jid.JID

	// SetFlags replaces current stream condition flags.
	SetFlags(flags Flags)

	IsSecured() bool
	IsAuthenticated() bool

	// Presence returns last sent available presence, or nil
	// if none has been sent yet.
	Presence() *xmpp.Presence
}

// S2SIn represents an incoming server-to-server XMPP stream.
type S2SIn interface {
	InStream
}

// S2SOut represents an outgoing server-to-server XMPP stream.
type S2SOut interface {
	InOutStream

	// RemoteDomain returns stream remote domain.
	RemoteDomain() string
}

// Component represents an external component XMPP stream.
type Component interface {
	InOutStream

	// Domain returns the domain the component is serving.
	Domain() string
}

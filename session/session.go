/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package session

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

const (
	jabberClientNamespace    = "jabber:client"
	jabberServerNamespace    = "jabber:server"
	jabberComponentNamespace = "jabber:component:accept"
	framedStreamNamespace = "urn:ietf:params:xml:ns:xmpp-framing"
	streamNamespace       = "http://etherx.jabber.org/streams"
	dialbackNamespace     = "jabber:server:dialback"
)

// Error represents a session level error.
type Error struct {
	// Element is the original incoming element that generated
	// the session error, if any.
	Element xmpp.XElement

	// UnderlyingErr is the underlying session error.
	UnderlyingErr error
}

type hosts interface {
	DefaultHostName() string
	IsLocalHost(h string) bool
}

// Config structure is used to establish an XMPP session.
type Config struct {
	// JID defines an initial session JID.
	JID *jid.JID

	// Transport provides the underlying session transport
	// used to send and receive elements.
	Transport transport.Transport

	// RemoteDomain represents the remote receiving entity domain name.
	RemoteDomain string

	// IsServer defines whether or not this session is established
	// between two servers.
	IsServer bool

	// IsComponent defines whether or not this session is established
	// with an external component.
	IsComponent bool

	// IsInitiating defines whether or not this is an initiating
	// entity session.
	IsInitiating bool
}

// Session represents an XMPP session between two peers.
type Session struct {
	id           string
	tr           transport.Transport
	hosts        hosts
	isServer     bool
	isComponent  bool
	isInitiating bool
	opened       uint32
	started      uint32

	mu           sync.RWMutex
	streamID     string
	sJID         *jid.JID
	remoteDomain string
}

// New returns a new session instance.
func New(id string, config *Config, hosts hosts) *Session {
	s := &Session{
		id:           id,
		tr:           config.Transport,
		hosts:        hosts,
		remoteDomain: config.RemoteDomain,
		isServer:     config.IsServer,
		isComponent:  config.IsComponent,
		isInitiating: config.IsInitiating,
		sJID:         config.JID,
	}
	if !s.isInitiating {
		s.streamID = uuid.New()
	}
	return s
}

// StreamID returns the session stream identifier.
func (s *Session) StreamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamID
}

// SetJID updates current session JID.
func (s *Session) SetJID(sessionJID *jid.JID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sJID = sessionJID
}

// SetRemoteDomain sets current session remote domain.
func (s *Session) SetRemoteDomain(remoteDomain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteDomain = remoteDomain
}

// Open emits the session opening element.
func (s *Session) Open(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&s.opened, 0, 1) {
		return errors.New("session already opened")
	}
	var ops *xmpp.Element

	switch s.tr.Type() {
	case transport.WebSocket:
		ops = xmpp.NewElementName("open")
		ops.SetAttribute("xmlns", framedStreamNamespace)

	default:
		ops = xmpp.NewElementName("stream:stream")
		ops.SetAttribute("xmlns", s.namespace())
		ops.SetAttribute("xmlns:stream", streamNamespace)
		if s.isServer {
			ops.SetAttribute("xmlns:db", dialbackNamespace)
		}
	}
	if !s.isInitiating {
		s.mu.RLock()
		ops.SetAttribute("id", s.streamID)
		s.mu.RUnlock()
	}
	ops.SetAttribute("from", s.jid().Domain())
	if s.isInitiating {
		s.mu.RLock()
		ops.SetAttribute("to", s.remoteDomain)
		s.mu.RUnlock()
	}
	ops.SetAttribute("version", "1.0")

	log.Debugf("SEND(%s): %v", s.id, ops)
	return s.writeElement(ctx, ops, false)
}

// Close emits the session closing element. Closing the underlying
// transport is responsibility of the caller.
func (s *Session) Close(ctx context.Context) error {
	if atomic.LoadUint32(&s.opened) == 0 {
		return errors.New("session already closed")
	}
	switch s.tr.Type() {
	case transport.WebSocket:
		return s.writeElement(ctx, xmpp.NewElementNamespace("close", framedStreamNamespace), true)
	default:
		return s.writeElement(ctx, xmpp.NewElementNamespace("close", streamNamespace), true)
	}
}

// Send writes an element to the underlying session transport.
func (s *Session) Send(ctx context.Context, elem xmpp.XElement) error {
	log.Debugf("SEND(%s): %v", s.id, elem)
	return s.writeElement(ctx, elem, true)
}

// Receive returns next incoming session element.
func (s *Session) Receive() (xmpp.XElement, *Error) {
	elem, err := s.tr.ReadElement()
	if err != nil {
		return nil, s.mapReadError(err)
	}
	if elem == nil {
		return nil, &Error{}
	}
	log.Debugf("RECV(%s): %v", s.id, elem)

	if atomic.LoadUint32(&s.started) == 0 {
		if sErr := s.validateStreamElement(elem); sErr != nil {
			return nil, sErr
		}
		if s.isInitiating {
			s.mu.Lock()
			s.streamID = elem.ID()
			s.mu.Unlock()
		}
		atomic.StoreUint32(&s.started, 1)
		return elem, nil
	}
	if elem.Name() == "close" && (elem.Namespace() == streamNamespace || elem.Namespace() == framedStreamNamespace) {
		return nil, &Error{} // peer closed the stream
	}
	if elem.IsStanza() {
		return s.buildStanza(elem)
	}
	return elem, nil
}

func (s *Session) writeElement(_ context.Context, elem xmpp.XElement, includeClosing bool) error {
	return s.tr.WriteElement(elem, includeClosing)
}

func (s *Session) buildStanza(elem xmpp.XElement) (xmpp.XElement, *Error) {
	if sErr := s.validateNamespace(elem); sErr != nil {
		return nil, sErr
	}
	fromJID, toJID, sErr := s.extractAddresses(elem)
	if sErr != nil {
		return nil, sErr
	}
	switch elem.Name() {
	case "iq":
		iq, err := xmpp.NewIQFromElement(elem, fromJID, toJID)
		if err != nil {
			log.Error(err)
			return nil, &Error{Element: elem, UnderlyingErr: xmpp.ErrBadRequest}
		}
		return iq, nil

	case "presence":
		presence, err := xmpp.NewPresenceFromElement(elem, fromJID, toJID)
		if err != nil {
			log.Error(err)
			return nil, &Error{Element: elem, UnderlyingErr: xmpp.ErrBadRequest}
		}
		return presence, nil

	case "message":
		message, err := xmpp.NewMessageFromElement(elem, fromJID, toJID)
		if err != nil {
			log.Error(err)
			return nil, &Error{Element: elem, UnderlyingErr: xmpp.ErrBadRequest}
		}
		return message, nil
	}
	return nil, &Error{UnderlyingErr: stream.ErrUnsupportedStanzaType}
}

func (s *Session) extractAddresses(elem xmpp.XElement) (*jid.JID, *jid.JID, *Error) {
	var fromJID, toJID *jid.JID

	from := elem.From()
	if !s.isServer {
		// the sender of a client stanza is always the session
		// owner, whatever the stanza says
		if s.jid().IsFullWithUser() && len(from) > 0 && !s.isValidFrom(from) {
			return nil, nil, &Error{UnderlyingErr: stream.ErrInvalidFrom}
		}
		fromJID = s.jid()
	} else {
		j, err := jid.NewWithString(from, false)
		if err != nil || j.Domain() != s.remoteDomainName() {
			return nil, nil, &Error{UnderlyingErr: stream.ErrInvalidFrom}
		}
		fromJID = j
	}
	to := elem.To()
	if len(to) > 0 {
		j, err := jid.NewWithString(to, false)
		if err != nil {
			return nil, nil, &Error{Element: elem, UnderlyingErr: xmpp.ErrJidMalformed}
		}
		toJID = j
	} else {
		toJID = s.jid().ToBareJID() // account's bare JID as default 'to'
	}
	return fromJID, toJID, nil
}

func (s *Session) isValidFrom(from string) bool {
	j, err := jid.NewWithString(from, false)
	if err != nil || j == nil {
		return false
	}
	valid := j.Node() == s.jid().Node() && j.Domain() == s.jid().Domain()
	if len(j.Resource()) > 0 {
		valid = valid && j.Resource() == s.jid().Resource()
	}
	return valid
}

func (s *Session) validateStreamElement(elem xmpp.XElement) *Error {
	switch s.tr.Type() {
	case transport.WebSocket:
		if elem.Name() != "open" {
			return &Error{UnderlyingErr: stream.ErrUnsupportedStanzaType}
		}
		if elem.Namespace() != framedStreamNamespace {
			return &Error{UnderlyingErr: stream.ErrInvalidNamespace}
		}

	default:
		if elem.Name() != "stream:stream" {
			return &Error{UnderlyingErr: stream.ErrUnsupportedStanzaType}
		}
		if elem.Namespace() != s.namespace() || elem.Attributes().Get("xmlns:stream") != streamNamespace {
			return &Error{UnderlyingErr: stream.ErrInvalidNamespace}
		}
	}
	if s.isComponent {
		// a component addresses the domain it intends to serve, which
		// is never a local host, and omits the version attribute
		if len(elem.To()) == 0 {
			return &Error{UnderlyingErr: stream.ErrHostUnknown}
		}
		return nil
	}
	to := elem.To()
	if len(to) > 0 && !s.hosts.IsLocalHost(to) {
		return &Error{UnderlyingErr: stream.ErrHostUnknown}
	}
	if elem.Version() != "1.0" {
		return &Error{UnderlyingErr: stream.ErrUnsupportedVersion}
	}
	return nil
}

func (s *Session) validateNamespace(elem xmpp.XElement) *Error {
	ns := elem.Namespace()
	if len(ns) == 0 || ns == s.namespace() || ns == dialbackNamespace {
		return nil
	}
	return &Error{UnderlyingErr: stream.ErrInvalidNamespace}
}

func (s *Session) namespace() string {
	switch {
	case s.isServer:
		return jabberServerNamespace
	case s.isComponent:
		return jabberComponentNamespace
	}
	return jabberClientNamespace
}

func (s *Session) jid() *jid.JID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sJID
}

func (s *Session) remoteDomainName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteDomain
}

func (s *Session) mapReadError(err error) *Error {
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		return &Error{}
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return &Error{UnderlyingErr: stream.ErrConnectionTimeout}
	}
	return &Error{UnderlyingErr: err}
}

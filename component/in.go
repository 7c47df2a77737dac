/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package component

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/router"
	"github.com/jabberwock-im/jabberwock/runqueue"
	"github.com/jabberwock-im/jabberwock/session"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
)

const (
	connecting uint32 = iota
	handshaking
	authenticated
	disconnected
)

type inStream struct {
	started   uint32
	id        string
	cfg       *streamConfig
	hosts     *host.Hosts
	router    *router.Router
	pool      *pending.Pool
	sess      *session.Session
	connectTm *time.Timer
	state     uint32
	flags     uint32
	runQueue  *runqueue.RunQueue

	mu  sync.RWMutex
	jid *jid.JID
}

func newInStream(cfg *streamConfig, hosts *host.Hosts, r *router.Router, pool *pending.Pool) *inStream {
	id := nextComponentID()
	return &inStream{
		id:       id,
		cfg:      cfg,
		hosts:    hosts,
		router:   r,
		pool:     pool,
		runQueue: runqueue.New(id),
	}
}

func (s *inStream) start() error {
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return fmt.Errorf("stream already started (id: %s)", s.id)
	}
	j, _ := jid.New("", s.hosts.DefaultHostName(), "", true)
	s.setJID(j)
	s.connectTm = time.AfterFunc(s.cfg.connectTimeout, s.connectTimeout)
	s.sess = session.New(s.id, &session.Config{
		JID:         s.JID(),
		Transport:   s.cfg.transport,
		IsComponent: true,
	}, s.hosts)
	s.setState(connecting)

	go s.doRead() // start reading transport...
	return nil
}

func (s *inStream) ID() string {
	return s.id
}

func (s *inStream) Kind() stream.Kind {
	return stream.ComponentKind
}

func (s *inStream) LocalDomain() string {
	return s.hosts.DefaultHostName()
}

// Domain returns the domain the component is serving.
func (s *inStream) Domain() string {
	return s.JID().Domain()
}

func (s *inStream) JID() *jid.JID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jid
}

func (s *inStream) Flags() stream.Flags {
	return stream.Flags(atomic.LoadUint32(&s.flags))
}

func (s *inStream) isAuthenticated() bool {
	return s.Flags()&stream.Authenticated > 0
}

// SendElement dispatches an element delivery over the stream.
func (s *inStream) SendElement(elem xmpp.XElement) {
	if s.getState() == disconnected {
		return
	}
	s.runQueue.Run(func() {
		ctx, cancel := s.streamContext()
		defer cancel()
		s.writeElement(ctx, elem)
	})
}

// Disconnect dispatches a disconnection process and waits for it
// to complete.
func (s *inStream) Disconnect(err error) {
	if s.getState() == disconnected {
		return
	}
	waitCh := make(chan struct{})
	s.runQueue.Run(func() {
		ctx, cancel := s.streamContext()
		defer cancel()

		s.disconnect(ctx, err)
		close(waitCh)
	})
	<-waitCh
}

func (s *inStream) connectTimeout() {
	s.runQueue.Run(func() {
		ctx, cancel := s.streamContext()
		defer cancel()
		s.disconnect(ctx, stream.ErrConnectionTimeout)
	})
}

// runs on its own goroutine
func (s *inStream) doRead() {
	elem, sErr := s.sess.Receive()

	ctx, cancel := s.streamContext()
	defer cancel()

	if sErr == nil {
		s.runQueue.Run(func() {
			s.readElement(ctx, elem)
		})
	} else {
		s.runQueue.Run(func() {
			if s.getState() == disconnected {
				return // already disconnected...
			}
			s.handleSessionError(ctx, sErr)
		})
	}
}

func (s *inStream) handleElement(ctx context.Context, elem xmpp.XElement) {
	switch s.getState() {
	case connecting:
		s.handleConnecting(ctx, elem)
	case handshaking:
		s.handleHandshaking(ctx, elem)
	case authenticated:
		s.handleAuthenticated(ctx, elem)
	}
}

func (s *inStream) handleConnecting(ctx context.Context, elem xmpp.XElement) {
	// cancel connection timeout timer
	if s.connectTm != nil {
		s.connectTm.Stop()
		s.connectTm = nil
	}
	domain := elem.To()
	if s.hosts.IsLocalHost(domain) {
		// a component may not shadow a local host
		s.disconnectWithStreamError(ctx, stream.ErrHostUnknown)
		return
	}
	j, _ := jid.New("", domain, "", true)
	s.setJID(j)
	s.sess.SetJID(j)

	s.setState(handshaking)
	_ = s.sess.Open(ctx)
}

func (s *inStream) handleHandshaking(ctx context.Context, elem xmpp.XElement) {
	if elem.Name() != "handshake" {
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
		return
	}
	if elem.Text() != s.handshakeDigest() {
		log.Infof("failed component handshake... (domain: %s)", s.Domain())
		s.disconnectWithStreamError(ctx, stream.ErrNotAuthorized)
		return
	}
	if s.router.IsServerItem(s.Domain()) {
		s.disconnectWithStreamError(ctx, stream.ErrConflict)
		return
	}
	s.router.RegisterServerItem(s.Domain())

	atomic.StoreUint32(&s.flags, uint32(stream.Authenticated))
	s.setState(authenticated)
	log.Infof("authenticated component stream... (domain: %s)", s.Domain())

	s.writeElement(ctx, xmpp.NewElementName("handshake"))

	if s.cfg.onAuthenticate != nil {
		s.cfg.onAuthenticate(s)
	}
}

func (s *inStream) handleAuthenticated(ctx context.Context, elem xmpp.XElement) {
	stanza, ok := elem.(xmpp.Stanza)
	if !ok {
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
		return
	}
	toJID := stanza.ToJID()
	s.pool.Enqueue(pending.Job{
		Stanza: stanza,
		Stream: pending.StreamInfo{
			Name:             s.id,
			Kind:             stream.ComponentKind,
			LocalDomain:      s.LocalDomain(),
			Flags:            s.Flags(),
			ServerTarget:     toJID.IsServer() && s.hosts.IsLocalHost(toJID.Domain()),
			ServerItemTarget: s.router.IsServerItem(toJID.Domain()),
		},
	})
}

// handshakeDigest derives the expected handshake credential from the
// session stream identifier and the shared secret.
func (s *inStream) handshakeDigest() string {
	sum := sha1.Sum([]byte(s.sess.StreamID() + s.cfg.secret))
	return hex.EncodeToString(sum[:])
}

func (s *inStream) handleSessionError(ctx context.Context, sErr *session.Error) {
	switch err := sErr.UnderlyingErr.(type) {
	case nil:
		s.disconnect(ctx, nil)
	case *stream.Error:
		s.disconnectWithStreamError(ctx, err)
	case *xmpp.StanzaError:
		resp := xmpp.NewElementFromElement(sErr.Element)
		resp.SetType(xmpp.ErrorType)
		resp.SetFrom(resp.To())
		resp.SetTo(s.JID().String())
		resp.AppendElement(err.Element())
		s.writeElement(ctx, resp)
	default:
		log.Error(err)
		s.disconnectWithStreamError(ctx, stream.ErrUndefinedCondition)
	}
}

func (s *inStream) writeElement(ctx context.Context, elem xmpp.XElement) {
	if err := s.sess.Send(ctx, elem); err != nil {
		log.Error(err)
	}
}

func (s *inStream) readElement(ctx context.Context, elem xmpp.XElement) {
	if elem != nil {
		s.handleElement(ctx, elem)
	}
	if s.getState() != disconnected {
		go s.doRead()
	}
}

func (s *inStream) disconnect(ctx context.Context, err error) {
	if s.getState() == disconnected {
		return
	}
	switch err {
	case nil:
		s.disconnectClosingSession(ctx, false)
	default:
		if stmErr, ok := err.(*stream.Error); ok {
			s.disconnectWithStreamError(ctx, stmErr)
		} else {
			log.Error(err)
			s.disconnectClosingSession(ctx, false)
		}
	}
}

func (s *inStream) disconnectWithStreamError(ctx context.Context, err *stream.Error) {
	if s.getState() == connecting {
		_ = s.sess.Open(ctx)
	}
	s.writeElement(ctx, err.Element())
	s.disconnectClosingSession(ctx, true)
}

func (s *inStream) disconnectClosingSession(ctx context.Context, closeSession bool) {
	if s.connectTm != nil {
		s.connectTm.Stop()
		s.connectTm = nil
	}
	if closeSession {
		_ = s.sess.Close(ctx)
	}
	if s.isAuthenticated() {
		s.router.UnregisterServerItem(s.Domain())
		log.Infof("unregistered component domain... (domain: %s)", s.Domain())
	}
	if s.cfg.onDisconnect != nil {
		s.cfg.onDisconnect(s)
	}
	s.setState(disconnected)
	_ = s.cfg.transport.Close()

	s.runQueue.Stop(nil) // stop processing messages
}

func (s *inStream) setJID(j *jid.JID) {
	s.mu.Lock()
	s.jid = j
	s.mu.Unlock()
}

func (s *inStream) streamContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.timeout)
}

func (s *inStream) setState(state uint32) {
	atomic.StoreUint32(&s.state, state)
}

func (s *inStream) getState() uint32 {
	return atomic.LoadUint32(&s.state)
}

var componentStreamCounter uint64

func nextComponentID() string {
	return fmt.Sprintf("comp:%d", atomic.AddUint64(&componentStreamCounter, 1))
}

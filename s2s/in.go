/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/runqueue"
	"github.com/jabberwock-im/jabberwock/session"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
)

const (
	inConnecting uint32 = iota
	inConnected
	inDisconnected
)

type serverItems interface {
	IsServerItem(domain string) bool
}

type inStream struct {
	started       uint32
	id            string
	cfg           *streamConfig
	hosts         hosts
	items         serverItems
	pool          *pending.Pool
	outProvider   *OutProvider
	hub           *InHub
	state         uint32
	flags         uint32
	sess          *session.Session
	secured       uint32
	authenticated uint32
	mu            sync.RWMutex
	remoteDomain  string
	openID        string
	runQueue      *runqueue.RunQueue
}

func newInStream(cfg *streamConfig, hosts hosts, items serverItems, pool *pending.Pool, outProvider *OutProvider, hub *InHub) *inStream {
	id := nextInID()
	return &inStream{
		id:          id,
		cfg:         cfg,
		hosts:       hosts,
		items:       items,
		pool:        pool,
		outProvider: outProvider,
		hub:         hub,
		runQueue:    runqueue.New(id),
	}
}

func (s *inStream) ID() string {
	return s.id
}

func (s *inStream) Kind() stream.Kind {
	return stream.S2SKind
}

func (s *inStream) LocalDomain() string {
	return s.cfg.localDomain
}

func (s *inStream) Flags() stream.Flags {
	return stream.Flags(atomic.LoadUint32(&s.flags))
}

// Disconnect dispatches a disconnection process over the stream.
func (s *inStream) Disconnect(err error) {
	if s.getState() == inDisconnected {
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

func (s *inStream) start() error {
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return fmt.Errorf("stream already started (id: %s)", s.id)
	}
	s.restartSession()
	s.hub.register(s)

	go s.doRead() // start reading transport...
	return nil
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
			if s.getState() == inDisconnected {
				return // already disconnected...
			}
			s.handleSessionError(ctx, sErr)
		})
	}
}

func (s *inStream) handleElement(ctx context.Context, elem xmpp.XElement) {
	switch s.getState() {
	case inConnecting:
		s.handleConnecting(ctx, elem)
	case inConnected:
		s.handleConnected(ctx, elem)
	}
}

func (s *inStream) handleConnecting(ctx context.Context, elem xmpp.XElement) {
	// the opening element has already been validated by the session
	if openID := elem.ID(); len(openID) > 0 {
		if !s.hub.registerOpenID(openID, s.id) {
			s.disconnectWithStreamError(ctx, stream.ErrInvalidID)
			return
		}
		s.openID = openID
	}
	s.setRemoteDomain(elem.From())
	s.sess.SetRemoteDomain(elem.From())

	_ = s.sess.Open(ctx)

	features := xmpp.NewElementName("stream:features")
	features.SetAttribute("xmlns:stream", streamNamespace)
	if !s.isSecured() && s.cfg.tls != nil {
		startTLS := xmpp.NewElementNamespace("starttls", tlsNamespace)
		features.AppendElement(startTLS)
	}
	features.AppendElement(xmpp.NewElementNamespace("dialback", dialbackFeatureNamespace))
	s.writeElement(ctx, features)

	s.setState(inConnected)
}

func (s *inStream) handleConnected(ctx context.Context, elem xmpp.XElement) {
	switch {
	case elem.Name() == "starttls":
		s.proceedStartTLS(ctx, elem)

	case elem.Name() == "db:result":
		s.startDialbackVerification(ctx, xmpp.NewElementFromElement(elem))

	case elem.Name() == "db:verify":
		s.authorizeDialbackKey(ctx, elem)

	case elem.IsStanza():
		if !s.isAuthenticated() {
			s.disconnectWithStreamError(ctx, stream.ErrNotAuthorized)
			return
		}
		stanza, ok := elem.(xmpp.Stanza)
		if !ok {
			s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
			return
		}
		s.enqueueStanza(stanza)

	default:
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
	}
}

func (s *inStream) proceedStartTLS(ctx context.Context, elem xmpp.XElement) {
	if s.isSecured() {
		s.disconnectWithStreamError(ctx, stream.ErrNotAuthorized)
		return
	}
	if elem.Namespace() != tlsNamespace {
		s.disconnectWithStreamError(ctx, stream.ErrInvalidNamespace)
		return
	}
	s.writeElement(ctx, xmpp.NewElementNamespace("proceed", tlsNamespace))
	s.cfg.transport.StartTLS(s.cfg.tls, false)

	atomic.StoreUint32(&s.secured, 1)
	s.setFlags(s.Flags() | stream.Secured)
	s.restartSession()
}

// startDialbackVerification relays the received dialback key to the
// claimed origin domain through a dialback-only outgoing stream.
func (s *inStream) startDialbackVerification(ctx context.Context, elem *xmpp.Element) {
	dbVerify := xmpp.NewElementName("db:verify")
	dbVerify.SetID(s.sess.StreamID())
	dbVerify.SetFrom(elem.To())
	dbVerify.SetTo(elem.From())
	dbVerify.SetText(elem.Text())

	go func() {
		result := s.outProvider.verifyKey(ctx, elem.To(), elem.From(), dbVerify)
		s.runQueue.Run(func() {
			verifyCtx, cancel := s.streamContext()
			defer cancel()
			s.finishDialbackVerification(verifyCtx, elem, result)
		})
	}()
}

func (s *inStream) finishDialbackVerification(ctx context.Context, elem *xmpp.Element, result verifyResult) {
	if s.getState() == inDisconnected {
		return
	}
	db := xmpp.NewElementName("db:result")
	db.SetFrom(elem.To())
	db.SetTo(elem.From())

	switch {
	case result.timedOut:
		db.SetType("error")
		errElem := xmpp.NewElementName("error")
		errElem.SetType("cancel")
		errElem.AppendElement(xmpp.NewElementName("remote-server-timeout"))
		db.AppendElement(errElem)

	case result.noRemote:
		// the authoritative server disowned the origin domain
		db.SetType("error")
		errElem := xmpp.NewElementName("error")
		errElem.SetType("cancel")
		errElem.AppendElement(xmpp.NewElementName("remote-server-not-found"))
		db.AppendElement(errElem)

	case result.valid:
		db.SetType("valid")
		atomic.StoreUint32(&s.authenticated, 1)
		s.setFlags(s.Flags() | stream.Authenticated)
		s.setRemoteDomain(elem.From())
		s.sess.SetRemoteDomain(elem.From())
		log.Infof("s2s in stream successfully authenticated... (domain: %s)", elem.From())

	default:
		db.SetType("invalid")
	}
	s.writeElement(ctx, db)
}

// authorizeDialbackKey answers a verification request for a key this
// server generated on one of its own outgoing streams.
func (s *inStream) authorizeDialbackKey(ctx context.Context, elem xmpp.XElement) {
	if !s.hosts.IsLocalHost(elem.To()) {
		s.writeStanzaErrorResponse(ctx, elem, xmpp.ErrItemNotFound)
		return
	}
	dbVerify := xmpp.NewElementName("db:verify")
	dbVerify.SetID(elem.ID())
	dbVerify.SetFrom(elem.To())
	dbVerify.SetTo(elem.From())

	expected := s.cfg.keyGen.generate(elem.From(), elem.To(), elem.ID())
	if expected == elem.Text() {
		log.Infof("dialback key successfully verified... (from: %s)", elem.From())
		dbVerify.SetType("valid")
	} else {
		log.Infof("failed dialback key verification... (from: %s)", elem.From())
		dbVerify.SetType("invalid")
	}
	s.writeElement(ctx, dbVerify)
}

func (s *inStream) enqueueStanza(stanza xmpp.Stanza) {
	toJID := stanza.ToJID()
	s.pool.Enqueue(pending.Job{
		Stanza: stanza,
		Stream: pending.StreamInfo{
			Name:             s.id,
			Kind:             stream.S2SKind,
			LocalDomain:      s.cfg.localDomain,
			Flags:            s.Flags(),
			ServerTarget:     toJID.IsServer() && s.hosts.IsLocalHost(toJID.Domain()),
			ServerItemTarget: s.items != nil && s.items.IsServerItem(toJID.Domain()),
		},
	})
}

func (s *inStream) writeStanzaErrorResponse(ctx context.Context, elem xmpp.XElement, stanzaErr *xmpp.StanzaError) {
	resp := xmpp.NewElementFromElement(elem)
	resp.SetType(xmpp.ErrorType)
	resp.SetFrom(elem.To())
	resp.SetTo(elem.From())
	resp.AppendElement(stanzaErr.Element())
	s.writeElement(ctx, resp)
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
	if s.getState() != inDisconnected {
		go s.doRead()
	}
}

func (s *inStream) handleSessionError(ctx context.Context, sErr *session.Error) {
	switch err := sErr.UnderlyingErr.(type) {
	case nil:
		s.disconnect(ctx, nil)
	case *stream.Error:
		s.disconnectWithStreamError(ctx, err)
	case *xmpp.StanzaError:
		s.writeStanzaErrorResponse(ctx, sErr.Element, err)
	default:
		log.Error(err)
		s.disconnectWithStreamError(ctx, stream.ErrUndefinedCondition)
	}
}

func (s *inStream) disconnect(ctx context.Context, err error) {
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
	s.writeElement(ctx, err.Element())
	s.disconnectClosingSession(ctx, true)
}

func (s *inStream) disconnectClosingSession(ctx context.Context, closeSession bool) {
	if closeSession {
		_ = s.sess.Close(ctx)
	}
	if s.cfg.onInDisconnect != nil {
		s.cfg.onInDisconnect(s)
	}
	s.setState(inDisconnected)
	_ = s.cfg.transport.Close()

	if len(s.openID) > 0 {
		s.hub.unregisterOpenID(s.openID)
	}
	s.hub.unregister(s)
	s.runQueue.Stop(nil) // stop processing messages
}

func (s *inStream) restartSession() {
	j, _ := jid.New("", s.cfg.localDomain, "", true)
	s.sess = session.New(s.id, &session.Config{
		JID:          j,
		Transport:    s.cfg.transport,
		RemoteDomain: s.remoteDomainName(),
		IsServer:     true,
		IsInitiating: false,
	}, s.hosts)
	s.setState(inConnecting)
}

func (s *inStream) streamContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.timeout)
}

func (s *inStream) setRemoteDomain(domain string) {
	s.mu.Lock()
	s.remoteDomain = domain
	s.mu.Unlock()
}

func (s *inStream) remoteDomainName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteDomain
}

func (s *inStream) isSecured() bool {
	return atomic.LoadUint32(&s.secured) == 1
}

func (s *inStream) isAuthenticated() bool {
	return atomic.LoadUint32(&s.authenticated) == 1
}

func (s *inStream) setFlags(flags stream.Flags) {
	atomic.StoreUint32(&s.flags, uint32(flags))
}

func (s *inStream) setState(state uint32) {
	atomic.StoreUint32(&s.state, state)
}

func (s *inStream) getState() uint32 {
	return atomic.LoadUint32(&s.state)
}

var inStreamCounter uint64

func nextInID() string {
	return fmt.Sprintf("s2s:in:%d", atomic.AddUint64(&inStreamCounter, 1))
}

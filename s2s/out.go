/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/runqueue"
	"github.com/jabberwock-im/jabberwock/session"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/pkg/errors"
)

const (
	outConnecting uint32 = iota
	outConnected
	outSecuring
	outValidatingDialbackKey
	outAuthorizingDialbackKey
	outVerified
	outDisconnected
)

type verifyResult struct {
	valid    bool
	noRemote bool
	timedOut bool
}

type outStream struct {
	started   uint32
	id        string
	cfg       *streamConfig
	hosts     hosts
	state     uint32
	flags     uint32
	sess      *session.Session
	secured   uint32
	sendQueue []xmpp.XElement
	verifyCh  chan verifyResult
	discCh    chan *stream.Error
	runQueue  *runqueue.RunQueue
}

type hosts interface {
	DefaultHostName() string
	IsLocalHost(h string) bool
}

func newOutStream(hosts hosts) *outStream {
	id := nextOutID()
	return &outStream{
		id:       id,
		hosts:    hosts,
		verifyCh: make(chan verifyResult, 1),
		discCh:   make(chan *stream.Error, 1),
		runQueue: runqueue.New(id),
	}
}

// ID returns the domain pair identifying this stream.
func (s *outStream) ID() string {
	return s.cfg.localDomain + ":" + s.cfg.remoteDomain
}

func (s *outStream) Kind() stream.Kind {
	return stream.S2SKind
}

func (s *outStream) LocalDomain() string {
	return s.cfg.localDomain
}

func (s *outStream) RemoteDomain() string {
	return s.cfg.remoteDomain
}

func (s *outStream) Flags() stream.Flags {
	return stream.Flags(atomic.LoadUint32(&s.flags))
}

// SendElement queues an element delivery. Elements sent before the
// dialback verification completes are queued and flushed afterwards.
func (s *outStream) SendElement(elem xmpp.XElement) {
	if s.getState() == outDisconnected {
		return
	}
	s.runQueue.Run(func() {
		ctx, cancel := s.streamContext()
		defer cancel()

		if s.getState() != outVerified {
			s.sendQueue = append(s.sendQueue, elem)
			return
		}
		s.writeElement(ctx, elem)
	})
}

// Disconnect dispatches a disconnection process and waits for it
// to complete.
func (s *outStream) Disconnect(err error) {
	if s.getState() == outDisconnected {
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

func (s *outStream) start(ctx context.Context, cfg *streamConfig) error {
	if cfg.dbVerify != nil && cfg.dbVerify.Name() != "db:verify" {
		return errors.Errorf("wrong dialback verification element name: %s", cfg.dbVerify.Name())
	}
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return errors.Errorf("stream already started (domainpair: %s)", s.ID())
	}
	s.cfg = cfg
	if cfg.dbVerify != nil {
		s.setFlags(s.Flags() | stream.DialbackOnly)
	}
	s.restartSession()

	go s.doRead() // start reading transport...

	s.runQueue.Run(func() {
		_ = s.sess.Open(ctx)
	})
	return nil
}

func (s *outStream) verify() <-chan verifyResult { return s.verifyCh }
func (s *outStream) done() <-chan *stream.Error  { return s.discCh }

// runs on its own goroutine
func (s *outStream) doRead() {
	elem, sErr := s.sess.Receive()

	ctx, cancel := s.streamContext()
	defer cancel()

	if sErr == nil {
		s.runQueue.Run(func() {
			s.readElement(ctx, elem)
		})
	} else {
		s.runQueue.Run(func() {
			if s.getState() == outDisconnected {
				return // already disconnected...
			}
			s.handleSessionError(ctx, sErr)
		})
	}
}

func (s *outStream) handleElement(ctx context.Context, elem xmpp.XElement) {
	switch s.getState() {
	case outConnecting:
		s.handleConnecting(ctx, elem)
	case outConnected:
		s.handleConnected(ctx, elem)
	case outSecuring:
		s.handleSecuring(ctx, elem)
	case outValidatingDialbackKey:
		s.handleValidatingDialbackKey(ctx, elem)
	case outAuthorizingDialbackKey:
		s.handleAuthorizingDialbackKey(ctx, elem)
	}
}

func (s *outStream) handleConnecting(ctx context.Context, elem xmpp.XElement) {
	s.setState(outConnected)
	if elem.Name() == "stream:features" {
		s.handleConnected(ctx, elem)
	}
}

func (s *outStream) handleConnected(ctx context.Context, elem xmpp.XElement) {
	if elem.Name() != "stream:features" {
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
		return
	}
	if !s.isSecured() && s.cfg.tls != nil {
		if elem.Elements().ChildNamespace("starttls", tlsNamespace) == nil {
			// unsecured channels not supported
			s.disconnectWithStreamError(ctx, stream.ErrPolicyViolation)
			return
		}
		s.setState(outSecuring)
		s.writeElement(ctx, xmpp.NewElementNamespace("starttls", tlsNamespace))
		return
	}
	// authorize dialback key
	if s.cfg.dbVerify != nil {
		s.setState(outAuthorizingDialbackKey)
		s.writeElement(ctx, s.cfg.dbVerify)
		return
	}
	if elem.Elements().ChildNamespace("dialback", dialbackFeatureNamespace) != nil ||
		elem.Elements().ChildNamespace("dialback", dialbackNamespace) != nil {
		s.setState(outValidatingDialbackKey)
		db := xmpp.NewElementName("db:result")
		db.SetFrom(s.cfg.localDomain)
		db.SetTo(s.cfg.remoteDomain)
		db.SetText(s.cfg.keyGen.generate(s.cfg.remoteDomain, s.cfg.localDomain, s.sess.StreamID()))
		s.writeElement(ctx, db)
		return
	}
	// no verification mechanism found... do not allow remote connection
	s.disconnectWithStreamError(ctx, stream.ErrRemoteConnectionFailed)
}

func (s *outStream) handleSecuring(ctx context.Context, elem xmpp.XElement) {
	if elem.Name() != "proceed" {
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
		return
	} else if elem.Namespace() != tlsNamespace {
		s.disconnectWithStreamError(ctx, stream.ErrInvalidNamespace)
		return
	}
	s.cfg.transport.StartTLS(s.cfg.tls, true)

	atomic.StoreUint32(&s.secured, 1)
	s.setFlags(s.Flags() | stream.Secured)
	s.restartSession()
	_ = s.sess.Open(ctx)
}

func (s *outStream) handleValidatingDialbackKey(ctx context.Context, elem xmpp.XElement) {
	switch elem.Name() {
	case "db:result":
		if elem.From() != s.cfg.remoteDomain {
			s.disconnectWithStreamError(ctx, stream.ErrInvalidFrom)
			return
		}
		switch elem.Type() {
		case "valid":
			log.Infof("s2s out stream successfully validated... (domainpair: %s)", s.ID())
			s.finishVerification(ctx)

		default:
			log.Infof("failed s2s out stream validation... (domainpair: %s)", s.ID())
			s.disconnectWithStreamError(ctx, stream.ErrRemoteConnectionFailed)
		}
	}
}

func (s *outStream) handleAuthorizingDialbackKey(ctx context.Context, elem xmpp.XElement) {
	switch elem.Name() {
	case "db:verify":
		if elem.ID() != s.cfg.dbVerify.ID() {
			return // unmatched verification responses are dropped
		}
		s.verifyCh <- classifyVerifyResponse(elem)
		dialbackVerifications.WithLabelValues(elem.Type()).Inc()

		// a dialback-only stream has no further purpose
		s.disconnect(ctx, nil)

	default:
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
	}
}

// classifyVerifyResponse maps a db:verify answer onto a verify result.
// An error-typed answer carrying item-not-found or host-unknown means
// the authoritative server does not serve the origin domain at all,
// which callers report differently from a plain key mismatch.
func classifyVerifyResponse(elem xmpp.XElement) verifyResult {
	switch elem.Type() {
	case "valid":
		return verifyResult{valid: true}
	case "error":
		if errElem := elem.Elements().Child("error"); errElem != nil {
			if errElem.Elements().Child("item-not-found") != nil || errElem.Elements().Child("host-unknown") != nil {
				return verifyResult{noRemote: true}
			}
		}
		return verifyResult{}
	default:
		return verifyResult{}
	}
}

func (s *outStream) finishVerification(ctx context.Context) {
	s.setFlags(s.Flags() | stream.Authenticated)

	// send pending elements...
	for _, el := range s.sendQueue {
		s.writeElement(ctx, el)
	}
	s.sendQueue = nil
	s.setState(outVerified)
}

func (s *outStream) writeElement(ctx context.Context, elem xmpp.XElement) {
	if err := s.sess.Send(ctx, elem); err != nil {
		log.Error(err)
	}
}

func (s *outStream) readElement(ctx context.Context, elem xmpp.XElement) {
	if elem != nil {
		s.handleElement(ctx, elem)
	}
	if s.getState() != outDisconnected {
		go s.doRead()
	}
}

func (s *outStream) handleSessionError(ctx context.Context, sErr *session.Error) {
	switch err := sErr.UnderlyingErr.(type) {
	case nil:
		s.disconnect(ctx, nil)
	case *stream.Error:
		s.disconnectWithStreamError(ctx, err)
	default:
		log.Error(err)
		s.disconnectWithStreamError(ctx, stream.ErrUndefinedCondition)
	}
}

func (s *outStream) disconnect(ctx context.Context, err error) {
	switch err {
	case nil:
		s.disconnectClosingSession(ctx, false, nil)
	default:
		if stmErr, ok := err.(*stream.Error); ok {
			s.disconnectWithStreamError(ctx, stmErr)
		} else {
			log.Error(err)
			s.disconnectClosingSession(ctx, false, nil)
		}
	}
}

func (s *outStream) disconnectWithStreamError(ctx context.Context, err *stream.Error) {
	s.writeElement(ctx, err.Element())
	s.disconnectClosingSession(ctx, true, err)
}

func (s *outStream) disconnectClosingSession(ctx context.Context, closeSession bool, err *stream.Error) {
	// a stream dying while a verification is still pending must
	// never leave the waiting party hanging
	if s.getState() == outAuthorizingDialbackKey {
		select {
		case s.verifyCh <- verifyResult{timedOut: true}:
		default:
		}
	}
	if closeSession {
		_ = s.sess.Close(ctx)
	}
	if err != nil {
		select {
		case s.discCh <- err:
		default:
		}
	}
	if s.cfg.onOutDisconnect != nil {
		s.cfg.onOutDisconnect(s)
	}
	s.setState(outDisconnected)
	_ = s.cfg.transport.Close()

	s.runQueue.Stop(nil) // stop processing messages

	close(s.discCh)
}

func (s *outStream) restartSession() {
	j, _ := jid.New("", s.cfg.localDomain, "", true)
	s.sess = session.New(s.id, &session.Config{
		JID:          j,
		Transport:    s.cfg.transport,
		RemoteDomain: s.cfg.remoteDomain,
		IsServer:     true,
		IsInitiating: true,
	}, s.hosts)
	s.setState(outConnecting)
}

func (s *outStream) streamContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.timeout)
}

func (s *outStream) isSecured() bool {
	return atomic.LoadUint32(&s.secured) == 1
}

func (s *outStream) setFlags(flags stream.Flags) {
	atomic.StoreUint32(&s.flags, uint32(flags))
}

func (s *outStream) setState(state uint32) {
	atomic.StoreUint32(&s.state, state)
}

func (s *outStream) getState() uint32 {
	return atomic.LoadUint32(&s.state)
}

var outStreamCounter uint64

func nextOutID() string {
	return fmt.Sprintf("s2s:out:%d", atomic.AddUint64(&outStreamCounter, 1))
}

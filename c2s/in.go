/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package c2s

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/router"
	"github.com/jabberwock-im/jabberwock/runqueue"
	"github.com/jabberwock-im/jabberwock/session"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/pborman/uuid"
)

const (
	connecting uint32 = iota
	connected
	authenticating
	authenticated
	bound
	disconnected
)

const (
	streamNamespace   = "http://etherx.jabber.org/streams"
	tlsNamespace      = "urn:ietf:params:xml:ns:xmpp-tls"
	bindNamespace     = "urn:ietf:params:xml:ns:xmpp-bind"
	sessionNamespace  = "urn:ietf:params:xml:ns:xmpp-session"
	authNamespace         = "jabber:iq:auth"
	authFeatureStream     = "http://jabber.org/features/iq-auth"
	registerNamespace     = "jabber:iq:register"
	registerFeatureStream = "http://jabber.org/features/iq-register"
)

const maxBindAttempts = 3

type inStream struct {
	started   uint32
	id        string
	cfg       *streamConfig
	hosts     *host.Hosts
	router    *router.Router
	appBus    bus.Bus
	pool      *pending.Pool
	sess      *session.Session
	connectTm *time.Timer
	state     uint32
	flags     uint32
	runQueue  *runqueue.RunQueue

	mu          sync.RWMutex
	jid         *jid.JID
	presence    *xmpp.Presence
	sessStarted bool
}

func newInStream(cfg *streamConfig, hosts *host.Hosts, r *router.Router, appBus bus.Bus, pool *pending.Pool) *inStream {
	id := nextC2SID()
	return &inStream{
		id:       id,
		cfg:      cfg,
		hosts:    hosts,
		router:   r,
		appBus:   appBus,
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
	s.restartSession()

	go s.doRead() // start reading transport...
	return nil
}

func (s *inStream) ID() string {
	return s.id
}

func (s *inStream) Kind() stream.Kind {
	return stream.C2SKind
}

func (s *inStream) LocalDomain() string {
	return s.Domain()
}

func (s *inStream) Username() string {
	return s.JID().Node()
}

func (s *inStream) Domain() string {
	return s.JID().Domain()
}

func (s *inStream) Resource() string {
	return s.JID().Resource()
}

func (s *inStream) JID() *jid.JID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jid
}

func (s *inStream) Flags() stream.Flags {
	return stream.Flags(atomic.LoadUint32(&s.flags))
}

// SetFlags replaces current stream condition flags.
func (s *inStream) SetFlags(flags stream.Flags) {
	atomic.StoreUint32(&s.flags, uint32(flags))
}

func (s *inStream) IsSecured() bool {
	return s.Flags()&stream.Secured > 0
}

func (s *inStream) IsAuthenticated() bool {
	return s.Flags()&stream.Authenticated > 0
}

// Presence returns last sent available presence, or nil if none has
// been sent yet.
func (s *inStream) Presence() *xmpp.Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence
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
	case connected:
		s.handleConnected(ctx, elem)
	case authenticating:
		s.handleAuthenticating(ctx, elem)
	case authenticated:
		s.handleAuthenticated(ctx, elem)
	case bound:
		s.handleBound(ctx, elem)
	}
}

func (s *inStream) handleConnecting(ctx context.Context, elem xmpp.XElement) {
	// cancel connection timeout timer
	if s.connectTm != nil {
		s.connectTm.Stop()
		s.connectTm = nil
	}
	// the opening element has already been validated by the session
	if to := elem.To(); len(to) > 0 {
		j, _ := jid.New(s.Username(), to, s.Resource(), true)
		s.setJID(j)
	}
	s.sess.SetJID(s.JID())

	_ = s.sess.Open(ctx)

	features := xmpp.NewElementName("stream:features")
	features.SetAttribute("xmlns:stream", streamNamespace)
	features.SetAttribute("version", "1.0")

	if !s.IsAuthenticated() {
		features.AppendElements(s.unauthenticatedFeatures())
		s.setState(connected)
	} else {
		features.AppendElements(s.authenticatedFeatures())
		s.setState(authenticated)
	}
	s.writeElement(ctx, features)
}

func (s *inStream) unauthenticatedFeatures() []xmpp.XElement {
	var features []xmpp.XElement

	if s.cfg.transport.Type() == transport.Socket && !s.IsSecured() {
		features = append(features, xmpp.NewElementNamespace("starttls", tlsNamespace))
	}
	features = append(features, xmpp.NewElementNamespace("auth", authFeatureStream))
	features = append(features, xmpp.NewElementNamespace("register", registerFeatureStream))
	return features
}

func (s *inStream) authenticatedFeatures() []xmpp.XElement {
	bind := xmpp.NewElementNamespace("bind", bindNamespace)
	bind.AppendElement(xmpp.NewElementName("required"))

	// [rfc6121] session feature offered for backward compatibility
	sessElem := xmpp.NewElementNamespace("session", sessionNamespace)

	return []xmpp.XElement{bind, sessElem}
}

func (s *inStream) handleConnected(ctx context.Context, elem xmpp.XElement) {
	switch elem.Name() {
	case "starttls":
		s.proceedStartTLS(ctx, elem)

	case "iq":
		iq := elem.(*xmpp.IQ)
		if q := iq.Elements().ChildNamespace("query", authNamespace); q != nil {
			switch {
			case iq.IsGet():
				s.sendAuthFields(ctx, iq, q)
			case iq.IsSet():
				s.startAuthentication(iq, q)
			default:
				s.writeElement(ctx, iq.BadRequestError())
			}
			return
		}
		if q := iq.Elements().ChildNamespace("query", registerNamespace); q != nil {
			switch {
			case iq.IsGet():
				s.sendRegisterFields(ctx, iq)
			case iq.IsSet():
				s.startRegistration(iq, q)
			default:
				s.writeElement(ctx, iq.BadRequestError())
			}
			return
		}
		s.disconnectWithStreamError(ctx, stream.ErrNotAuthorized)

	case "message", "presence":
		s.disconnectWithStreamError(ctx, stream.ErrNotAuthorized)

	default:
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
	}
}

// authenticating streams await the external authenticator answer;
// anything the peer sends meanwhile is a protocol violation.
func (s *inStream) handleAuthenticating(ctx context.Context, elem xmpp.XElement) {
	s.disconnectWithStreamError(ctx, stream.ErrNotAuthorized)
}

func (s *inStream) handleAuthenticated(ctx context.Context, elem xmpp.XElement) {
	iq, ok := elem.(*xmpp.IQ)
	if !ok {
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
		return
	}
	if b := iq.Elements().ChildNamespace("bind", bindNamespace); b != nil && iq.IsSet() {
		s.processBind(ctx, iq, b)
		return
	}
	s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
}

func (s *inStream) handleBound(ctx context.Context, elem xmpp.XElement) {
	stanza, ok := elem.(xmpp.Stanza)
	if !ok {
		s.disconnectWithStreamError(ctx, stream.ErrUnsupportedStanzaType)
		return
	}
	if iq, ok := stanza.(*xmpp.IQ); ok && iq.IsSet() {
		if iq.Elements().ChildNamespace("session", sessionNamespace) != nil {
			if !s.isSessionStarted() {
				s.setSessionStarted(true)
				s.writeElement(ctx, iq.ResultIQ())
			} else {
				s.writeElement(ctx, iq.NotAllowedError())
			}
			return
		}
	}
	if presence, ok := stanza.(*xmpp.Presence); ok {
		if s.JID().Matches(presence.ToJID(), jid.MatchesBare) &&
			(presence.IsAvailable() || presence.IsUnavailable()) {
			s.updatePresence(presence)
		}
	}
	s.enqueueStanza(stanza)
}

func (s *inStream) proceedStartTLS(ctx context.Context, elem xmpp.XElement) {
	if s.IsSecured() {
		s.disconnectWithStreamError(ctx, stream.ErrNotAuthorized)
		return
	}
	if len(elem.Namespace()) > 0 && elem.Namespace() != tlsNamespace {
		s.disconnectWithStreamError(ctx, stream.ErrInvalidNamespace)
		return
	}
	s.writeElement(ctx, xmpp.NewElementNamespace("proceed", tlsNamespace))
	s.cfg.transport.StartTLS(&tls.Config{Certificates: s.hosts.Certificates()}, false)

	s.SetFlags(s.Flags() | stream.Secured)
	log.Infof("secured c2s stream... (id: %s)", s.id)

	s.restartSession()
}

func (s *inStream) sendAuthFields(ctx context.Context, iq *xmpp.IQ, query xmpp.XElement) {
	result := iq.ResultIQ()
	q := xmpp.NewElementNamespace("query", authNamespace)
	if username := query.Elements().Child("username"); username != nil {
		q.AppendElement(xmpp.NewElementName("username").SetText(username.Text()))
	} else {
		q.AppendElement(xmpp.NewElementName("username"))
	}
	q.AppendElement(xmpp.NewElementName("digest"))
	if s.IsSecured() {
		// plain passwords ride encrypted channels only
		q.AppendElement(xmpp.NewElementName("password"))
	}
	q.AppendElement(xmpp.NewElementName("resource"))
	result.AppendElement(q)
	s.writeElement(ctx, result)
}

func (s *inStream) sendRegisterFields(ctx context.Context, iq *xmpp.IQ) {
	result := iq.ResultIQ()
	q := xmpp.NewElementNamespace("query", registerNamespace)
	q.AppendElement(xmpp.NewElementName("username"))
	q.AppendElement(xmpp.NewElementName("password"))
	result.AppendElement(q)
	s.writeElement(ctx, result)
}

// startRegistration submits an in-band account creation request. The
// peer does not need to be authenticated, which is the whole point of
// in-band registration.
func (s *inStream) startRegistration(iq *xmpp.IQ, query xmpp.XElement) {
	ctx, cancel := s.streamContext()
	defer cancel()

	username := childText(query, "username")
	password := childText(query, "password")
	if len(username) == 0 || len(password) == 0 {
		s.writeElement(ctx, iq.BadRequestError())
		return
	}
	msg := bus.NewMessage(bus.UserRegister).
		SetParam("operation", "create").
		SetParam("username", username).
		SetParam("password", password).
		SetParam("domain", s.Domain())

	go func() {
		regCtx, regCancel := s.streamContext()
		defer regCancel()

		resp, err := s.appBus.Request(regCtx, msg)
		s.runQueue.Run(func() {
			doneCtx, doneCancel := s.streamContext()
			defer doneCancel()
			s.finishRegistration(doneCtx, iq, username, resp, err)
		})
	}()
}

func (s *inStream) finishRegistration(ctx context.Context, iq *xmpp.IQ, username string, resp *bus.Response, err error) {
	if s.getState() == disconnected {
		return
	}
	if err != nil || resp == nil || !resp.Handled {
		log.Errorf("registration request failed: %v (username: %s)", err, username)
		s.writeElement(ctx, iq.ServiceUnavailableError())
		return
	}
	if resp.Param("created") != "true" {
		s.writeElement(ctx, iq.ConflictError())
		return
	}
	log.Infof("registered user account... (username: %s)", username)
	s.writeElement(ctx, iq.ResultIQ())
}

// startAuthentication extracts the offered credential and submits it
// to the external authenticator. The stream keeps processing its run
// queue while awaiting the answer.
func (s *inStream) startAuthentication(iq *xmpp.IQ, query xmpp.XElement) {
	ctx, cancel := s.streamContext()
	defer cancel()

	username := childText(query, "username")
	digest := childText(query, "digest")
	password := childText(query, "password")
	resource := childText(query, "resource")

	if len(username) == 0 {
		s.writeElement(ctx, iq.NotAcceptableError())
		return
	}
	if len(digest) == 0 && len(password) == 0 {
		s.writeElement(ctx, iq.NotAcceptableError())
		return
	}
	if len(digest) == 0 && !s.IsSecured() {
		// no plain credentials over an unsecured channel
		s.writeElement(ctx, iq.NotAuthorizedError())
		return
	}
	msg := bus.NewMessage(bus.UserAuth).
		SetParam("username", username).
		SetParam("domain", s.Domain()).
		SetParam("stream", s.sess.StreamID())
	if len(digest) > 0 {
		msg.SetParam("digest", digest)
	} else {
		msg.SetParam("password", password)
	}
	s.setState(authenticating)

	go func() {
		authCtx, authCancel := s.streamContext()
		defer authCancel()

		resp, err := s.appBus.Request(authCtx, msg)
		s.runQueue.Run(func() {
			doneCtx, doneCancel := s.streamContext()
			defer doneCancel()
			s.finishAuthentication(doneCtx, iq, username, resource, resp, err)
		})
	}()
}

func (s *inStream) finishAuthentication(ctx context.Context, iq *xmpp.IQ, username, resource string, resp *bus.Response, err error) {
	if s.getState() != authenticating {
		return // stream went away while authenticating
	}
	if err != nil || resp == nil || !resp.Handled {
		log.Errorf("authentication request failed: %v (username: %s)", err, username)
		s.writeElement(ctx, iq.InternalServerError())
		s.setState(connected)
		return
	}
	if resp.Param("authenticated") != "true" {
		log.Infof("failed c2s authentication... (username: %s)", username)
		s.writeElement(ctx, iq.NotAuthorizedError())
		s.setState(connected)
		return
	}
	j, _ := jid.New(username, s.Domain(), "", true)
	s.setJID(j)
	s.sess.SetJID(j)
	s.SetFlags(s.Flags() | stream.Authenticated)
	log.Infof("authenticated c2s stream... (username: %s)", username)

	if len(resource) == 0 {
		// await a regular resource binding request
		s.writeElement(ctx, iq.ResultIQ())
		s.setState(authenticated)
		return
	}
	boundResource, bindErr := s.bindUserResource(resource)
	if bindErr != nil {
		log.Warnf("%v (username: %s)", bindErr, username)
		s.writeElement(ctx, iq.ConflictError())
		s.setState(authenticated)
		return
	}
	s.setState(bound)
	s.writeElement(ctx, iq.ResultIQ())
	s.notifyBound(ctx, boundResource)
}

func (s *inStream) processBind(ctx context.Context, iq *xmpp.IQ, bindElem xmpp.XElement) {
	var requested string
	if resourceElem := bindElem.Elements().Child("resource"); resourceElem != nil {
		requested = resourceElem.Text()
	}
	boundResource, err := s.bindUserResource(requested)
	if err != nil {
		log.Warnf("%v (username: %s)", err, s.Username())
		s.writeElement(ctx, iq.ConflictError())
		return
	}
	result := xmpp.NewIQType(iq.ID(), xmpp.ResultType)
	boundElem := xmpp.NewElementNamespace("bind", bindNamespace)
	j := xmpp.NewElementName("jid")
	j.SetText(s.Username() + "@" + s.Domain() + "/" + boundResource)
	boundElem.AppendElement(j)
	result.AppendElement(boundElem)

	s.setState(bound)
	s.writeElement(ctx, result)
	s.notifyBound(ctx, boundResource)
}

// bindUserResource makes the stream resource visible to the rest of the
// engine. A reservation guards the resource while the bind is in
// flight, and is released on every exit path. Conflicting or
// restricted resources fall back to a digest derived from the stream
// id, up to a bounded number of attempts.
func (s *inStream) bindUserResource(requested string) (string, error) {
	username := s.Username()
	resource := requested

	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		if len(resource) == 0 || attempt > 0 {
			resource = s.fallbackResource()
		}
		if err := s.router.ReserveResource(username, resource); err != nil {
			continue // restricted, or some other stream is binding it
		}
		if s.boundStreamWithResource(username, resource) != nil {
			s.router.ReleaseResource(username, resource)
			continue
		}
		userJID, err := jid.New(username, s.Domain(), resource, false)
		if err != nil {
			s.router.ReleaseResource(username, resource)
			return "", err
		}
		s.setJID(userJID)
		s.sess.SetJID(userJID)

		s.mu.Lock()
		s.presence = xmpp.NewPresence(userJID, userJID, xmpp.UnavailableType)
		s.mu.Unlock()

		s.router.Bind(s)
		s.router.ReleaseResource(username, resource)
		return resource, nil
	}
	return "", fmt.Errorf("c2s: no resource could be bound after %d attempts", maxBindAttempts)
}

// fallbackResource derives a replacement resource from the stream id,
// salted so consecutive attempts never repeat.
func (s *inStream) fallbackResource() string {
	sum := md5.Sum([]byte(s.id + ":" + uuid.New()))
	return hex.EncodeToString(sum[:])
}

func (s *inStream) boundStreamWithResource(username, resource string) stream.C2S {
	for _, stm := range s.router.UserStreams(username) {
		if stm.Resource() == resource {
			return stm
		}
	}
	return nil
}

func (s *inStream) notifyBound(ctx context.Context, resource string) {
	msg := bus.NewMessage(bus.ResourceNotify).
		SetParam("username", s.Username()).
		SetParam("resource", resource).
		SetParam("operation", "bound")
	_ = s.appBus.Post(ctx, msg)

	online := bus.NewMessage(bus.UserNotify).
		SetParam("username", s.Username()).
		SetParam("domain", s.Domain()).
		SetParam("resource", resource).
		SetParam("operation", "online")
	_ = s.appBus.Post(ctx, online)
}

func (s *inStream) updatePresence(presence *xmpp.Presence) {
	s.mu.Lock()
	s.presence = presence
	s.mu.Unlock()

	flags := s.Flags()
	if presence.IsAvailable() {
		flags |= stream.AvailableResource
	} else {
		flags &^= stream.AvailableResource
	}
	if presence.Priority() > 0 {
		flags |= stream.PositivePriority
	} else {
		flags &^= stream.PositivePriority
	}
	s.SetFlags(flags)
}

func (s *inStream) enqueueStanza(stanza xmpp.Stanza) {
	toJID := stanza.ToJID()
	s.pool.Enqueue(pending.Job{
		Stanza: stanza,
		Stream: pending.StreamInfo{
			Name:             s.id,
			Kind:             stream.C2SKind,
			LocalDomain:      s.Domain(),
			Flags:            s.Flags(),
			ServerTarget:     toJID.IsServer() && s.hosts.IsLocalHost(toJID.Domain()),
			ServerItemTarget: s.router.IsServerItem(toJID.Domain()),
		},
	})
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

func (s *inStream) writeStanzaErrorResponse(ctx context.Context, elem xmpp.XElement, stanzaErr *xmpp.StanzaError) {
	resp := xmpp.NewElementFromElement(elem)
	resp.SetType(xmpp.ErrorType)
	resp.SetFrom(resp.To())
	resp.SetTo(s.JID().String())
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
		s.disconnectClosingSession(ctx, false, true)
	default:
		if stmErr, ok := err.(*stream.Error); ok {
			s.disconnectWithStreamError(ctx, stmErr)
		} else {
			log.Error(err)
			s.disconnectClosingSession(ctx, false, true)
		}
	}
}

func (s *inStream) disconnectWithStreamError(ctx context.Context, err *stream.Error) {
	if s.getState() == connecting {
		_ = s.sess.Open(ctx)
	}
	s.writeElement(ctx, err.Element())

	unbind := err != stream.ErrSystemShutdown
	s.disconnectClosingSession(ctx, true, unbind)
}

func (s *inStream) disconnectClosingSession(ctx context.Context, closeSession, unbind bool) {
	if s.connectTm != nil {
		s.connectTm.Stop()
		s.connectTm = nil
	}
	wasBound := s.getState() == bound

	// a client vanishing while available owes the engine an
	// unavailable presence
	if presence := s.Presence(); presence != nil && presence.IsAvailable() {
		unavailable := xmpp.NewPresence(s.JID(), s.JID().ToBareJID(), xmpp.UnavailableType)
		s.enqueueStanza(unavailable)
	}
	if closeSession {
		_ = s.sess.Close(ctx)
	}
	if unbind {
		s.router.Unbind(s.JID())
	}
	if wasBound {
		autorestart := unbind && s.Flags()&stream.NoAutoRestart == 0
		offline := bus.NewMessage(bus.UserNotify).
			SetParam("username", s.Username()).
			SetParam("domain", s.Domain()).
			SetParam("resource", s.Resource()).
			SetParam("operation", "offline").
			SetParam("autorestart", strconv.FormatBool(autorestart))
		_ = s.appBus.Post(ctx, offline)
	}
	if s.cfg.onDisconnect != nil {
		s.cfg.onDisconnect(s)
	}
	s.setState(disconnected)
	_ = s.cfg.transport.Close()

	s.runQueue.Stop(nil) // stop processing messages
}

func (s *inStream) restartSession() {
	s.sess = session.New(s.id, &session.Config{
		JID:       s.JID(),
		Transport: s.cfg.transport,
	}, s.hosts)
	s.setState(connecting)
}

func (s *inStream) isSessionStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessStarted
}

func (s *inStream) setSessionStarted(started bool) {
	s.mu.Lock()
	s.sessStarted = started
	s.mu.Unlock()
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

func childText(parent xmpp.XElement, name string) string {
	child := parent.Elements().Child(name)
	if child == nil {
		return ""
	}
	return child.Text()
}

var c2sStreamCounter uint64

func nextC2SID() string {
	return fmt.Sprintf("c2s:%d", atomic.AddUint64(&c2sStreamCounter, 1))
}

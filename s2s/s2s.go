/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/router"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
)

const (
	streamNamespace          = "http://etherx.jabber.org/streams"
	tlsNamespace             = "urn:ietf:params:xml:ns:xmpp-tls"
	dialbackNamespace        = "jabber:server:dialback"
	dialbackFeatureNamespace = "urn:xmpp:features:dialback"
)

// InHub keeps track of the active incoming s2s streams.
type InHub struct {
	mu      sync.Mutex
	streams map[string]stream.S2SIn
	openIDs map[string]string
}

// NewInHub returns an initialized incoming stream hub.
func NewInHub() *InHub {
	return &InHub{
		streams: make(map[string]stream.S2SIn),
		openIDs: make(map[string]string),
	}
}

func (h *InHub) register(stm stream.S2SIn) {
	h.mu.Lock()
	h.streams[stm.ID()] = stm
	h.mu.Unlock()
	inConnectionRegistered.Inc()
	log.Infof("registered s2s in stream... (id: %s)", stm.ID())
}

func (h *InHub) unregister(stm stream.S2SIn) {
	h.mu.Lock()
	delete(h.streams, stm.ID())
	h.mu.Unlock()
	inConnectionUnregistered.Inc()
	log.Infof("unregistered s2s in stream... (id: %s)", stm.ID())
}

// registerOpenID claims a peer advertised stream identifier, refusing
// it when another active stream already owns it.
func (h *InHub) registerOpenID(openID, streamID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if owner, ok := h.openIDs[openID]; ok && owner != streamID {
		return false
	}
	h.openIDs[openID] = streamID
	return true
}

func (h *InHub) unregisterOpenID(openID string) {
	h.mu.Lock()
	delete(h.openIDs, openID)
	h.mu.Unlock()
}

// Shutdown disconnects every registered incoming stream.
func (h *InHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	streams := make([]stream.S2SIn, 0, len(h.streams))
	for _, stm := range h.streams {
		streams = append(streams, stm)
	}
	h.mu.Unlock()

	for _, stm := range streams {
		stm.Disconnect(stream.ErrSystemShutdown)
	}
	return nil
}

// S2S represents a server-to-server connection manager.
type S2S struct {
	cfg         *Config
	hosts       *host.Hosts
	router      *router.Router
	pool        *pending.Pool
	outProvider *OutProvider
	inHub       *InHub
	cf          transport.CodecFactory

	ln      net.Listener
	active  uint32
	started uint32
}

// New returns a new s2s connection manager.
func New(config *Config, hosts *host.Hosts, r *router.Router, pool *pending.Pool, outProvider *OutProvider, inHub *InHub, cf transport.CodecFactory) *S2S {
	return &S2S{
		cfg:         config,
		hosts:       hosts,
		router:      r,
		pool:        pool,
		outProvider: outProvider,
		inHub:       inHub,
		cf:          cf,
	}
}

// Start begins accepting incoming s2s connections.
func (s *S2S) Start() error {
	if !atomic.CompareAndSwapUint32(&s.started, 0, 1) {
		return nil
	}
	address := s.cfg.Transport.BindAddress + ":" + strconv.Itoa(s.cfg.Transport.Port)
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.ln = ln
	atomic.StoreUint32(&s.active, 1)

	go func() {
		for atomic.LoadUint32(&s.active) == 1 {
			conn, err := s.ln.Accept()
			if err != nil {
				continue
			}
			go s.handleConn(conn)
		}
	}()
	log.Infof("accepting s2s connections at %s", address)
	return nil
}

// Shutdown closes the listener and every active stream.
func (s *S2S) Shutdown(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&s.started, 1, 0) {
		return nil
	}
	atomic.StoreUint32(&s.active, 0)
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			return err
		}
	}
	if err := s.inHub.Shutdown(ctx); err != nil {
		return err
	}
	return s.outProvider.Shutdown(ctx)
}

func (s *S2S) handleConn(conn net.Conn) {
	tr := transport.NewSocketTransport(conn, s.cf, s.cfg.Transport.KeepAlive)
	cfg := &streamConfig{
		keyGen:      &keyGen{secret: s.cfg.DialbackSecret},
		localDomain: s.hosts.DefaultHostName(),
		timeout:     s.cfg.Timeout,
		tls: &tls.Config{
			Certificates: s.hosts.Certificates(),
		},
		transport: tr,
	}
	stm := newInStream(cfg, s.hosts, s.router, s.pool, s.outProvider, s.inHub)
	if err := stm.start(); err != nil {
		log.Warnf("failed to start s2s in stream: %v", err)
	}
}

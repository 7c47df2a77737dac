/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package component

import (
	"context"
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

// Components represents an external component connection manager. It
// acts as the router component provider, resolving the stream serving
// a dynamic server item domain.
type Components struct {
	cfg    *Config
	hosts  *host.Hosts
	router *router.Router
	pool   *pending.Pool
	cf     transport.CodecFactory

	mu      sync.RWMutex
	streams map[string]stream.Component

	ln      net.Listener
	active  uint32
	started uint32
}

// New returns a new external component connection manager.
func New(config *Config, hosts *host.Hosts, r *router.Router, pool *pending.Pool, cf transport.CodecFactory) *Components {
	return &Components{
		cfg:     config,
		hosts:   hosts,
		router:  r,
		pool:    pool,
		cf:      cf,
		streams: make(map[string]stream.Component),
	}
}

// StreamForDomain returns the authenticated component stream serving
// a domain, or nil when no component serves it.
func (c *Components) StreamForDomain(domain string) stream.InOutStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stm, ok := c.streams[domain]
	if !ok {
		return nil
	}
	return stm
}

// Start begins accepting incoming component connections.
func (c *Components) Start() error {
	if !atomic.CompareAndSwapUint32(&c.started, 0, 1) {
		return nil
	}
	address := c.cfg.Transport.BindAddress + ":" + strconv.Itoa(c.cfg.Transport.Port)
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	c.ln = ln
	atomic.StoreUint32(&c.active, 1)

	go func() {
		for atomic.LoadUint32(&c.active) == 1 {
			conn, err := c.ln.Accept()
			if err != nil {
				continue
			}
			go c.handleConn(conn)
		}
	}()
	log.Infof("accepting component connections at %s", address)
	return nil
}

// Shutdown closes the listener and disconnects every active stream.
func (c *Components) Shutdown(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&c.started, 1, 0) {
		return nil
	}
	atomic.StoreUint32(&c.active, 0)
	if c.ln != nil {
		if err := c.ln.Close(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	streams := make([]stream.Component, 0, len(c.streams))
	for _, stm := range c.streams {
		streams = append(streams, stm)
	}
	c.mu.Unlock()

	for _, stm := range streams {
		stm.Disconnect(stream.ErrSystemShutdown)
	}
	return nil
}

func (c *Components) handleConn(conn net.Conn) {
	tr := transport.NewSocketTransport(conn, c.cf, c.cfg.Transport.KeepAlive)
	cfg := &streamConfig{
		secret:         c.cfg.Secret,
		connectTimeout: c.cfg.ConnectTimeout,
		timeout:        c.cfg.Timeout,
		transport:      tr,
		onAuthenticate: c.register,
		onDisconnect:   c.unregister,
	}
	stm := newInStream(cfg, c.hosts, c.router, c.pool)
	if err := stm.start(); err != nil {
		log.Warnf("failed to start component stream: %v", err)
	}
}

func (c *Components) register(stm stream.Component) {
	c.mu.Lock()
	c.streams[stm.Domain()] = stm
	c.mu.Unlock()
	log.Infof("registered component stream... (domain: %s)", stm.Domain())
}

func (c *Components) unregister(stm stream.Component) {
	c.mu.Lock()
	if cur, ok := c.streams[stm.Domain()]; ok && cur.ID() == stm.ID() {
		delete(c.streams, stm.Domain())
	}
	c.mu.Unlock()
	log.Infof("unregistered component stream... (domain: %s)", stm.Domain())
}

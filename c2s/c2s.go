/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package c2s

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/router"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
)

// C2S represents a client-to-server connection manager.
type C2S struct {
	cfg    *Config
	hosts  *host.Hosts
	router *router.Router
	appBus bus.Bus
	pool   *pending.Pool
	cf     transport.CodecFactory

	mu      sync.Mutex
	streams map[string]stream.C2S

	ln      net.Listener
	active  uint32
	started uint32
}

// New returns a new c2s connection manager.
func New(config *Config, hosts *host.Hosts, r *router.Router, appBus bus.Bus, pool *pending.Pool, cf transport.CodecFactory) *C2S {
	return &C2S{
		cfg:     config,
		hosts:   hosts,
		router:  r,
		appBus:  appBus,
		pool:    pool,
		cf:      cf,
		streams: make(map[string]stream.C2S),
	}
}

// Start begins accepting incoming client connections.
func (c *C2S) Start() error {
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
	log.Infof("accepting c2s connections at %s", address)
	return nil
}

// Shutdown closes the listener and disconnects every active stream.
func (c *C2S) Shutdown(ctx context.Context) error {
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
	streams := make([]stream.C2S, 0, len(c.streams))
	for _, stm := range c.streams {
		streams = append(streams, stm)
	}
	c.mu.Unlock()

	for _, stm := range streams {
		stm.Disconnect(stream.ErrSystemShutdown)
	}
	return nil
}

func (c *C2S) handleConn(conn net.Conn) {
	tr := transport.NewSocketTransport(conn, c.cf, c.cfg.Transport.KeepAlive)
	cfg := &streamConfig{
		connectTimeout: c.cfg.ConnectTimeout,
		timeout:        c.cfg.Timeout,
		transport:      tr,
		onDisconnect:   c.unregister,
	}
	stm := newInStream(cfg, c.hosts, c.router, c.appBus, c.pool)
	c.register(stm)

	if err := stm.start(); err != nil {
		log.Warnf("failed to start c2s stream: %v", err)
	}
}

func (c *C2S) register(stm stream.C2S) {
	c.mu.Lock()
	c.streams[stm.ID()] = stm
	c.mu.Unlock()
	connectionRegistered.Inc()
	log.Infof("registered c2s stream... (id: %s)", stm.ID())
}

func (c *C2S) unregister(stm stream.C2S) {
	c.mu.Lock()
	delete(c.streams, stm.ID())
	c.mu.Unlock()
	connectionUnregistered.Inc()
	log.Infof("unregistered c2s stream... (id: %s)", stm.ID())
}

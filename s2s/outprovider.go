/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

// OutProvider establishes and caches outgoing s2s streams, one per
// domain pair.
type OutProvider struct {
	cfg            *Config
	hosts          *host.Hosts
	dialer         *dialer
	mu             sync.RWMutex
	outConnections map[string]*outStream
}

// NewOutProvider returns an initialized out stream provider.
func NewOutProvider(config *Config, hosts *host.Hosts, cf transport.CodecFactory) *OutProvider {
	return &OutProvider{
		cfg:            config,
		hosts:          hosts,
		dialer:         newDialer(config, cf),
		outConnections: make(map[string]*outStream),
	}
}

// GetOut returns the outgoing stream serving a domain pair, dialing a
// new one when none exists yet.
func (p *OutProvider) GetOut(ctx context.Context, localDomain, remoteDomain string) (stream.S2SOut, error) {
	domainPair := getDomainPair(localDomain, remoteDomain)
	p.mu.RLock()
	outStm := p.outConnections[domainPair]
	p.mu.RUnlock()

	if outStm != nil {
		return outStm, nil
	}
	p.mu.Lock()
	outStm = p.outConnections[domainPair] // 2nd check
	if outStm != nil {
		p.mu.Unlock()
		return outStm, nil
	}
	outStm = newOutStream(p.hosts)
	p.outConnections[domainPair] = outStm
	p.mu.Unlock()

	cfg, err := p.streamConfig(localDomain, remoteDomain, nil)
	if err != nil {
		p.unregister(domainPair, outStm, false)
		return nil, err
	}
	if err := outStm.start(ctx, cfg); err != nil {
		p.unregister(domainPair, outStm, false)
		return nil, err
	}
	outConnectionRegistered.WithLabelValues(outConnectionType(false)).Inc()
	log.Infof("registered s2s out stream... (domainpair: %s)", domainPair)

	go p.watch(outStm)

	return outStm, nil
}

// verifyKey relays a dialback key to its claimed origin through a
// dialback-only stream, reporting how the verification ended. The
// relaying stream is terminated as soon as the answer arrives.
func (p *OutProvider) verifyKey(ctx context.Context, localDomain, remoteDomain string, dbVerify xmpp.XElement) verifyResult {
	outStm := newOutStream(p.hosts)

	cfg, err := p.streamConfig(localDomain, remoteDomain, dbVerify)
	if err != nil {
		log.Warnf("failed dialing %s for dialback verification: %v", remoteDomain, err)
		return verifyResult{timedOut: true}
	}
	if err := outStm.start(ctx, cfg); err != nil {
		log.Error(err)
		return verifyResult{timedOut: true}
	}
	outConnectionRegistered.WithLabelValues(outConnectionType(true)).Inc()

	select {
	case result := <-outStm.verify():
		return result
	case <-outStm.done():
		return verifyResult{timedOut: true}
	case <-time.After(p.cfg.Timeout):
		outStm.Disconnect(nil)
		return verifyResult{timedOut: true}
	}
}

// Shutdown closes every cached outgoing connection.
func (p *OutProvider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	connections := p.outConnections
	p.outConnections = make(map[string]*outStream)
	p.mu.Unlock()

	for _, conn := range connections {
		conn.Disconnect(nil)
	}
	if len(connections) > 0 {
		log.Infof("closed %d out connection(s)", len(connections))
	}
	return nil
}

func (p *OutProvider) watch(outStm *outStream) {
	if err := <-outStm.done(); err != nil {
		log.Warnf("s2s out stream closed with error: %v (domainpair: %s)", err, outStm.ID())
	}
	p.unregister(outStm.ID(), outStm, outStm.cfg.dbVerify != nil)
}

func (p *OutProvider) unregister(domainPair string, outStm *outStream, dialbackOnly bool) {
	p.mu.Lock()
	if p.outConnections[domainPair] == outStm {
		delete(p.outConnections, domainPair)
	}
	p.mu.Unlock()
	outConnectionUnregistered.WithLabelValues(outConnectionType(dialbackOnly)).Inc()
	log.Infof("unregistered s2s out stream... (domainpair: %s)", domainPair)
}

func (p *OutProvider) streamConfig(localDomain, remoteDomain string, dbVerify xmpp.XElement) (*streamConfig, error) {
	tr, err := p.dialer.dial(remoteDomain)
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		ServerName:   remoteDomain,
		Certificates: p.hosts.Certificates(),
	}
	return &streamConfig{
		keyGen:       &keyGen{secret: p.cfg.DialbackSecret},
		localDomain:  localDomain,
		remoteDomain: remoteDomain,
		timeout:      p.cfg.Timeout,
		tls:          tlsConfig,
		transport:    tr,
		dbVerify:     dbVerify,
	}, nil
}

func getDomainPair(localDomain, remoteDomain string) string {
	return localDomain + ":" + remoteDomain
}

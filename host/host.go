/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package host

import (
	"crypto/tls"
	"sort"
	"sync"

	"github.com/jabberwock-im/jabberwock/util"
)

const defaultDomain = "localhost"

// Hosts type represents all local domains set.
type Hosts struct {
	mu          sync.RWMutex
	defaultHost string
	hosts       map[string]tls.Certificate
}

// New creates and returns an initialized Hosts instance.
// In case no configuration is provided localhost domain with
// a self signed certificate is registered.
func New(configurations []Config) (*Hosts, error) {
	hs := &Hosts{
		hosts: make(map[string]tls.Certificate),
	}
	if len(configurations) > 0 {
		for i, h := range configurations {
			if i == 0 {
				hs.defaultHost = h.Name
			}
			hs.hosts[h.Name] = h.Certificate
		}
		return hs, nil
	}
	cer, err := util.LoadCertificate("", "", defaultDomain)
	if err != nil {
		return nil, err
	}
	hs.defaultHost = defaultDomain
	hs.hosts[defaultDomain] = cer
	return hs, nil
}

// DefaultHostName returns default host name value.
func (hs *Hosts) DefaultHostName() string {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.defaultHost
}

// IsLocalHost tells whether or not h value corresponds to a local host.
func (hs *Hosts) IsLocalHost(h string) bool {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	_, ok := hs.hosts[h]
	return ok
}

// HostNames returns the list of all registered local hosts.
func (hs *Hosts) HostNames() []string {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	var ret []string
	for n := range hs.hosts {
		ret = append(ret, n)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// Certificates returns all registered domain certificates.
func (hs *Hosts) Certificates() []tls.Certificate {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	var certs []tls.Certificate
	for _, cer := range hs.hosts {
		certs = append(certs, cer)
	}
	return certs
}

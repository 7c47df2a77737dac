/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/storage/repository"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
)

// OutProvider provides a specific s2s outgoing stream for every single
// pair of (localdomain, remotedomain) values.
type OutProvider interface {
	GetOut(ctx context.Context, localDomain, remoteDomain string) (stream.S2SOut, error)
}

// ComponentProvider resolves the stream associated to a dynamic
// server item domain.
type ComponentProvider interface {
	StreamForDomain(domain string) stream.InOutStream
}

// Router represents an XMPP stanza router.
type Router struct {
	hosts   *host.Hosts
	userRep repository.User

	mu               sync.RWMutex
	outProvider      OutProvider
	compProvider     ComponentProvider
	streams          map[string][]stream.C2S
	localStreams     map[string]stream.C2S
	serverItems      map[string]struct{}
	restricted       []string
	bindingResources map[string]struct{}
}

// New returns a new router instance serving a set of local hosts.
func New(hosts *host.Hosts, userRep repository.User, config *Config) *Router {
	return &Router{
		hosts:            hosts,
		userRep:          userRep,
		streams:          make(map[string][]stream.C2S),
		localStreams:     make(map[string]stream.C2S),
		serverItems:      make(map[string]struct{}),
		restricted:       config.RestrictedPrefixes,
		bindingResources: make(map[string]struct{}),
	}
}

// Hosts returns the local hosts container.
func (r *Router) Hosts() *host.Hosts {
	return r.hosts
}

// DefaultLocalDomain returns the default serviced domain.
func (r *Router) DefaultLocalDomain() string {
	return r.hosts.DefaultHostName()
}

// IsLocalDomain tells whether a domain is serviced by this engine,
// either as a configured host or as a dynamic server item.
func (r *Router) IsLocalDomain(domain string) bool {
	if r.hosts.IsLocalHost(domain) {
		return true
	}
	return r.IsServerItem(domain)
}

// RegisterServerItem adds a dynamic serviced domain, commonly
// associated to an authenticated external component.
func (r *Router) RegisterServerItem(domain string) {
	r.mu.Lock()
	r.serverItems[domain] = struct{}{}
	r.mu.Unlock()

	log.Infof("registered server item... (domain: %s)", domain)
}

// UnregisterServerItem removes a previously registered dynamic domain.
func (r *Router) UnregisterServerItem(domain string) {
	r.mu.Lock()
	delete(r.serverItems, domain)
	r.mu.Unlock()

	log.Infof("unregistered server item... (domain: %s)", domain)
}

// IsServerItem tells whether a domain is a registered dynamic domain.
func (r *Router) IsServerItem(domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.serverItems[domain]
	return ok
}

// ServerItems returns all registered dynamic domains.
func (r *Router) ServerItems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ret []string
	for it := range r.serverItems {
		ret = append(ret, it)
	}
	sort.Strings(ret)
	return ret
}

// IsRestrictedResource tells whether a resource carries any of the
// engine restricted prefixes.
func (r *Router) IsRestrictedResource(resource string) bool {
	for _, prefix := range r.restricted {
		if strings.HasPrefix(resource, prefix) {
			return true
		}
	}
	return false
}

// ReserveResource reserves a username+resource pair for the duration of
// a binding. ErrRestrictedResource is returned for resources carrying a
// restricted prefix, ErrResourceReserved when some other stream is
// already binding the pair.
func (r *Router) ReserveResource(username, resource string) error {
	if r.IsRestrictedResource(resource) {
		return ErrRestrictedResource
	}
	k := username + "/" + resource
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindingResources[k]; ok {
		return ErrResourceReserved
	}
	r.bindingResources[k] = struct{}{}
	return nil
}

// ReleaseResource releases a previously reserved username+resource pair.
func (r *Router) ReleaseResource(username, resource string) {
	k := username + "/" + resource
	r.mu.Lock()
	delete(r.bindingResources, k)
	r.mu.Unlock()
}

// Bind marks a c2s stream as bound.
func (r *Router) Bind(stm stream.C2S) {
	if len(stm.Resource()) == 0 {
		return
	}
	r.mu.Lock()
	r.bind(stm)
	r.localStreams[stm.JID().String()] = stm
	r.mu.Unlock()

	log.Infof("bound c2s stream... (%s/%s)", stm.Username(), stm.Resource())
}

// Unbind unbinds a previously bound c2s stream.
func (r *Router) Unbind(stmJID *jid.JID) {
	if len(stmJID.Resource()) == 0 {
		return
	}
	r.mu.Lock()
	if found := r.unbind(stmJID); !found {
		r.mu.Unlock()
		return
	}
	delete(r.localStreams, stmJID.String())
	r.mu.Unlock()

	log.Infof("unbound c2s stream... (%s/%s)", stmJID.Node(), stmJID.Resource())
}

// UserStreams returns all bound streams associated to a user.
func (r *Router) UserStreams(username string) []stream.C2S {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streams[username]
}

// StreamMatchingJID returns the bound stream matching a full JID.
func (r *Router) StreamMatchingJID(j *jid.JID) stream.C2S {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.localStreams[j.String()]
}

// SetOutProvider sets the s2s out provider used when routing stanzas remotely.
func (r *Router) SetOutProvider(provider OutProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outProvider = provider
}

// SetComponentProvider sets the provider resolving dynamic domain streams.
func (r *Router) SetComponentProvider(provider ComponentProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compProvider = provider
}

// Route routes a stanza applying server rules for handling XML stanzas.
// (https://xmpp.org/rfcs/rfc3921.html#rules)
func (r *Router) Route(ctx context.Context, stanza xmpp.Stanza) error {
	toJID := stanza.ToJID()
	if !r.IsLocalDomain(toJID.Domain()) {
		return r.remoteRoute(ctx, stanza)
	}
	if r.IsServerItem(toJID.Domain()) {
		r.mu.RLock()
		compProvider := r.compProvider
		r.mu.RUnlock()
		if compProvider == nil {
			return ErrFailedRemoteConnect
		}
		comp := compProvider.StreamForDomain(toJID.Domain())
		if comp == nil {
			return ErrFailedRemoteConnect
		}
		comp.SendElement(stanza)
		return nil
	}
	rcps := r.UserStreams(toJID.Node())
	if len(rcps) == 0 {
		exists, err := r.userRep.UserExists(ctx, toJID.Node())
		if err != nil {
			return err
		}
		if exists {
			return ErrNotAuthenticated
		}
		return ErrNotExistingAccount
	}
	if toJID.IsFullWithUser() {
		for _, stm := range rcps {
			if stm.Resource() == toJID.Resource() {
				stm.SendElement(stanza)
				return nil
			}
		}
		return ErrResourceNotFound
	}
	switch stanza.(type) {
	case *xmpp.Message:
		// deliver to the highest priority available stream; a bound
		// resource that never broadcast presence is not a delivery target
		var stm stream.C2S
		var highestPriority int8
		for _, rcp := range rcps {
			p := rcp.Presence()
			if p == nil || !p.IsAvailable() {
				continue
			}
			if stm == nil || p.Priority() > highestPriority {
				stm = rcp
				highestPriority = p.Priority()
			}
		}
		if stm == nil {
			return ErrNotAuthenticated
		}
		stm.SendElement(stanza)

	default:
		// broadcast to all streams
		for _, stm := range rcps {
			stm.SendElement(stanza)
		}
	}
	return nil
}

func (r *Router) bind(stm stream.C2S) {
	if usrStreams := r.streams[stm.Username()]; usrStreams != nil {
		res := stm.Resource()
		for _, usrStream := range usrStreams {
			if usrStream.Resource() == res {
				return // already bound
			}
		}
		r.streams[stm.Username()] = append(usrStreams, stm)
	} else {
		r.streams[stm.Username()] = []stream.C2S{stm}
	}
}

func (r *Router) unbind(jid *jid.JID) bool {
	found := false
	if usrStreams := r.streams[jid.Node()]; usrStreams != nil {
		res := jid.Resource()
		for i := 0; i < len(usrStreams); i++ {
			if res == usrStreams[i].Resource() {
				usrStreams = append(usrStreams[:i], usrStreams[i+1:]...)
				if len(usrStreams) > 0 {
					r.streams[jid.Node()] = usrStreams
				} else {
					delete(r.streams, jid.Node())
				}
				found = true
				break
			}
		}
	}
	return found
}

func (r *Router) remoteRoute(ctx context.Context, elem xmpp.Stanza) error {
	r.mu.RLock()
	outProvider := r.outProvider
	r.mu.RUnlock()

	if outProvider == nil {
		return ErrFailedRemoteConnect
	}
	localDomain := r.DefaultLocalDomain()
	if fromJID := elem.FromJID(); fromJID != nil && r.hosts.IsLocalHost(fromJID.Domain()) {
		localDomain = fromJID.Domain()
	}
	remoteDomain := elem.ToJID().Domain()

	out, err := outProvider.GetOut(ctx, localDomain, remoteDomain)
	if err != nil {
		log.Error(err)
		return ErrFailedRemoteConnect
	}
	out.SendElement(elem)
	return nil
}

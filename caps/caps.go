/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package caps

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/storage/repository"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/pborman/uuid"
)

const discoInfoNamespace = "http://jabber.org/protocol/disco#info"

// pending disco#info requests older than this are forgotten.
const requestTimeout = time.Minute

// stanzaRouter is the slice of router functionality the cache needs
// to request capabilities from remote entities.
type stanzaRouter interface {
	DefaultLocalDomain() string
	Route(ctx context.Context, stanza xmpp.Stanza) error
}

type pendingRequest struct {
	node        string
	ver         string
	requestedAt time.Time
}

// Cache keeps entity capabilities keyed by node+ver, backed by a
// repository and filled on demand through disco#info requests.
type Cache struct {
	router  stanzaRouter
	capsRep repository.Capabilities

	mu      sync.RWMutex
	entries map[string]*model.Capabilities
	pending map[string]pendingRequest
}

// New returns an initialized entity capabilities cache.
func New(router stanzaRouter, capsRep repository.Capabilities) *Cache {
	return &Cache{
		router:  router,
		capsRep: capsRep,
		entries: make(map[string]*model.Capabilities),
		pending: make(map[string]pendingRequest),
	}
}

// RegisterPresence inspects a presence capabilities element, requesting
// the feature set from the presence origin when it's not yet known.
func (c *Cache) RegisterPresence(ctx context.Context, presence *xmpp.Presence) error {
	pc := presence.Capabilities()
	if pc == nil {
		return nil
	}
	k := capabilitiesKey(pc.Node, pc.Ver)

	c.mu.RLock()
	_, cached := c.entries[k]
	c.mu.RUnlock()
	if cached {
		return nil
	}
	caps, err := c.capsRep.FetchCapabilities(ctx, pc.Node, pc.Ver)
	if err != nil {
		return err
	}
	if caps != nil {
		c.mu.Lock()
		c.entries[k] = caps
		c.mu.Unlock()
		return nil
	}
	c.requestCapabilities(ctx, pc.Node, pc.Ver, presence.FromJID())
	return nil
}

// MatchesIQ tells whether an iq is the response to a capabilities
// request previously originated by the cache.
func (c *Cache) MatchesIQ(iq *xmpp.IQ) bool {
	if !iq.IsResult() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pending[iq.ID()]
	return ok
}

// ProcessIQ handles a disco#info result, storing the announced features.
func (c *Cache) ProcessIQ(ctx context.Context, iq *xmpp.IQ) {
	c.mu.Lock()
	_, ok := c.pending[iq.ID()]
	delete(c.pending, iq.ID())
	c.mu.Unlock()
	if !ok {
		return
	}
	query := iq.Elements().ChildNamespace("query", discoInfoNamespace)
	if query == nil {
		return
	}
	if err := c.storeCapabilities(ctx, query); err != nil {
		log.Warnf("%v", err)
	}
}

// Fetch returns cached capabilities associated to a node and ver,
// or nil if not known.
func (c *Cache) Fetch(ctx context.Context, node, ver string) (*model.Capabilities, error) {
	k := capabilitiesKey(node, ver)

	c.mu.RLock()
	caps := c.entries[k]
	c.mu.RUnlock()
	if caps != nil {
		return caps, nil
	}
	caps, err := c.capsRep.FetchCapabilities(ctx, node, ver)
	if err != nil {
		return nil, err
	}
	if caps != nil {
		c.mu.Lock()
		c.entries[k] = caps
		c.mu.Unlock()
	}
	return caps, nil
}

func (c *Cache) requestCapabilities(ctx context.Context, node, ver string, userJID *jid.JID) {
	c.mu.Lock()
	now := time.Now()
	for id, req := range c.pending {
		if now.Sub(req.requestedAt) > requestTimeout {
			delete(c.pending, id)
		}
	}
	for _, req := range c.pending {
		if req.node == node && req.ver == ver {
			c.mu.Unlock()
			return
		}
	}
	iqID := uuid.New()
	c.pending[iqID] = pendingRequest{node: node, ver: ver, requestedAt: now}
	c.mu.Unlock()

	srvJID, _ := jid.NewWithString(c.router.DefaultLocalDomain(), true)

	iq := xmpp.NewIQType(iqID, xmpp.GetType)
	iq.SetFromJID(srvJID)
	iq.SetToJID(userJID)

	query := xmpp.NewElementNamespace("query", discoInfoNamespace)
	query.SetAttribute("node", node+"#"+ver)
	iq.AppendElement(query)

	log.Infof("requesting capabilities... node: %s, ver: %s", node, ver)

	_ = c.router.Route(ctx, iq)
}

func (c *Cache) storeCapabilities(ctx context.Context, query xmpp.XElement) error {
	nodeStr := query.Attributes().Get("node")
	ss := strings.Split(nodeStr, "#")
	if len(ss) != 2 {
		return fmt.Errorf("caps: wrong node format: %s", nodeStr)
	}
	var features []string
	for _, featureElem := range query.Elements().Children("feature") {
		features = append(features, featureElem.Attributes().Get("var"))
	}
	caps := &model.Capabilities{
		Node:     ss[0],
		Ver:      ss[1],
		Features: features,
	}
	if err := c.capsRep.UpsertCapabilities(ctx, caps); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[capabilitiesKey(caps.Node, caps.Ver)] = caps
	c.mu.Unlock()

	log.Infof("stored capabilities... node: %s, ver: %s", caps.Node, caps.Ver)
	return nil
}

func capabilitiesKey(node, ver string) string {
	return node + "#" + ver
}

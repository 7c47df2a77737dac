/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"
	"strconv"
	"time"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/caps"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/storage/repository"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

// PresenceRouter applies server rules to presence stanzas.
type PresenceRouter struct {
	router     *Router
	appBus     bus.Bus
	userRep    repository.User
	offlineRep repository.Offline
	capsCache  *caps.Cache
}

// NewPresenceRouter returns an initialized presence router.
func NewPresenceRouter(router *Router, appBus bus.Bus, userRep repository.User, offlineRep repository.Offline, capsCache *caps.Cache) *PresenceRouter {
	return &PresenceRouter{
		router:     router,
		appBus:     appBus,
		userRep:    userRep,
		offlineRep: offlineRep,
		capsCache:  capsCache,
	}
}

// ProcessPresence routes a presence stanza, keeping availability
// bookkeeping for local origins.
func (p *PresenceRouter) ProcessPresence(ctx context.Context, presence *xmpp.Presence) {
	switch presence.Type() {
	case xmpp.AvailableType:
		p.processAvailable(ctx, presence)
	case xmpp.UnavailableType:
		p.processUnavailable(ctx, presence)
	case xmpp.SubscribeType, xmpp.SubscribedType, xmpp.UnsubscribeType, xmpp.UnsubscribedType, xmpp.ProbeType, xmpp.ErrorType:
		p.processSubscription(ctx, presence)
	default:
		p.routeIfNeeded(ctx, presence)
	}
}

func (p *PresenceRouter) processAvailable(ctx context.Context, presence *xmpp.Presence) {
	fromJID := presence.FromJID()
	if !p.router.Hosts().IsLocalHost(fromJID.Domain()) {
		p.routeIfNeeded(ctx, presence)
		return
	}
	if p.capsCache != nil {
		if err := p.capsCache.RegisterPresence(ctx, presence); err != nil {
			log.Warnf("%v", err)
		}
	}
	if err := p.updateLastPresence(ctx, presence); err != nil {
		log.Error(err)
	}
	p.notifyAvailability(ctx, presence, "online")

	if presence.Priority() >= 0 {
		p.flushOfflineMessages(ctx, presence)
	}
	p.routeIfNeeded(ctx, presence)
}

func (p *PresenceRouter) processUnavailable(ctx context.Context, presence *xmpp.Presence) {
	fromJID := presence.FromJID()
	if !p.router.Hosts().IsLocalHost(fromJID.Domain()) {
		p.routeIfNeeded(ctx, presence)
		return
	}
	if err := p.updateLastPresence(ctx, presence); err != nil {
		log.Error(err)
	}
	p.notifyAvailability(ctx, presence, "offline")
	p.routeIfNeeded(ctx, presence)
}

func (p *PresenceRouter) processSubscription(ctx context.Context, presence *xmpp.Presence) {
	msg := bus.NewMessage(bus.PresenceSubscription).
		SetParam("from", presence.FromJID().ToBareJID().String()).
		SetParam("to", presence.ToJID().ToBareJID().String()).
		SetParam("type", presence.Type())
	if err := msg.SetStanza(presence); err != nil {
		log.Error(err)
		return
	}
	resp, err := p.appBus.Request(ctx, msg)
	if err != nil {
		log.Error(err)
		return
	}
	if resp.Handled {
		reply, err := resp.ReplyElement()
		if err != nil {
			log.Error(err)
			return
		}
		if reply != nil {
			if stanza, sErr := xmpp.NewStanzaFromElement(reply); sErr == nil {
				_ = p.router.Route(ctx, stanza)
			}
		}
		return
	}
	p.routeIfNeeded(ctx, presence)
}

func (p *PresenceRouter) updateLastPresence(ctx context.Context, presence *xmpp.Presence) error {
	username := presence.FromJID().Node()
	if len(username) == 0 {
		return nil
	}
	usr, err := p.userRep.FetchUser(ctx, username)
	if err != nil {
		return err
	}
	if usr == nil {
		return nil
	}
	usr.LastPresence = presence
	usr.LastPresenceAt = time.Now()
	return p.userRep.UpsertUser(ctx, usr)
}

func (p *PresenceRouter) notifyAvailability(ctx context.Context, presence *xmpp.Presence, availability string) {
	fromJID := presence.FromJID()
	msg := bus.NewMessage(bus.PresenceNotify).
		SetParam("username", fromJID.Node()).
		SetParam("resource", fromJID.Resource()).
		SetParam("availability", availability).
		SetParam("priority", strconv.Itoa(int(presence.Priority())))
	if err := msg.SetStanza(presence); err != nil {
		log.Error(err)
		return
	}
	if err := p.appBus.Post(ctx, msg); err != nil {
		log.Error(err)
	}
}

func (p *PresenceRouter) flushOfflineMessages(ctx context.Context, presence *xmpp.Presence) {
	fromJID := presence.FromJID()
	if !fromJID.IsFullWithUser() {
		return
	}
	username := fromJID.Node()

	messages, err := p.offlineRep.FetchOfflineMessages(ctx, username)
	if err != nil {
		log.Error(err)
		return
	}
	if len(messages) == 0 {
		return
	}
	log.Infof("delivering offline messages... (username: %s, count: %d)", username, len(messages))

	for i := range messages {
		m, err := xmpp.NewMessageFromElement(&messages[i], messages[i].FromJID(), fromJID)
		if err != nil {
			log.Error(err)
			continue
		}
		if err := p.router.Route(ctx, m); err != nil {
			log.Error(err)
		}
	}
	if err := p.offlineRep.DeleteOfflineMessages(ctx, username); err != nil {
		log.Error(err)
	}
}

func (p *PresenceRouter) routeIfNeeded(ctx context.Context, presence *xmpp.Presence) {
	toJID := presence.ToJID()
	if toJID == nil || toJID.IsServer() && p.router.Hosts().IsLocalHost(toJID.Domain()) {
		return // server-addressed bookkeeping only
	}
	if err := p.router.Route(ctx, presence); err != nil {
		switch err {
		case ErrNotAuthenticated, ErrNotExistingAccount, ErrResourceNotFound:
			return // presence to unavailable peers vanishes
		default:
			log.Error(err)
		}
	}
}

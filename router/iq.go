/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/caps"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/model/rostermodel"
	"github.com/jabberwock-im/jabberwock/storage/repository"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/version"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/pborman/uuid"
)

const (
	discoInfoNamespace  = "http://jabber.org/protocol/disco#info"
	discoItemsNamespace = "http://jabber.org/protocol/disco#items"
	versionNamespace    = "jabber:iq:version"
	rosterNamespace     = "jabber:iq:roster"
	vCardNamespace      = "vcard-temp"
	privateNamespace    = "jabber:iq:private"
	pingNamespace       = "urn:xmpp:ping"
	registerNamespace   = "jabber:iq:register"
	sessionNamespace    = "urn:ietf:params:xml:ns:xmpp-session"
)

var serverFeatures = []string{
	discoInfoNamespace,
	discoItemsNamespace,
	versionNamespace,
	rosterNamespace,
	vCardNamespace,
	privateNamespace,
	pingNamespace,
	registerNamespace,
}

// IQRouter applies server rules to iq stanzas popped from the
// pending pool.
type IQRouter struct {
	router    *Router
	appBus    bus.Bus
	reps      repository.Container
	capsCache *caps.Cache
}

// NewIQRouter returns an initialized iq router.
func NewIQRouter(router *Router, appBus bus.Bus, reps repository.Container, capsCache *caps.Cache) *IQRouter {
	return &IQRouter{
		router:    router,
		appBus:    appBus,
		reps:      reps,
		capsCache: capsCache,
	}
}

// ProcessIQ routes an iq stanza, answering inline those addressed to
// the server itself.
func (i *IQRouter) ProcessIQ(ctx context.Context, iq *xmpp.IQ) {
	if i.capsCache != nil && i.capsCache.MatchesIQ(iq) {
		i.capsCache.ProcessIQ(ctx, iq)
		return
	}
	toJID := iq.ToJID()
	switch {
	case toJID.IsServer() && i.router.Hosts().IsLocalHost(toJID.Domain()):
		i.processServerIQ(ctx, iq)

	case i.router.IsServerItem(toJID.Domain()):
		if err := i.router.Route(ctx, iq); err != nil {
			i.replyError(ctx, iq, iq.ServiceUnavailableError())
		}

	case toJID.IsBare() && i.router.Hosts().IsLocalHost(toJID.Domain()):
		i.processBareAccountIQ(ctx, iq)

	default:
		i.routeOrReply(ctx, iq)
	}
}

func (i *IQRouter) routeOrReply(ctx context.Context, iq *xmpp.IQ) {
	switch err := i.router.Route(ctx, iq); err {
	case nil:
		return
	case ErrNotAuthenticated, ErrResourceNotFound:
		i.replyError(ctx, iq, iq.ServiceUnavailableError())
	case ErrNotExistingAccount:
		i.replyError(ctx, iq, iq.ItemNotFoundError())
	case ErrFailedRemoteConnect:
		i.replyError(ctx, iq, iq.RemoteServerNotFoundError())
	default:
		log.Error(err)
		i.replyError(ctx, iq, iq.InternalServerError())
	}
}

func (i *IQRouter) processServerIQ(ctx context.Context, iq *xmpp.IQ) {
	if q := iq.Elements().ChildNamespace("query", discoInfoNamespace); q != nil && iq.IsGet() {
		i.sendDiscoInfo(ctx, iq)
		return
	}
	if q := iq.Elements().ChildNamespace("query", discoItemsNamespace); q != nil && iq.IsGet() {
		i.sendDiscoItems(ctx, iq)
		return
	}
	if q := iq.Elements().ChildNamespace("query", versionNamespace); q != nil && iq.IsGet() {
		i.sendSoftwareVersion(ctx, iq)
		return
	}
	if iq.Elements().ChildNamespace("ping", pingNamespace) != nil && iq.IsGet() {
		i.send(ctx, iq.ResultIQ())
		return
	}
	if iq.Elements().ChildNamespace("session", sessionNamespace) != nil && iq.IsSet() {
		i.send(ctx, iq.ResultIQ())
		return
	}
	if q := iq.Elements().ChildNamespace("query", rosterNamespace); q != nil {
		i.processRoster(ctx, iq, q)
		return
	}
	if v := iq.Elements().ChildNamespace("vCard", vCardNamespace); v != nil {
		i.processVCard(ctx, iq, v, iq.FromJID().Node())
		return
	}
	if q := iq.Elements().ChildNamespace("query", privateNamespace); q != nil {
		i.processPrivate(ctx, iq, q)
		return
	}
	if q := iq.Elements().ChildNamespace("query", registerNamespace); q != nil {
		i.processRegister(ctx, iq, q)
		return
	}
	i.forwardToBus(ctx, iq)
}

func (i *IQRouter) processBareAccountIQ(ctx context.Context, iq *xmpp.IQ) {
	// a server answers certain queries on behalf of its bare accounts
	if v := iq.Elements().ChildNamespace("vCard", vCardNamespace); v != nil && iq.IsGet() {
		i.processVCard(ctx, iq, v, iq.ToJID().Node())
		return
	}
	i.routeOrReply(ctx, iq)
}

func (i *IQRouter) sendDiscoInfo(ctx context.Context, iq *xmpp.IQ) {
	result := iq.ResultIQ()
	query := xmpp.NewElementNamespace("query", discoInfoNamespace)

	identity := xmpp.NewElementName("identity")
	identity.SetAttribute("category", "server")
	identity.SetAttribute("type", "im")
	identity.SetAttribute("name", "jabberwock")
	query.AppendElement(identity)

	for _, feature := range serverFeatures {
		f := xmpp.NewElementName("feature")
		f.SetAttribute("var", feature)
		query.AppendElement(f)
	}
	result.AppendElement(query)
	i.send(ctx, result)
}

func (i *IQRouter) sendDiscoItems(ctx context.Context, iq *xmpp.IQ) {
	result := iq.ResultIQ()
	query := xmpp.NewElementNamespace("query", discoItemsNamespace)
	for _, domain := range i.router.ServerItems() {
		item := xmpp.NewElementName("item")
		item.SetAttribute("jid", domain)
		query.AppendElement(item)
	}
	result.AppendElement(query)
	i.send(ctx, result)
}

func (i *IQRouter) sendSoftwareVersion(ctx context.Context, iq *xmpp.IQ) {
	result := iq.ResultIQ()
	query := xmpp.NewElementNamespace("query", versionNamespace)
	query.AppendElement(xmpp.NewElementName("name").SetText("jabberwock"))
	query.AppendElement(xmpp.NewElementName("version").SetText(version.ApplicationVersion.String()))
	query.AppendElement(xmpp.NewElementName("os").SetText(fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)))
	result.AppendElement(query)
	i.send(ctx, result)
}

func (i *IQRouter) processRoster(ctx context.Context, iq *xmpp.IQ, query xmpp.XElement) {
	username := iq.FromJID().Node()
	switch {
	case iq.IsGet():
		items, ver, err := i.reps.Roster().FetchRosterItems(ctx, username)
		if err != nil {
			log.Error(err)
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		result := iq.ResultIQ()
		q := xmpp.NewElementNamespace("query", rosterNamespace)
		q.SetAttribute("ver", ver.String())
		for j := range items {
			q.AppendElement(items[j].Element())
		}
		result.AppendElement(q)
		i.send(ctx, result)

		i.markRosterRequested(iq)

	case iq.IsSet():
		itemElements := query.Elements().Children("item")
		if len(itemElements) != 1 {
			i.replyError(ctx, iq, iq.BadRequestError())
			return
		}
		ri, err := rostermodel.NewItem(itemElements[0])
		if err != nil {
			i.replyError(ctx, iq, iq.BadRequestError())
			return
		}
		ri.Username = username
		if err := i.updateRosterItem(ctx, ri); err != nil {
			log.Error(err)
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		i.send(ctx, iq.ResultIQ())
		i.pushRosterItem(ctx, ri)

	default:
		i.replyError(ctx, iq, iq.BadRequestError())
	}
}

func (i *IQRouter) markRosterRequested(iq *xmpp.IQ) {
	fromJID := iq.FromJID()
	if !fromJID.IsFull() {
		return
	}
	if stm := i.router.StreamMatchingJID(fromJID); stm != nil {
		stm.SetFlags(stm.Flags() | stream.RosterRequested)
	}
}

func (i *IQRouter) updateRosterItem(ctx context.Context, ri *rostermodel.Item) error {
	switch ri.Subscription {
	case rostermodel.SubscriptionRemove:
		_, err := i.reps.Roster().DeleteRosterItem(ctx, ri.Username, ri.JID)
		return err
	default:
		ri.Subscription = existingOrNoneSubscription(ctx, i.reps.Roster(), ri)
		ri.Ask = false
		_, err := i.reps.Roster().UpsertRosterItem(ctx, ri)
		return err
	}
}

// a roster set never changes subscription state directly; state moves
// through presence subscription requests.
func existingOrNoneSubscription(ctx context.Context, rosterRep repository.Roster, ri *rostermodel.Item) string {
	prev, err := rosterRep.FetchRosterItem(ctx, ri.Username, ri.JID)
	if err != nil || prev == nil {
		return rostermodel.SubscriptionNone
	}
	return prev.Subscription
}

func (i *IQRouter) pushRosterItem(ctx context.Context, ri *rostermodel.Item) {
	for _, stm := range i.router.UserStreams(ri.Username) {
		if stm.Flags()&stream.RosterRequested == 0 {
			continue
		}
		pushIQ := xmpp.NewIQType(uuid.New(), xmpp.SetType)
		pushIQ.SetToJID(stm.JID())
		q := xmpp.NewElementNamespace("query", rosterNamespace)
		q.AppendElement(ri.Element())
		pushIQ.AppendElement(q)
		stm.SendElement(pushIQ)
	}
	msg := bus.NewMessage(bus.JabberIQ).
		SetParam("operation", "roster.update").
		SetParam("username", ri.Username).
		SetParam("jid", ri.JID)
	_ = i.appBus.Post(ctx, msg)
}

func (i *IQRouter) processVCard(ctx context.Context, iq *xmpp.IQ, vCard xmpp.XElement, username string) {
	switch {
	case iq.IsGet():
		fetched, err := i.reps.VCard().FetchVCard(ctx, username)
		if err != nil {
			log.Error(err)
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		result := iq.ResultIQ()
		if fetched != nil {
			result.AppendElement(fetched)
		} else {
			result.AppendElement(xmpp.NewElementNamespace("vCard", vCardNamespace))
		}
		i.send(ctx, result)

	case iq.IsSet():
		if err := i.reps.VCard().UpsertVCard(ctx, vCard, iq.FromJID().Node()); err != nil {
			log.Error(err)
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		i.send(ctx, iq.ResultIQ())

	default:
		i.replyError(ctx, iq, iq.BadRequestError())
	}
}

func (i *IQRouter) processPrivate(ctx context.Context, iq *xmpp.IQ, query xmpp.XElement) {
	username := iq.FromJID().Node()
	elements := query.Elements().All()
	if len(elements) == 0 {
		i.replyError(ctx, iq, iq.BadRequestError())
		return
	}
	ns := elements[0].Namespace()
	if len(ns) == 0 || strings.HasPrefix(ns, "jabber:") || strings.HasPrefix(ns, "http://jabber.org") {
		i.replyError(ctx, iq, iq.NotAcceptableError())
		return
	}
	switch {
	case iq.IsGet():
		fetched, err := i.reps.Private().FetchPrivateXML(ctx, ns, username)
		if err != nil {
			log.Error(err)
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		result := iq.ResultIQ()
		q := xmpp.NewElementNamespace("query", privateNamespace)
		if len(fetched) > 0 {
			q.AppendElements(fetched)
		} else {
			q.AppendElement(elements[0])
		}
		result.AppendElement(q)
		i.send(ctx, result)

	case iq.IsSet():
		if err := i.reps.Private().UpsertPrivateXML(ctx, elements, ns, username); err != nil {
			log.Error(err)
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		i.send(ctx, iq.ResultIQ())

	default:
		i.replyError(ctx, iq, iq.BadRequestError())
	}
}

func (i *IQRouter) processRegister(ctx context.Context, iq *xmpp.IQ, query xmpp.XElement) {
	username := iq.FromJID().Node()
	switch {
	case iq.IsGet():
		result := iq.ResultIQ()
		q := xmpp.NewElementNamespace("query", registerNamespace)
		q.AppendElement(xmpp.NewElementName("registered"))
		q.AppendElement(xmpp.NewElementName("username").SetText(username))
		result.AppendElement(q)
		i.send(ctx, result)

	case iq.IsSet():
		if query.Elements().Child("remove") != nil {
			i.cancelRegistration(ctx, iq, username)
			return
		}
		password := query.Elements().Child("password")
		if password == nil {
			i.replyError(ctx, iq, iq.BadRequestError())
			return
		}
		usr, err := i.reps.User().FetchUser(ctx, username)
		if err != nil || usr == nil {
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		usr.Password = password.Text()
		if err := i.reps.User().UpsertUser(ctx, usr); err != nil {
			log.Error(err)
			i.replyError(ctx, iq, iq.InternalServerError())
			return
		}
		i.send(ctx, iq.ResultIQ())

		msg := bus.NewMessage(bus.UserRegister).
			SetParam("username", username).
			SetParam("operation", "update")
		_ = i.appBus.Post(ctx, msg)

	default:
		i.replyError(ctx, iq, iq.BadRequestError())
	}
}

func (i *IQRouter) cancelRegistration(ctx context.Context, iq *xmpp.IQ, username string) {
	if err := i.reps.User().DeleteUser(ctx, username); err != nil {
		log.Error(err)
		i.replyError(ctx, iq, iq.InternalServerError())
		return
	}
	i.send(ctx, iq.ResultIQ())

	msg := bus.NewMessage(bus.UserRegister).
		SetParam("username", username).
		SetParam("operation", "remove")
	_ = i.appBus.Post(ctx, msg)

	// drop every stream bound to the removed account
	for _, stm := range i.router.UserStreams(username) {
		stm.Disconnect(stream.ErrNotAuthorized)
	}
}

func (i *IQRouter) forwardToBus(ctx context.Context, iq *xmpp.IQ) {
	msg := bus.NewMessage(bus.JabberIQ).
		SetParam("from", iq.From()).
		SetParam("to", iq.To()).
		SetParam("type", iq.Type()).
		SetParam("id", iq.ID())
	if err := msg.SetStanza(iq); err != nil {
		log.Error(err)
		i.replyError(ctx, iq, iq.InternalServerError())
		return
	}
	resp, err := i.appBus.Request(ctx, msg)
	if err != nil {
		log.Error(err)
		i.replyError(ctx, iq, iq.InternalServerError())
		return
	}
	if resp.Handled {
		reply, err := resp.ReplyElement()
		if err != nil {
			log.Error(err)
			return
		}
		if reply != nil {
			i.sendReplyElement(ctx, iq, reply)
		}
		return
	}
	// only get and set stanzas demand a synthesized answer
	if iq.IsGet() || iq.IsSet() {
		i.replyError(ctx, iq, iq.ServiceUnavailableError())
	}
}

func (i *IQRouter) sendReplyElement(ctx context.Context, iq *xmpp.IQ, reply *xmpp.Element) {
	stanza, err := xmpp.NewStanzaFromElement(reply)
	if err != nil {
		// reply lacks addressing; bounce it to the iq originator
		raw := xmpp.NewElementFromElement(reply)
		raw.SetFrom(iq.To())
		raw.SetTo(iq.From())
		stanza, err = xmpp.NewStanzaFromElement(raw)
		if err != nil {
			log.Error(err)
			return
		}
	}
	i.send(ctx, stanza)
}

func (i *IQRouter) send(ctx context.Context, stanza xmpp.Stanza) {
	if err := i.router.Route(ctx, stanza); err != nil {
		log.Error(err)
	}
}

func (i *IQRouter) replyError(ctx context.Context, iq *xmpp.IQ, errStanza xmpp.Stanza) {
	if !iq.IsGet() && !iq.IsSet() {
		return
	}
	i.send(ctx, errStanza)
}

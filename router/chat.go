/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/storage/repository"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

// offline queues grown beyond this length reject further messages.
const defaultOfflineQueueSize = 2048

// ChatRouter applies server rules to message stanzas popped from the
// pending pool.
type ChatRouter struct {
	router     *Router
	appBus     bus.Bus
	offlineRep repository.Offline
	gateway    Gateway
	queueSize  int
}

// NewChatRouter returns an initialized chat router.
func NewChatRouter(router *Router, appBus bus.Bus, offlineRep repository.Offline, gateway Gateway) *ChatRouter {
	return &ChatRouter{
		router:     router,
		appBus:     appBus,
		offlineRep: offlineRep,
		gateway:    gateway,
		queueSize:  defaultOfflineQueueSize,
	}
}

// ProcessMessage routes a message stanza, falling back to offline
// storage when the local target has no eligible resource.
func (c *ChatRouter) ProcessMessage(ctx context.Context, message *xmpp.Message) {
	toJID := message.ToJID()

	if message.IsGroupChat() && !toJID.IsFull() {
		// a room occupant address always carries a resource
		c.reply(ctx, message, message.ServiceUnavailableError())
		return
	}
	err := c.router.Route(ctx, message)
	switch err {
	case nil:
		c.notifyRouted(ctx, message)
		return
	case ErrResourceNotFound:
		if message.Type() == xmpp.ErrorType {
			return // error reports for a gone resource are discarded
		}
		if message.IsGroupChat() {
			// the occupant left: there is no bare address to fall back to
			c.reply(ctx, message, message.ServiceUnavailableError())
			return
		}
		// directed message missed its resource: retry against the bare address
		redirect, lErr := xmpp.NewMessageFromElement(message, message.FromJID(), toJID.ToBareJID())
		if lErr != nil {
			log.Error(lErr)
			return
		}
		if rErr := c.router.Route(ctx, redirect); rErr == nil {
			c.notifyRouted(ctx, redirect)
			return
		}
		c.archiveMessage(ctx, message)

	case ErrNotAuthenticated:
		if !toJID.IsFull() {
			c.archiveMessage(ctx, message)
			return
		}
		c.reply(ctx, message, message.ServiceUnavailableError())

	case ErrNotExistingAccount:
		c.reply(ctx, message, message.ItemNotFoundError())

	case ErrFailedRemoteConnect:
		c.reply(ctx, message, message.RemoteServerNotFoundError())

	default:
		log.Error(err)
		c.reply(ctx, message, message.InternalServerError())
	}
}

// notifyRouted tells the application layer a message reached a local
// recipient stream.
func (c *ChatRouter) notifyRouted(ctx context.Context, message *xmpp.Message) {
	msg := bus.NewMessage(bus.MsgRoute).
		SetParam("from", message.FromJID().String()).
		SetParam("to", message.ToJID().String())
	if err := msg.SetStanza(message); err != nil {
		log.Error(err)
		return
	}
	_ = c.appBus.Post(ctx, msg)
}

func (c *ChatRouter) archiveMessage(ctx context.Context, message *xmpp.Message) {
	if !message.IsMessageWithBody() {
		return
	}
	username := message.ToJID().Node()

	msg := bus.NewMessage(bus.MsgOffline).
		SetParam("username", username)
	if err := msg.SetStanza(message); err != nil {
		log.Error(err)
		return
	}
	resp, err := c.appBus.Request(ctx, msg)
	if err != nil {
		log.Error(err)
	} else if resp.Handled {
		return // application layer took ownership
	}
	if c.gateway != nil {
		if err := c.gateway.Route(message); err != nil {
			log.Warnf("gateway delivery failed: %v", err)
		}
	}
	queueSize, err := c.offlineRep.CountOfflineMessages(ctx, username)
	if err != nil {
		log.Error(err)
		c.reply(ctx, message, message.InternalServerError())
		return
	}
	if queueSize >= c.queueSize {
		c.reply(ctx, message, message.ServiceUnavailableError())
		return
	}
	if err := c.offlineRep.InsertOfflineMessage(ctx, message, username); err != nil {
		log.Error(err)
		c.reply(ctx, message, message.InternalServerError())
		return
	}
	log.Infof("archived offline message... (username: %s)", username)
}

// errors are never auto-replied to, avoiding reply loops.
func (c *ChatRouter) reply(ctx context.Context, original *xmpp.Message, errStanza xmpp.Stanza) {
	if original.Type() == xmpp.ErrorType {
		return
	}
	if err := c.router.Route(ctx, errStanza); err != nil {
		log.Error(err)
	}
}

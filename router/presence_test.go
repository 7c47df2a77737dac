/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"
	"strconv"
	"testing"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/bus/inproc"
	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/storage/memstorage"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestPresenceRouter_AvailableBookkeeping(t *testing.T) {
	notifyCh := make(chan *bus.Message, 1)
	appBus := inproc.New()
	appBus.RegisterHandler(bus.PresenceNotify, func(_ context.Context, msg *bus.Message) (*bus.Response, error) {
		notifyCh <- msg
		return &bus.Response{Handled: true}, nil
	})
	p, s, stm := newTestPresenceRouter(t, appBus)

	p.ProcessPresence(context.Background(), availablePresence(t, stm.JID(), 5))

	msg := <-notifyCh
	require.Equal(t, "online", msg.Param("availability"))
	require.Equal(t, "alice", msg.Param("username"))
	require.Equal(t, "balcony", msg.Param("resource"))
	require.Equal(t, "5", msg.Param("priority"))

	usr, err := s.User().FetchUser(context.Background(), "alice")
	require.Nil(t, err)
	require.NotNil(t, usr.LastPresence)
	require.Equal(t, xmpp.AvailableType, usr.LastPresence.Type())
	require.False(t, usr.LastPresenceAt.IsZero())
}

func TestPresenceRouter_UnavailableBookkeeping(t *testing.T) {
	notifyCh := make(chan *bus.Message, 1)
	appBus := inproc.New()
	appBus.RegisterHandler(bus.PresenceNotify, func(_ context.Context, msg *bus.Message) (*bus.Response, error) {
		notifyCh <- msg
		return &bus.Response{Handled: true}, nil
	})
	p, _, stm := newTestPresenceRouter(t, appBus)

	pr, err := xmpp.NewPresenceFromElement(xmpp.NewElementName("presence").SetType(xmpp.UnavailableType), stm.JID(), serverJID(t))
	require.Nil(t, err)
	p.ProcessPresence(context.Background(), pr)

	msg := <-notifyCh
	require.Equal(t, "offline", msg.Param("availability"))
}

func TestPresenceRouter_OfflineFlush(t *testing.T) {
	p, s, stm := newTestPresenceRouter(t, inproc.New())

	peer, _ := jid.NewWithString("bob@jabberwock.im/garden", true)
	require.Nil(t, s.Offline().InsertOfflineMessage(context.Background(), testMessage(t, peer, stm.JID().ToBareJID()), "alice"))

	p.ProcessPresence(context.Background(), availablePresence(t, stm.JID(), 0))

	elem := stm.ReceiveElement()
	require.Equal(t, "message", elem.Name())
	require.Equal(t, stm.JID().String(), elem.To())

	cnt, err := s.Offline().CountOfflineMessages(context.Background(), "alice")
	require.Nil(t, err)
	require.Equal(t, 0, cnt)
}

func TestPresenceRouter_NegativePriorityKeepsQueue(t *testing.T) {
	p, s, stm := newTestPresenceRouter(t, inproc.New())

	peer, _ := jid.NewWithString("bob@jabberwock.im/garden", true)
	require.Nil(t, s.Offline().InsertOfflineMessage(context.Background(), testMessage(t, peer, stm.JID().ToBareJID()), "alice"))

	p.ProcessPresence(context.Background(), availablePresence(t, stm.JID(), -1))

	cnt, err := s.Offline().CountOfflineMessages(context.Background(), "alice")
	require.Nil(t, err)
	require.Equal(t, 1, cnt)
}

func TestPresenceRouter_SubscriptionThroughBus(t *testing.T) {
	subCh := make(chan *bus.Message, 1)
	appBus := inproc.New()
	appBus.RegisterHandler(bus.PresenceSubscription, func(_ context.Context, msg *bus.Message) (*bus.Response, error) {
		subCh <- msg

		// approve right away
		approved := xmpp.NewElementName("presence")
		approved.SetType(xmpp.SubscribedType)
		approved.SetFrom(msg.Param("to"))
		approved.SetTo(msg.Param("from"))

		resp := &bus.Response{Handled: true}
		if err := resp.SetElement(approved); err != nil {
			return nil, err
		}
		return resp, nil
	})
	p, _, stm := newTestPresenceRouter(t, appBus)

	to, _ := jid.NewWithString("bob@jabberwock.im", true)
	pr, err := xmpp.NewPresenceFromElement(xmpp.NewElementName("presence").SetType(xmpp.SubscribeType), stm.JID(), to)
	require.Nil(t, err)
	p.ProcessPresence(context.Background(), pr)

	msg := <-subCh
	require.Equal(t, xmpp.SubscribeType, msg.Param("type"))
	require.Equal(t, "alice@jabberwock.im", msg.Param("from"))
	require.Equal(t, "bob@jabberwock.im", msg.Param("to"))

	elem := stm.ReceiveElement()
	require.Equal(t, xmpp.SubscribedType, elem.Type())
}

func TestPresenceRouter_SubscriptionUnhandled(t *testing.T) {
	p, s, stm := newTestPresenceRouter(t, inproc.New())

	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "bob"}))
	bobJID, _ := jid.NewWithString("bob@jabberwock.im/garden", true)
	bobStm := stream.NewMockC2S("s2", bobJID)
	bobStm.SetPresence(availablePresence(t, bobJID, 0))
	p.router.Bind(bobStm)

	to, _ := jid.NewWithString("bob@jabberwock.im", true)
	pr, err := xmpp.NewPresenceFromElement(xmpp.NewElementName("presence").SetType(xmpp.SubscribeType), stm.JID(), to)
	require.Nil(t, err)
	p.ProcessPresence(context.Background(), pr)

	elem := bobStm.ReceiveElement()
	require.Equal(t, xmpp.SubscribeType, elem.Type())
}

func newTestPresenceRouter(t *testing.T, appBus bus.Bus) (*PresenceRouter, *memstorage.Storage, *stream.MockC2S) {
	t.Helper()
	r, s := newTestRouter(t)

	j, _ := jid.NewWithString("alice@jabberwock.im/balcony", true)
	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "alice"}))
	stm := stream.NewMockC2S("s1", j)
	stm.SetPresence(availablePresence(t, j, 0))
	r.Bind(stm)

	return NewPresenceRouter(r, appBus, s.User(), s.Offline(), nil), s, stm
}

func availablePresence(t *testing.T, from *jid.JID, priority int) *xmpp.Presence {
	t.Helper()
	el := xmpp.NewElementName("presence")
	if priority != 0 {
		el.AppendElement(xmpp.NewElementName("priority").SetText(strconv.Itoa(priority)))
	}
	p, err := xmpp.NewPresenceFromElement(el, from, serverJID(t))
	require.Nil(t, err)
	return p
}

func serverJID(t *testing.T) *jid.JID {
	t.Helper()
	j, err := jid.NewWithString("jabberwock.im", true)
	require.Nil(t, err)
	return j
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

import (
	"context"
	"testing"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/bus/inproc"
	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestChatRouter_Deliver(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	j2, _ := jid.NewWithString("alice@jabberwock.im/balcony", true)

	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "alice"}))
	stm := stream.NewMockC2S("s1", j2)
	r.Bind(stm)

	c.ProcessMessage(context.Background(), testMessage(t, j1, j2))
	require.Equal(t, "message", stm.ReceiveElement().Name())
}

func TestChatRouter_RedirectToBare(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	j2, _ := jid.NewWithString("alice@jabberwock.im/balcony", true)
	j3, _ := jid.NewWithString("alice@jabberwock.im/rabbit-hole", true)

	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "alice"}))
	stm := stream.NewMockC2S("s1", j2)
	stm.SetPresence(testPresence(t, j2, 0))
	r.Bind(stm)

	// directed miss falls back to the bare address
	c.ProcessMessage(context.Background(), testMessage(t, j1, j3))
	require.Equal(t, "message", stm.ReceiveElement().Name())
}

func TestChatRouter_DirectedMissErrorDiscarded(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	j2, _ := jid.NewWithString("alice@jabberwock.im/balcony", true)
	j3, _ := jid.NewWithString("alice@jabberwock.im/rabbit-hole", true)

	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "alice"}))
	stm := stream.NewMockC2S("s1", j2)
	stm.SetPresence(testPresence(t, j2, 0))
	r.Bind(stm)

	el := xmpp.NewElementName("message")
	el.SetID("m1")
	el.SetType(xmpp.ErrorType)
	el.AppendElement(xmpp.NewElementName("body").SetText("frumious"))
	m, err := xmpp.NewMessageFromElement(el, j1, j3)
	require.Nil(t, err)

	// an error report for a gone resource must not redirect to the
	// surviving stream nor reach the offline queue
	c.ProcessMessage(context.Background(), m)

	sentinel := testMessage(t, j1, j2)
	c.ProcessMessage(context.Background(), sentinel)
	require.NotEqual(t, xmpp.ErrorType, stm.ReceiveElement().Type())

	count, cErr := s.Offline().CountOfflineMessages(context.Background(), "alice")
	require.Nil(t, cErr)
	require.Equal(t, 0, count)
}

func TestChatRouter_GroupChatDirectedMiss(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	j2, _ := jid.NewWithString("alice@jabberwock.im/balcony", true)
	j3, _ := jid.NewWithString("alice@jabberwock.im/rabbit-hole", true)

	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "alice"}))
	aliceStm := stream.NewMockC2S("s1", j2)
	aliceStm.SetPresence(testPresence(t, j2, 0))
	r.Bind(aliceStm)

	bobStm := stream.NewMockC2S("s2", j1)
	r.Bind(bobStm)

	el := xmpp.NewElementName("message")
	el.SetID("m1")
	el.SetType(xmpp.GroupChatType)
	el.AppendElement(xmpp.NewElementName("body").SetText("Twas brillig"))
	m, err := xmpp.NewMessageFromElement(el, j1, j3)
	require.Nil(t, err)

	// a groupchat occupant that vanished is denied, never redirected
	c.ProcessMessage(context.Background(), m)

	errElem := bobStm.ReceiveElement()
	require.Equal(t, xmpp.ErrorType, errElem.Type())
	require.Equal(t, xmpp.ErrServiceUnavailable.Error(), errElem.Error().Elements().All()[0].Name())

	count, cErr := s.Offline().CountOfflineMessages(context.Background(), "alice")
	require.Nil(t, cErr)
	require.Equal(t, 0, count)
}

func TestChatRouter_OfflineArchive(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	bare, _ := jid.NewWithString("alice@jabberwock.im", true)

	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "alice"}))

	c.ProcessMessage(context.Background(), testMessage(t, j1, bare))

	count, err := s.Offline().CountOfflineMessages(context.Background(), "alice")
	require.Nil(t, err)
	require.Equal(t, 1, count)
}

func TestChatRouter_NotExistingAccount(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	ghost, _ := jid.NewWithString("ghost@jabberwock.im", true)

	stm := stream.NewMockC2S("s1", j1)
	r.Bind(stm)

	c.ProcessMessage(context.Background(), testMessage(t, j1, ghost))

	errElem := stm.ReceiveElement()
	require.Equal(t, "message", errElem.Name())
	require.Equal(t, xmpp.ErrorType, errElem.Type())
	require.Equal(t, xmpp.ErrItemNotFound.Error(), errElem.Error().Elements().All()[0].Name())
}

func TestChatRouter_NoErrorReplies(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	ghost, _ := jid.NewWithString("ghost@jabberwock.im", true)

	stm := stream.NewMockC2S("s1", j1)
	r.Bind(stm)

	el := xmpp.NewElementName("message")
	el.SetID("m1")
	el.SetType(xmpp.ErrorType)
	m, err := xmpp.NewMessageFromElement(el, j1, ghost)
	require.Nil(t, err)

	c.ProcessMessage(context.Background(), m)

	// the error message must vanish without a synthesized reply;
	// a follow-up sentinel must be the first element the stream sees
	sentinel := testMessage(t, j1, j1)
	c.ProcessMessage(context.Background(), sentinel)

	elem := stm.ReceiveElement()
	require.Equal(t, "m1", elem.ID())
	require.NotEqual(t, xmpp.ErrorType, elem.Type())
}

func TestChatRouter_GroupChatWithoutResource(t *testing.T) {
	r, s := newTestRouter(t)
	c := NewChatRouter(r, inproc.New(), s.Offline(), nil)

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	bare, _ := jid.NewWithString("alice@jabberwock.im", true)

	stm := stream.NewMockC2S("s1", j1)
	r.Bind(stm)

	el := xmpp.NewElementName("message")
	el.SetID("m1")
	el.SetType(xmpp.GroupChatType)
	el.AppendElement(xmpp.NewElementName("body").SetText("Twas brillig"))
	m, err := xmpp.NewMessageFromElement(el, j1, bare)
	require.Nil(t, err)

	c.ProcessMessage(context.Background(), m)

	errElem := stm.ReceiveElement()
	require.Equal(t, xmpp.ErrorType, errElem.Type())
	require.Equal(t, xmpp.ErrServiceUnavailable.Error(), errElem.Error().Elements().All()[0].Name())
}

func TestChatRouter_RouteNotification(t *testing.T) {
	r, s := newTestRouter(t)
	b := inproc.New()
	c := NewChatRouter(r, b, s.Offline(), nil)

	var routed []*bus.Message
	b.RegisterHandler(bus.MsgRoute, func(_ context.Context, msg *bus.Message) (*bus.Response, error) {
		routed = append(routed, msg)
		return nil, nil
	})

	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	j2, _ := jid.NewWithString("alice@jabberwock.im/balcony", true)

	require.Nil(t, s.User().UpsertUser(context.Background(), &model.User{Username: "alice"}))
	stm := stream.NewMockC2S("s1", j2)
	stm.SetPresence(testPresence(t, j2, 0))
	r.Bind(stm)

	c.ProcessMessage(context.Background(), testMessage(t, j1, j2))
	require.Equal(t, "message", stm.ReceiveElement().Name())

	require.Len(t, routed, 1)
	require.Equal(t, j1.String(), routed[0].Param("from"))
	require.Equal(t, j2.String(), routed[0].Param("to"))
}

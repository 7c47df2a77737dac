/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"testing"

	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/model/rostermodel"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestMemoryUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	usr := &model.User{Username: "alice", Password: "wonderland"}
	require.Nil(t, s.User().UpsertUser(ctx, usr))

	ok, err := s.User().UserExists(ctx, "alice")
	require.Nil(t, err)
	require.True(t, ok)

	fetched, err := s.User().FetchUser(ctx, "alice")
	require.Nil(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, "wonderland", fetched.Password)

	require.Nil(t, s.User().DeleteUser(ctx, "alice"))
	fetched, err = s.User().FetchUser(ctx, "alice")
	require.Nil(t, err)
	require.Nil(t, fetched)

	s.EnableMockedError()
	defer s.DisableMockedError()
	_, err = s.User().FetchUser(ctx, "alice")
	require.Equal(t, ErrMocked, err)
}

func TestMemoryOffline(t *testing.T) {
	s := New()
	ctx := context.Background()

	from, _ := jid.NewWithString("bob@jabberwock.im/garden", true)
	to, _ := jid.NewWithString("alice@jabberwock.im", true)

	m := xmpp.NewMessageType("m1", xmpp.ChatType)
	m.SetFromJID(from)
	m.SetToJID(to)
	body := xmpp.NewElementName("body")
	body.SetText("beware the jabberwock")
	m.AppendElement(body)

	require.Nil(t, s.Offline().InsertOfflineMessage(ctx, m, "alice"))

	cnt, err := s.Offline().CountOfflineMessages(ctx, "alice")
	require.Nil(t, err)
	require.Equal(t, 1, cnt)

	msgs, err := s.Offline().FetchOfflineMessages(ctx, "alice")
	require.Nil(t, err)
	require.Equal(t, 1, len(msgs))
	require.Equal(t, "beware the jabberwock", msgs[0].Elements().Child("body").Text())

	require.Nil(t, s.Offline().DeleteOfflineMessages(ctx, "alice"))
	cnt, _ = s.Offline().CountOfflineMessages(ctx, "alice")
	require.Equal(t, 0, cnt)
}

func TestMemoryVCard(t *testing.T) {
	s := New()
	ctx := context.Background()

	vCard := xmpp.NewElementNamespace("vCard", "vcard-temp")
	fn := xmpp.NewElementName("FN")
	fn.SetText("Alice Liddell")
	vCard.AppendElement(fn)

	require.Nil(t, s.VCard().UpsertVCard(ctx, vCard, "alice"))

	fetched, err := s.VCard().FetchVCard(ctx, "alice")
	require.Nil(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, "Alice Liddell", fetched.Elements().Child("FN").Text())

	fetched, err = s.VCard().FetchVCard(ctx, "bob")
	require.Nil(t, err)
	require.Nil(t, fetched)
}

func TestMemoryPrivate(t *testing.T) {
	s := New()
	ctx := context.Background()

	exodus := xmpp.NewElementNamespace("exodus", "exodus:prefs")
	require.Nil(t, s.Private().UpsertPrivateXML(ctx, []xmpp.XElement{exodus}, "exodus:prefs", "alice"))

	elems, err := s.Private().FetchPrivateXML(ctx, "exodus:prefs", "alice")
	require.Nil(t, err)
	require.Equal(t, 1, len(elems))
	require.Equal(t, "exodus", elems[0].Name())
}

func TestMemoryRoster(t *testing.T) {
	s := New()
	ctx := context.Background()

	ri := &rostermodel.Item{
		Username:     "alice",
		JID:          "bob@jabberwock.im",
		Name:         "Bob",
		Subscription: rostermodel.SubscriptionBoth,
	}
	ver, err := s.Roster().UpsertRosterItem(ctx, ri)
	require.Nil(t, err)
	require.Equal(t, 1, ver.Ver)

	items, ver2, err := s.Roster().FetchRosterItems(ctx, "alice")
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	require.Equal(t, 1, ver2.Ver)

	it, err := s.Roster().FetchRosterItem(ctx, "alice", "bob@jabberwock.im")
	require.Nil(t, err)
	require.NotNil(t, it)
	require.Equal(t, "Bob", it.Name)

	_, err = s.Roster().DeleteRosterItem(ctx, "alice", "bob@jabberwock.im")
	require.Nil(t, err)
	it, _ = s.Roster().FetchRosterItem(ctx, "alice", "bob@jabberwock.im")
	require.Nil(t, it)
}

func TestMemoryCapabilities(t *testing.T) {
	s := New()
	ctx := context.Background()

	caps := &model.Capabilities{
		Node:     "http://jabberwock.im",
		Ver:      "v1234",
		Features: []string{"urn:xmpp:ping", "jabber:iq:version"},
	}
	require.Nil(t, s.Capabilities().UpsertCapabilities(ctx, caps))

	fetched, err := s.Capabilities().FetchCapabilities(ctx, "http://jabberwock.im", "v1234")
	require.Nil(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, 2, len(fetched.Features))

	fetched, err = s.Capabilities().FetchCapabilities(ctx, "http://jabberwock.im", "other")
	require.Nil(t, err)
	require.Nil(t, fetched)
}

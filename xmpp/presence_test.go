/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package xmpp_test

import (
	"testing"

	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestPresenceBuild(t *testing.T) {
	j, _ := jid.New("alice", "jabberwock.im", "yard", false)

	elem := xmpp.NewElementName("message")
	_, err := xmpp.NewPresenceFromElement(elem, j, j) // wrong name...
	require.NotNil(t, err)

	elem.SetName("presence")
	elem.SetType("invalid")
	_, err = xmpp.NewPresenceFromElement(elem, j, j) // invalid type...
	require.NotNil(t, err)

	elem.SetType(xmpp.SubscribeType)
	presence, err := xmpp.NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)
	require.True(t, presence.IsSubscribe())
}

func TestPresenceShowState(t *testing.T) {
	j, _ := jid.New("alice", "jabberwock.im", "yard", false)

	elem := xmpp.NewElementName("presence")
	show := xmpp.NewElementName("show")
	show.SetText("dnd")
	elem.AppendElement(show)

	presence, err := xmpp.NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)
	require.Equal(t, xmpp.DoNotDisturbShowState, presence.ShowState())

	show.SetText("invalid")
	elem.ClearElements()
	elem.AppendElement(show)
	_, err = xmpp.NewPresenceFromElement(elem, j, j)
	require.NotNil(t, err)

	elem.ClearElements()
	elem.AppendElements([]xmpp.XElement{xmpp.NewElementName("show"), xmpp.NewElementName("show")})
	_, err = xmpp.NewPresenceFromElement(elem, j, j) // more than one show...
	require.NotNil(t, err)
}

func TestPresencePriority(t *testing.T) {
	j, _ := jid.New("alice", "jabberwock.im", "yard", false)

	elem := xmpp.NewElementName("presence")
	priority := xmpp.NewElementName("priority")
	priority.SetText("10")
	elem.AppendElement(priority)

	presence, err := xmpp.NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)
	require.Equal(t, int8(10), presence.Priority())

	priority.SetText("1000")
	elem.ClearElements()
	elem.AppendElement(priority)
	_, err = xmpp.NewPresenceFromElement(elem, j, j) // out of range...
	require.NotNil(t, err)
}

func TestPresenceStatus(t *testing.T) {
	j, _ := jid.New("alice", "jabberwock.im", "yard", false)

	elem := xmpp.NewElementName("presence")
	status := xmpp.NewElementName("status")
	status.SetText("gardening")
	elem.AppendElement(status)

	presence, err := xmpp.NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)
	require.Equal(t, "gardening", presence.Status())

	status.SetAttribute("lang", "en")
	elem.ClearElements()
	elem.AppendElement(status)
	_, err = xmpp.NewPresenceFromElement(elem, j, j) // invalid status attribute...
	require.NotNil(t, err)
}

func TestPresenceCapabilities(t *testing.T) {
	j, _ := jid.New("alice", "jabberwock.im", "yard", false)

	elem := xmpp.NewElementName("presence")
	c := xmpp.NewElementNamespace("c", "http://jabber.org/protocol/caps")
	c.SetAttribute("node", "http://jabberwock.im")
	c.SetAttribute("hash", "sha-1")
	c.SetAttribute("ver", "q07IKJEyjvHSyhy//CH0CxmKi8w=")
	elem.AppendElement(c)

	presence, err := xmpp.NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)

	caps := presence.Capabilities()
	require.NotNil(t, caps)
	require.Equal(t, "http://jabberwock.im", caps.Node)
	require.Equal(t, "sha-1", caps.Hash)
	require.Equal(t, "q07IKJEyjvHSyhy//CH0CxmKi8w=", caps.Ver)

	elem.ClearElements()
	presence2, _ := xmpp.NewPresenceFromElement(elem, j, j)
	require.Nil(t, presence2.Capabilities())
}

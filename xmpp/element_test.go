/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package xmpp_test

import (
	"testing"

	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/stretchr/testify/require"
)

func TestElementBuild(t *testing.T) {
	elem := xmpp.NewElementNamespace("query", "jabber:iq:roster")
	require.Equal(t, "query", elem.Name())
	require.Equal(t, "jabber:iq:roster", elem.Namespace())

	elem.SetID("abc1234")
	elem.SetLanguage("en")
	elem.SetVersion("1.0")
	require.Equal(t, "abc1234", elem.ID())
	require.Equal(t, "en", elem.Language())
	require.Equal(t, "1.0", elem.Version())

	elem.SetAttribute("custom", "value")
	require.Equal(t, "value", elem.Attributes().Get("custom"))
	elem.RemoveAttribute("custom")
	require.Equal(t, "", elem.Attributes().Get("custom"))
}

func TestElementChildren(t *testing.T) {
	elem := xmpp.NewElementName("iq")
	elem.AppendElement(xmpp.NewElementNamespace("query", "jabber:iq:private"))
	elem.AppendElement(xmpp.NewElementName("item"))
	elem.AppendElement(xmpp.NewElementName("item"))

	require.Equal(t, 3, elem.Elements().Count())
	require.NotNil(t, elem.Elements().Child("query"))
	require.NotNil(t, elem.Elements().ChildNamespace("query", "jabber:iq:private"))
	require.Equal(t, 2, len(elem.Elements().Children("item")))

	elem.RemoveElements("item")
	require.Equal(t, 1, elem.Elements().Count())

	elem.RemoveElementsNamespace("query", "jabber:iq:private")
	require.Equal(t, 0, elem.Elements().Count())
}

func TestElementCopy(t *testing.T) {
	elem := xmpp.NewElementNamespace("vCard", "vcard-temp")
	fn := xmpp.NewElementName("FN")
	fn.SetText("Alice")
	elem.AppendElement(fn)

	cp := xmpp.NewElementFromElement(elem)
	require.Equal(t, elem.String(), cp.String())

	// copy must be deep
	cp.Elements().Child("FN").(*xmpp.Element).SetText("Bob")
	require.Equal(t, "Alice", elem.Elements().Child("FN").Text())
}

func TestElementToXML(t *testing.T) {
	elem := xmpp.NewElementName("message")
	elem.SetID("m1")
	body := xmpp.NewElementName("body")
	body.SetText(`snicker & "snack"`)
	elem.AppendElement(body)

	require.Equal(t, `<message id="m1"><body>snicker &amp; &#34;snack&#34;</body></message>`, elem.String())

	empty := xmpp.NewElementName("ping")
	require.Equal(t, `<ping/>`, empty.String())
}

func TestElementIsStanza(t *testing.T) {
	require.True(t, xmpp.NewElementName("iq").IsStanza())
	require.True(t, xmpp.NewElementName("presence").IsStanza())
	require.True(t, xmpp.NewElementName("message").IsStanza())
	require.False(t, xmpp.NewElementName("query").IsStanza())
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package session

import (
	"context"
	"testing"
	"time"

	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestSession_Open(t *testing.T) {
	tr := transport.NewMemoryTransport()
	s := newTestSession(t, tr, false, false)

	require.Nil(t, s.Open(context.Background()))
	require.NotNil(t, s.Open(context.Background())) // already opened

	open := tr.WaitElement(time.Second)
	require.NotNil(t, open)
	require.Equal(t, "stream:stream", open.Name())
	require.Equal(t, "jabber:client", open.Namespace())
	require.Equal(t, s.StreamID(), open.ID())
	require.Equal(t, "jabberwock.im", open.From())
}

func TestSession_ServerOpenAdvertisesDialback(t *testing.T) {
	tr := transport.NewMemoryTransport()
	s := newTestSession(t, tr, true, true)

	require.Nil(t, s.Open(context.Background()))

	open := tr.WaitElement(time.Second)
	require.Equal(t, "jabber:server", open.Namespace())
	require.Equal(t, dialbackNamespace, open.Attributes().Get("xmlns:db"))
	require.Equal(t, "wonderland.lit", open.To())
	require.Empty(t, open.ID()) // initiating side never sets the stream id
}

func TestSession_ReceiveStreamOpen(t *testing.T) {
	tr := transport.NewMemoryTransport()
	s := newTestSession(t, tr, true, true)

	open := xmpp.NewElementName("stream:stream")
	open.SetAttribute("xmlns", "jabber:server")
	open.SetAttribute("xmlns:stream", streamNamespace)
	open.SetAttribute("id", "stm-91")
	open.SetAttribute("version", "1.0")
	tr.DeliverElement(open)

	elem, sErr := s.Receive()
	require.Nil(t, sErr)
	require.NotNil(t, elem)
	require.Equal(t, "stm-91", s.StreamID())
}

func TestSession_RejectsUnknownHost(t *testing.T) {
	tr := transport.NewMemoryTransport()
	s := newTestSession(t, tr, false, false)

	open := xmpp.NewElementName("stream:stream")
	open.SetAttribute("xmlns", "jabber:client")
	open.SetAttribute("xmlns:stream", streamNamespace)
	open.SetAttribute("to", "looking-glass.lit")
	open.SetAttribute("version", "1.0")
	tr.DeliverElement(open)

	_, sErr := s.Receive()
	require.NotNil(t, sErr)
	require.Equal(t, stream.ErrHostUnknown, sErr.UnderlyingErr)
}

func TestSession_BuildsStanzas(t *testing.T) {
	tr := transport.NewMemoryTransport()
	s := newTestSession(t, tr, false, false)
	startSession(t, tr, s, "jabber:client")

	m := xmpp.NewElementName("message")
	m.SetType(xmpp.ChatType)
	m.SetTo("bob@jabberwock.im")
	tr.DeliverElement(m)

	elem, sErr := s.Receive()
	require.Nil(t, sErr)

	message, ok := elem.(*xmpp.Message)
	require.True(t, ok)
	require.Equal(t, "alice@jabberwock.im/balcony", message.FromJID().String())
	require.Equal(t, "bob@jabberwock.im", message.ToJID().String())
}

func TestSession_RejectsSpoofedFrom(t *testing.T) {
	tr := transport.NewMemoryTransport()
	s := newTestSession(t, tr, false, false)
	startSession(t, tr, s, "jabber:client")

	m := xmpp.NewElementName("message")
	m.SetFrom("queen@jabberwock.im/court")
	m.SetTo("bob@jabberwock.im")
	tr.DeliverElement(m)

	_, sErr := s.Receive()
	require.NotNil(t, sErr)
	require.Equal(t, stream.ErrInvalidFrom, sErr.UnderlyingErr)
}

func TestSession_CloseRoundTrip(t *testing.T) {
	tr := transport.NewMemoryTransport()
	s := newTestSession(t, tr, false, false)
	startSession(t, tr, s, "jabber:client")

	require.Nil(t, s.Open(context.Background()))
	_ = tr.WaitElement(time.Second) // open

	require.Nil(t, s.Close(context.Background()))

	closeElem := tr.WaitElement(time.Second)
	require.NotNil(t, closeElem)
	require.Equal(t, "close", closeElem.Name())
	require.Equal(t, streamNamespace, closeElem.Namespace())

	// a peer close surfaces as a graceful session end
	tr.DeliverElement(xmpp.NewElementNamespace("close", streamNamespace))
	elem, sErr := s.Receive()
	require.Nil(t, elem)
	require.NotNil(t, sErr)
	require.Nil(t, sErr.UnderlyingErr)
}

func newTestSession(t *testing.T, tr transport.Transport, isServer, isInitiating bool) *Session {
	t.Helper()
	hosts, err := host.New([]host.Config{{Name: "jabberwock.im"}})
	require.Nil(t, err)

	j, err := jid.NewWithString("alice@jabberwock.im/balcony", true)
	require.Nil(t, err)

	remoteDomain := ""
	if isServer {
		remoteDomain = "wonderland.lit"
	}
	return New("test-session", &Config{
		JID:          j,
		Transport:    tr,
		RemoteDomain: remoteDomain,
		IsServer:     isServer,
		IsInitiating: isInitiating,
	}, hosts)
}

func startSession(t *testing.T, tr *transport.MemoryTransport, s *Session, ns string) {
	t.Helper()
	open := xmpp.NewElementName("stream:stream")
	open.SetAttribute("xmlns", ns)
	open.SetAttribute("xmlns:stream", streamNamespace)
	open.SetAttribute("version", "1.0")
	tr.DeliverElement(open)

	_, sErr := s.Receive()
	require.Nil(t, sErr)
}

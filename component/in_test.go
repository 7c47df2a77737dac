/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package component

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/router"
	"github.com/jabberwock-im/jabberwock/storage/memstorage"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/stretchr/testify/require"
)

func TestInStream_Handshake(t *testing.T) {
	env := newTestEnv(t)
	tr := transport.NewMemoryTransport()
	stm := env.newStream(t, tr)

	deliverComponentOpen(tr, "muc.jabberwock.im")

	open := tr.WaitElement(time.Second)
	require.NotNil(t, open)
	require.Equal(t, "stream:stream", open.Name())
	require.True(t, len(open.ID()) > 0)

	handshake := xmpp.NewElementName("handshake")
	handshake.SetText(handshakeFor(open.ID(), "s3cr3t"))
	tr.DeliverElement(handshake)

	resp := tr.WaitElement(time.Second)
	require.NotNil(t, resp)
	require.Equal(t, "handshake", resp.Name())
	require.Equal(t, 0, len(resp.Text()))

	require.True(t, stm.isAuthenticated())
	require.Equal(t, "muc.jabberwock.im", stm.Domain())
	require.True(t, env.router.IsServerItem("muc.jabberwock.im"))
}

func TestInStream_HandshakeRejected(t *testing.T) {
	env := newTestEnv(t)
	tr := transport.NewMemoryTransport()
	stm := env.newStream(t, tr)

	deliverComponentOpen(tr, "muc.jabberwock.im")
	_ = tr.WaitElement(time.Second) // open

	handshake := xmpp.NewElementName("handshake")
	handshake.SetText("not-the-digest")
	tr.DeliverElement(handshake)

	streamErr := tr.WaitElement(time.Second)
	require.NotNil(t, streamErr)
	require.Equal(t, "stream:error", streamErr.Name())
	require.NotNil(t, streamErr.Elements().Child("not-authorized"))

	require.Eventually(t, func() bool {
		return stm.getState() == disconnected
	}, time.Second, time.Millisecond*10)
	require.False(t, env.router.IsServerItem("muc.jabberwock.im"))
}

func TestInStream_LocalHostRefused(t *testing.T) {
	env := newTestEnv(t)
	tr := transport.NewMemoryTransport()
	stm := env.newStream(t, tr)

	deliverComponentOpen(tr, "jabberwock.im")

	_ = tr.WaitElement(time.Second) // open
	streamErr := tr.WaitElement(time.Second)
	require.NotNil(t, streamErr)
	require.Equal(t, "stream:error", streamErr.Name())
	require.NotNil(t, streamErr.Elements().Child("host-unknown"))

	require.Eventually(t, func() bool {
		return stm.getState() == disconnected
	}, time.Second, time.Millisecond*10)
}

func TestInStream_DomainConflict(t *testing.T) {
	env := newTestEnv(t)
	env.router.RegisterServerItem("muc.jabberwock.im")

	tr := transport.NewMemoryTransport()
	_ = env.newStream(t, tr)

	deliverComponentOpen(tr, "muc.jabberwock.im")
	open := tr.WaitElement(time.Second)
	require.NotNil(t, open)

	handshake := xmpp.NewElementName("handshake")
	handshake.SetText(handshakeFor(open.ID(), "s3cr3t"))
	tr.DeliverElement(handshake)

	streamErr := tr.WaitElement(time.Second)
	require.NotNil(t, streamErr)
	require.NotNil(t, streamErr.Elements().Child("conflict"))
}

func TestInStream_StanzaEnqueued(t *testing.T) {
	env := newTestEnv(t)
	tr := transport.NewMemoryTransport()
	_ = env.newStream(t, tr)

	deliverComponentOpen(tr, "muc.jabberwock.im")
	open := tr.WaitElement(time.Second)

	handshake := xmpp.NewElementName("handshake")
	handshake.SetText(handshakeFor(open.ID(), "s3cr3t"))
	tr.DeliverElement(handshake)
	_ = tr.WaitElement(time.Second) // handshake ack

	msg := xmpp.NewElementName("message")
	msg.SetID("m1")
	msg.SetType(xmpp.GroupChatType)
	msg.SetFrom("tearoom@muc.jabberwock.im")
	msg.SetTo("alice@jabberwock.im")
	msg.AppendElement(xmpp.NewElementName("body").SetText("No room!"))
	tr.DeliverElement(msg)

	select {
	case stanza := <-env.processedCh:
		message, ok := stanza.(*xmpp.Message)
		require.True(t, ok)
		require.Equal(t, "tearoom", message.FromJID().Node())
	case <-time.After(time.Second):
		t.Fatal("no stanza processed")
	}
}

func TestInStream_UnregistersOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	comps := New(&Config{
		Secret:         "s3cr3t",
		ConnectTimeout: time.Second,
		Timeout:        time.Second,
	}, env.hosts, env.router, env.pool, transport.NewGobCodec)

	tr := transport.NewMemoryTransport()
	cfg := &streamConfig{
		secret:         "s3cr3t",
		connectTimeout: time.Second,
		timeout:        time.Second,
		transport:      tr,
		onAuthenticate: comps.register,
		onDisconnect:   comps.unregister,
	}
	stm := newInStream(cfg, env.hosts, env.router, env.pool)
	require.Nil(t, stm.start())

	deliverComponentOpen(tr, "muc.jabberwock.im")
	open := tr.WaitElement(time.Second)

	handshake := xmpp.NewElementName("handshake")
	handshake.SetText(handshakeFor(open.ID(), "s3cr3t"))
	tr.DeliverElement(handshake)
	_ = tr.WaitElement(time.Second)

	require.NotNil(t, comps.StreamForDomain("muc.jabberwock.im"))

	stm.Disconnect(nil)

	require.Nil(t, comps.StreamForDomain("muc.jabberwock.im"))
	require.False(t, env.router.IsServerItem("muc.jabberwock.im"))
}

type testEnv struct {
	hosts       *host.Hosts
	router      *router.Router
	pool        *pending.Pool
	processedCh chan xmpp.Stanza
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hosts, err := host.New([]host.Config{{Name: "jabberwock.im"}})
	require.Nil(t, err)

	s := memstorage.New()
	r := router.New(hosts, s.User(), &router.Config{})

	env := &testEnv{
		hosts:       hosts,
		router:      r,
		processedCh: make(chan xmpp.Stanza, 16),
	}
	proc := &capturingProcessor{ch: env.processedCh}
	env.pool = pending.New(&pending.Config{Workers: 2}, proc, proc, proc)
	env.pool.Start()
	t.Cleanup(env.pool.Stop)
	return env
}

func (env *testEnv) newStream(t *testing.T, tr transport.Transport) *inStream {
	t.Helper()
	cfg := &streamConfig{
		secret:         "s3cr3t",
		connectTimeout: time.Second,
		timeout:        time.Second,
		transport:      tr,
	}
	stm := newInStream(cfg, env.hosts, env.router, env.pool)
	require.Nil(t, stm.start())
	return stm
}

type capturingProcessor struct {
	ch chan xmpp.Stanza
}

func (p *capturingProcessor) ProcessMessage(_ context.Context, message *xmpp.Message) {
	p.ch <- message
}

func (p *capturingProcessor) ProcessIQ(_ context.Context, iq *xmpp.IQ) {
	p.ch <- iq
}

func (p *capturingProcessor) ProcessPresence(_ context.Context, presence *xmpp.Presence) {
	p.ch <- presence
}

func deliverComponentOpen(tr *transport.MemoryTransport, to string) {
	open := xmpp.NewElementName("stream:stream")
	open.SetAttribute("xmlns", "jabber:component:accept")
	open.SetAttribute("xmlns:stream", "http://etherx.jabber.org/streams")
	open.SetTo(to)
	tr.DeliverElement(open)
}

func handshakeFor(streamID, secret string) string {
	sum := sha1.Sum([]byte(streamID + secret))
	return hex.EncodeToString(sum[:])
}

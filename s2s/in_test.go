/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import (
	"context"
	"testing"
	"time"

	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/stretchr/testify/require"
)

func TestInStream_OpenAndFeatures(t *testing.T) {
	tr := transport.NewMemoryTransport()
	stm := newTestInStream(t, tr, NewInHub())

	deliverPeerOpen(tr, "peer-1")

	open := tr.WaitElement(time.Second)
	require.NotNil(t, open)
	require.Equal(t, "stream:stream", open.Name())
	require.Equal(t, "jabberwock.im", open.From())
	require.True(t, len(open.ID()) > 0)

	features := tr.WaitElement(time.Second)
	require.NotNil(t, features)
	require.Equal(t, "stream:features", features.Name())
	require.Nil(t, features.Elements().ChildNamespace("starttls", tlsNamespace))
	require.NotNil(t, features.Elements().ChildNamespace("dialback", dialbackFeatureNamespace))

	require.Equal(t, "wonderland.lit", stm.remoteDomainName())
}

func TestInStream_AuthorizeDialbackKey(t *testing.T) {
	tr := transport.NewMemoryTransport()
	stm := newTestInStream(t, tr, NewInHub())

	deliverPeerOpen(tr, "peer-1")
	_ = tr.WaitElement(time.Second) // open
	_ = tr.WaitElement(time.Second) // features

	kg := &keyGen{secret: "s3cr3t"}

	dbVerify := xmpp.NewElementName("db:verify")
	dbVerify.SetID("out-77")
	dbVerify.SetFrom("wonderland.lit")
	dbVerify.SetTo("jabberwock.im")
	dbVerify.SetText(kg.generate("wonderland.lit", "jabberwock.im", "out-77"))
	tr.DeliverElement(dbVerify)

	resp := tr.WaitElement(time.Second)
	require.NotNil(t, resp)
	require.Equal(t, "db:verify", resp.Name())
	require.Equal(t, "valid", resp.Type())
	require.Equal(t, "out-77", resp.ID())
	require.Equal(t, "jabberwock.im", resp.From())
	require.Equal(t, "wonderland.lit", resp.To())

	forged := xmpp.NewElementName("db:verify")
	forged.SetID("out-78")
	forged.SetFrom("wonderland.lit")
	forged.SetTo("jabberwock.im")
	forged.SetText("not-the-key")
	tr.DeliverElement(forged)

	resp = tr.WaitElement(time.Second)
	require.NotNil(t, resp)
	require.Equal(t, "invalid", resp.Type())

	require.False(t, stm.isAuthenticated())
}

func TestInStream_AuthorizeDialbackKeyUnknownHost(t *testing.T) {
	tr := transport.NewMemoryTransport()
	_ = newTestInStream(t, tr, NewInHub())

	deliverPeerOpen(tr, "peer-1")
	_ = tr.WaitElement(time.Second)
	_ = tr.WaitElement(time.Second)

	dbVerify := xmpp.NewElementName("db:verify")
	dbVerify.SetID("out-79")
	dbVerify.SetFrom("wonderland.lit")
	dbVerify.SetTo("looking-glass.net")
	dbVerify.SetText("some-key")
	tr.DeliverElement(dbVerify)

	resp := tr.WaitElement(time.Second)
	require.NotNil(t, resp)
	require.Equal(t, xmpp.ErrorType, resp.Type())
	require.NotNil(t, resp.Elements().Child("error"))
}

func TestInStream_StanzaBeforeAuthentication(t *testing.T) {
	tr := transport.NewMemoryTransport()
	stm := newTestInStream(t, tr, NewInHub())

	deliverPeerOpen(tr, "peer-1")
	_ = tr.WaitElement(time.Second)
	_ = tr.WaitElement(time.Second)

	msg := xmpp.NewElementName("message")
	msg.SetFrom("alice@wonderland.lit")
	msg.SetTo("hatter@jabberwock.im")
	tr.DeliverElement(msg)

	streamErr := tr.WaitElement(time.Second)
	require.NotNil(t, streamErr)
	require.Equal(t, "stream:error", streamErr.Name())
	require.NotNil(t, streamErr.Elements().Child("not-authorized"))

	require.Eventually(t, func() bool {
		return stm.getState() == inDisconnected
	}, time.Second, time.Millisecond*10)
}

func TestInStream_DuplicateOpenID(t *testing.T) {
	hub := NewInHub()

	tr1 := transport.NewMemoryTransport()
	_ = newTestInStream(t, tr1, hub)
	deliverPeerOpen(tr1, "dup-1")

	open := tr1.WaitElement(time.Second)
	require.NotNil(t, open)
	require.Equal(t, "stream:stream", open.Name())

	tr2 := transport.NewMemoryTransport()
	_ = newTestInStream(t, tr2, hub)
	deliverPeerOpen(tr2, "dup-1")

	streamErr := tr2.WaitElement(time.Second)
	require.NotNil(t, streamErr)
	require.Equal(t, "stream:error", streamErr.Name())
	require.NotNil(t, streamErr.Elements().Child("invalid-id"))
}

func TestInStream_FinishDialbackVerification(t *testing.T) {
	tr := transport.NewMemoryTransport()
	stm := newTestInStream(t, tr, NewInHub())

	deliverPeerOpen(tr, "peer-1")
	_ = tr.WaitElement(time.Second)
	_ = tr.WaitElement(time.Second)

	dbResult := xmpp.NewElementName("db:result")
	dbResult.SetFrom("wonderland.lit")
	dbResult.SetTo("jabberwock.im")
	dbResult.SetText("some-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stm.finishDialbackVerification(ctx, dbResult, verifyResult{valid: true})

	resp := tr.WaitElement(time.Second)
	require.NotNil(t, resp)
	require.Equal(t, "db:result", resp.Name())
	require.Equal(t, "valid", resp.Type())
	require.Equal(t, "jabberwock.im", resp.From())
	require.Equal(t, "wonderland.lit", resp.To())
	require.True(t, stm.isAuthenticated())
	require.True(t, stm.Flags()&stream.Authenticated > 0)
}

func TestInStream_FinishDialbackVerificationTimeout(t *testing.T) {
	tr := transport.NewMemoryTransport()
	stm := newTestInStream(t, tr, NewInHub())

	deliverPeerOpen(tr, "peer-1")
	_ = tr.WaitElement(time.Second)
	_ = tr.WaitElement(time.Second)

	dbResult := xmpp.NewElementName("db:result")
	dbResult.SetFrom("wonderland.lit")
	dbResult.SetTo("jabberwock.im")
	dbResult.SetText("some-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stm.finishDialbackVerification(ctx, dbResult, verifyResult{timedOut: true})

	resp := tr.WaitElement(time.Second)
	require.NotNil(t, resp)
	require.Equal(t, "db:result", resp.Name())
	require.Equal(t, "error", resp.Type())
	errElem := resp.Elements().Child("error")
	require.NotNil(t, errElem)
	require.Equal(t, "cancel", errElem.Type())
	require.NotNil(t, errElem.Elements().Child("remote-server-timeout"))
	require.False(t, stm.isAuthenticated())
}

func TestInStream_FinishDialbackVerificationNoRemote(t *testing.T) {
	tr := transport.NewMemoryTransport()
	stm := newTestInStream(t, tr, NewInHub())

	deliverPeerOpen(tr, "peer-1")
	_ = tr.WaitElement(time.Second)
	_ = tr.WaitElement(time.Second)

	dbResult := xmpp.NewElementName("db:result")
	dbResult.SetFrom("wonderland.lit")
	dbResult.SetTo("jabberwock.im")
	dbResult.SetText("some-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stm.finishDialbackVerification(ctx, dbResult, verifyResult{noRemote: true})

	resp := tr.WaitElement(time.Second)
	require.NotNil(t, resp)
	require.Equal(t, "db:result", resp.Name())
	require.Equal(t, "error", resp.Type())
	errElem := resp.Elements().Child("error")
	require.NotNil(t, errElem)
	require.Equal(t, "cancel", errElem.Type())
	require.NotNil(t, errElem.Elements().Child("remote-server-not-found"))
	require.False(t, stm.isAuthenticated())
}

func newTestInStream(t *testing.T, tr transport.Transport, hub *InHub) *inStream {
	t.Helper()
	hosts, err := host.New([]host.Config{{Name: "jabberwock.im"}})
	require.Nil(t, err)

	cfg := &streamConfig{
		keyGen:      &keyGen{secret: "s3cr3t"},
		localDomain: "jabberwock.im",
		timeout:     time.Second,
		transport:   tr,
	}
	stm := newInStream(cfg, hosts, nil, nil, nil, hub)
	require.Nil(t, stm.start())
	return stm
}

func deliverPeerOpen(tr *transport.MemoryTransport, openID string) {
	open := xmpp.NewElementName("stream:stream")
	open.SetAttribute("xmlns", "jabber:server")
	open.SetAttribute("xmlns:stream", streamNamespace)
	open.SetAttribute("id", openID)
	open.SetAttribute("from", "wonderland.lit")
	open.SetAttribute("to", "jabberwock.im")
	open.SetAttribute("version", "1.0")
	tr.DeliverElement(open)
}

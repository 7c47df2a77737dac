/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package pending

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

type recordingProcessor struct {
	mu      sync.Mutex
	ids     []string
	panicOn string
}

func (r *recordingProcessor) ProcessMessage(_ context.Context, message *xmpp.Message) {
	r.record("message:" + message.ID())
}

func (r *recordingProcessor) ProcessIQ(_ context.Context, iq *xmpp.IQ) {
	r.record("iq:" + iq.ID())
}

func (r *recordingProcessor) ProcessPresence(_ context.Context, presence *xmpp.Presence) {
	r.record("presence:" + presence.ID())
}

func (r *recordingProcessor) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.panicOn {
		panic("malformed job")
	}
	r.ids = append(r.ids, id)
}

func (r *recordingProcessor) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func TestPool_Dispatch(t *testing.T) {
	rec := &recordingProcessor{}
	p := New(&Config{Workers: 2}, rec, rec, rec)
	p.Start()

	from := testJID(t, "alice@jabberwock.im/balcony")
	to := testJID(t, "bob@jabberwock.im/garden")

	require.True(t, p.Enqueue(Job{Stanza: testMessage(t, "m1", from, to), Stream: c2sInfo()}))
	require.True(t, p.Enqueue(Job{Stanza: testIQ(t, "i1", from, to), Stream: c2sInfo()}))
	require.True(t, p.Enqueue(Job{Stanza: testPresence(t, "p1", from, to), Stream: c2sInfo()}))
	p.Stop()

	require.ElementsMatch(t, []string{"message:m1", "iq:i1", "presence:p1"}, rec.recorded())
}

func TestPool_OrderingPerConversation(t *testing.T) {
	rec := &recordingProcessor{}
	p := New(&Config{Workers: 4}, rec, rec, rec)
	p.Start()

	alice := testJID(t, "alice@jabberwock.im/balcony")
	queen := testJID(t, "queen@jabberwock.im/court")
	bob := testJID(t, "bob@jabberwock.im/garden")

	// two producers interleave, each with its own partition key
	var wg sync.WaitGroup
	for _, from := range []*jid.JID{alice, queen} {
		wg.Add(1)
		go func(from *jid.JID) {
			defer wg.Done()
			for i := 0; i < 64; i++ {
				id := fmt.Sprintf("%s-%d", from.Node(), i)
				p.Enqueue(Job{Stanza: testMessage(t, id, from, bob), Stream: c2sInfo()})
			}
		}(from)
	}
	wg.Wait()
	p.Stop()

	got := rec.recorded()
	require.Len(t, got, 128)

	next := map[string]int{"alice": 0, "queen": 0}
	for _, id := range got {
		var node string
		var seq int
		_, err := fmt.Sscanf(id, "message:%s", &id)
		require.Nil(t, err)
		_, err = fmt.Sscanf(id, "alice-%d", &seq)
		if err == nil {
			node = "alice"
		} else {
			_, err = fmt.Sscanf(id, "queen-%d", &seq)
			require.Nil(t, err)
			node = "queen"
		}
		require.Equal(t, next[node], seq)
		next[node]++
	}
}

func TestPool_DrainOnStop(t *testing.T) {
	rec := &recordingProcessor{}
	p := New(&Config{Workers: 3}, rec, rec, rec)
	p.Start()

	bob := testJID(t, "bob@jabberwock.im/garden")
	for i := 0; i < 48; i++ {
		from := testJID(t, fmt.Sprintf("u%d@jabberwock.im/res", i))
		p.Enqueue(Job{Stanza: testMessage(t, fmt.Sprintf("m%d", i), from, bob), Stream: c2sInfo()})
	}
	p.Stop()

	// every job enqueued before stop completed
	require.Len(t, rec.recorded(), 48)
	require.False(t, p.Enqueue(Job{Stanza: testMessage(t, "late", bob, bob), Stream: c2sInfo()}))
}

func TestPool_PanicRecovery(t *testing.T) {
	rec := &recordingProcessor{panicOn: "message:boom"}
	p := New(&Config{Workers: 1}, rec, rec, rec)
	p.Start()

	from := testJID(t, "alice@jabberwock.im/balcony")
	to := testJID(t, "bob@jabberwock.im/garden")

	p.Enqueue(Job{Stanza: testMessage(t, "boom", from, to), Stream: c2sInfo()})
	p.Enqueue(Job{Stanza: testMessage(t, "after", from, to), Stream: c2sInfo()})
	p.Stop()

	require.Equal(t, []string{"message:after"}, rec.recorded())
}

func TestPool_ServerPartitionKey(t *testing.T) {
	from := testJID(t, "alice@jabberwock.im/balcony")
	to := testJID(t, "bob@wonderland.lit/garden")
	m := testMessage(t, "m1", from, to)

	require.Equal(t, "jabberwock.im wonderland.lit", partitionKey(m, stream.S2SKind))
	require.Equal(t, "alice@jabberwock.im/balcony", partitionKey(m, stream.C2SKind))
}

func TestConfig_Workers(t *testing.T) {
	cfg := Config{}
	require.Nil(t, yaml.Unmarshal([]byte("{}"), &cfg))
	require.Equal(t, defaultWorkers, cfg.Workers)

	require.Nil(t, yaml.Unmarshal([]byte("workers: 7"), &cfg))
	require.Equal(t, 7, cfg.Workers)

	require.NotNil(t, yaml.Unmarshal([]byte("workers: 24"), &cfg))
}

func c2sInfo() StreamInfo {
	return StreamInfo{Name: "s1", Kind: stream.C2SKind, LocalDomain: "jabberwock.im"}
}

func testJID(t *testing.T, s string) *jid.JID {
	t.Helper()
	j, err := jid.NewWithString(s, true)
	require.Nil(t, err)
	return j
}

func testMessage(t *testing.T, id string, from, to *jid.JID) *xmpp.Message {
	t.Helper()
	el := xmpp.NewElementName("message")
	el.SetID(id)
	el.SetType(xmpp.ChatType)
	el.AppendElement(xmpp.NewElementName("body").SetText("Beware the Jabberwock!"))
	m, err := xmpp.NewMessageFromElement(el, from, to)
	require.Nil(t, err)
	return m
}

func testIQ(t *testing.T, id string, from, to *jid.JID) *xmpp.IQ {
	t.Helper()
	iq := xmpp.NewIQType(id, xmpp.GetType)
	iq.SetFromJID(from)
	iq.SetToJID(to)
	return iq
}

func testPresence(t *testing.T, id string, from, to *jid.JID) *xmpp.Presence {
	t.Helper()
	el := xmpp.NewElementName("presence")
	el.SetID(id)
	p, err := xmpp.NewPresenceFromElement(el, from, to)
	require.Nil(t, err)
	return p
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package inproc

import (
	"context"
	"testing"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/stretchr/testify/require"
)

func TestInProc_Request(t *testing.T) {
	b := New()
	b.RegisterHandler(bus.UserAuth, func(_ context.Context, msg *bus.Message) (*bus.Response, error) {
		if msg.Param("username") != "alice" {
			return nil, nil
		}
		resp := &bus.Response{Handled: true, Params: map[string]string{"password": "wonderland"}}
		return resp, nil
	})

	msg := bus.NewMessage(bus.UserAuth).SetParam("username", "alice")
	resp, err := b.Request(context.Background(), msg)
	require.Nil(t, err)
	require.True(t, resp.Handled)
	require.Equal(t, "wonderland", resp.Param("password"))

	msg = bus.NewMessage(bus.UserAuth).SetParam("username", "hatter")
	resp, err = b.Request(context.Background(), msg)
	require.Nil(t, err)
	require.False(t, resp.Handled)
}

func TestInProc_UnhandledOperation(t *testing.T) {
	b := New()
	resp, err := b.Request(context.Background(), bus.NewMessage(bus.JabberIQ))
	require.Nil(t, err)
	require.False(t, resp.Handled)
}

func TestInProc_StanzaPayload(t *testing.T) {
	b := New()

	var got *xmpp.Element
	b.RegisterHandler(bus.MsgRoute, func(_ context.Context, msg *bus.Message) (*bus.Response, error) {
		elem, err := msg.StanzaElement()
		if err != nil {
			return nil, err
		}
		got = elem
		return &bus.Response{Handled: true}, nil
	})

	m := xmpp.NewElementName("message")
	m.SetID("m1")
	m.AppendElement(xmpp.NewElementName("body").SetText("so rested he by the Tumtum tree"))

	msg := bus.NewMessage(bus.MsgRoute)
	require.Nil(t, msg.SetStanza(m))

	resp, err := b.Request(context.Background(), msg)
	require.Nil(t, err)
	require.True(t, resp.Handled)
	require.NotNil(t, got)
	require.Equal(t, "m1", got.ID())
	require.Equal(t, "so rested he by the Tumtum tree", got.Elements().Child("body").Text())
}

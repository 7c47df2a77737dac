/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package transport

import (
	"bytes"
	"testing"

	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/stretchr/testify/require"
)

func TestGobCodec_RoundTrip(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	c := NewGobCodec(buf)

	msg := xmpp.NewElementName("message")
	msg.SetID("m1")
	msg.SetFrom("alice@jabberwock.im/balcony")
	msg.SetTo("hatter@jabberwock.im")
	body := xmpp.NewElementName("body")
	body.SetText("we're all mad here")
	msg.AppendElement(body)

	require.Nil(t, c.Encode(msg, false))
	require.Nil(t, c.Encode(xmpp.NewElementName("presence"), true))

	decoded, err := c.Decode()
	require.Nil(t, err)
	require.Equal(t, "message", decoded.Name())
	require.Equal(t, "m1", decoded.ID())
	require.Equal(t, "alice@jabberwock.im/balcony", decoded.From())

	decodedBody := decoded.Elements().Child("body")
	require.NotNil(t, decodedBody)
	require.Equal(t, "we're all mad here", decodedBody.Text())

	decoded, err = c.Decode()
	require.Nil(t, err)
	require.Equal(t, "presence", decoded.Name())
}

func TestGobCodec_InvalidFrameLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})
	c := NewGobCodec(buf)

	_, err := c.Decode()
	require.NotNil(t, err)
}

func TestGobCodec_TruncatedFrame(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	c := NewGobCodec(buf)
	require.Nil(t, c.Encode(xmpp.NewElementName("iq"), false))

	truncated := bytes.NewBuffer(buf.Bytes()[:buf.Len()-2])
	c.Reset(truncated)

	_, err := c.Decode()
	require.NotNil(t, err)
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package jid_test

import (
	"strings"
	"testing"

	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestJID_Invalid(t *testing.T) {
	_, err := jid.NewWithString("alice@", false)
	require.NotNil(t, err)

	_, err = jid.NewWithString("alice@jabberwock.im/", false)
	require.NotNil(t, err)

	longStr := strings.Repeat("a", 1074)
	_, err = jid.New(longStr, "jabberwock.im", "yard", false)
	require.NotNil(t, err)
	_, err = jid.New("alice", longStr, "yard", false)
	require.NotNil(t, err)
	_, err = jid.New("alice", "jabberwock.im", longStr, false)
	require.NotNil(t, err)

	_, err = jid.New(`al"ice`, "jabberwock.im", "yard", false)
	require.NotNil(t, err)
}

func TestJID_New(t *testing.T) {
	j1, err := jid.New("alice", "jabberwock.im", "yard", false)
	require.Nil(t, err)
	require.Equal(t, "alice", j1.Node())
	require.Equal(t, "jabberwock.im", j1.Domain())
	require.Equal(t, "yard", j1.Resource())

	j2, err := jid.New("alice", "jabberwock.im", "yard", true)
	require.Nil(t, err)
	require.Equal(t, "alice", j2.Node())
	require.Equal(t, "jabberwock.im", j2.Domain())
	require.Equal(t, "yard", j2.Resource())
}

func TestJID_NewWithString(t *testing.T) {
	j, err := jid.NewWithString("alice@jabberwock.im/yard", false)
	require.Nil(t, err)
	require.Equal(t, "alice", j.Node())
	require.Equal(t, "jabberwock.im", j.Domain())
	require.Equal(t, "yard", j.Resource())
	require.Equal(t, "alice@jabberwock.im", j.ToBareJID().String())
	require.Equal(t, "alice@jabberwock.im/yard", j.String())

	j2, err := jid.NewWithString("", true)
	require.Nil(t, err)
	require.Equal(t, "", j2.String())
}

func TestJID_Kind(t *testing.T) {
	j1, _ := jid.NewWithString("jabberwock.im", false)
	j2, _ := jid.NewWithString("alice@jabberwock.im", false)
	j3, _ := jid.NewWithString("jabberwock.im/yard", false)
	j4, _ := jid.NewWithString("alice@jabberwock.im/yard", false)

	require.True(t, j1.IsServer())
	require.False(t, j2.IsServer())
	require.True(t, j2.IsBare())
	require.True(t, j3.IsServer() && j3.IsFull())
	require.True(t, j3.IsFullWithServer())
	require.True(t, j4.IsFull())
	require.True(t, j4.IsFullWithUser())
	require.True(t, j4.ToBareJID().IsBare())
}

func TestJID_Matches(t *testing.T) {
	j1, _ := jid.NewWithString("alice@jabberwock.im/yard", true)
	j2, _ := jid.NewWithString("alice@jabberwock.im/garden", true)
	j3, _ := jid.NewWithString("bob@jabberwock.im/yard", true)

	require.True(t, j1.Matches(j2, jid.MatchesBare))
	require.False(t, j1.Matches(j2, jid.MatchesFull))
	require.False(t, j1.Matches(j3, jid.MatchesNode))
	require.True(t, j1.Matches(j3, jid.MatchesDomain|jid.MatchesResource))
}

func TestJID_StringPrep(t *testing.T) {
	j, err := jid.NewWithString("ALICE@JABBERWOCK.IM/YARD", false)
	require.Nil(t, err)
	require.Equal(t, "alice", j.Node())
	require.Equal(t, "jabberwock.im", j.Domain())
	require.Equal(t, "YARD", j.Resource())
}

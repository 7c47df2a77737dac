/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/model/rostermodel"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/jabberwock-im/jabberwock/xmpp/jid"
	"github.com/stretchr/testify/require"
)

func TestMySQLUser_Upsert(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO users \(username,password,last_presence,last_presence_at,updated_at,created_at\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	usr := model.User{Username: "alice", Password: "wonderland"}
	j, _ := jid.NewWithString("alice@jabberwock.im/looking-glass", true)
	usr.LastPresence = xmpp.NewPresence(j, j.ToBareJID(), xmpp.UnavailableType)

	err := newUser(db).UpsertUser(context.Background(), &usr)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestMySQLUser_Fetch(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	j, _ := jid.NewWithString("alice@jabberwock.im/looking-glass", true)
	presence := xmpp.NewPresence(j, j.ToBareJID(), xmpp.AvailableType)

	buf := new(bytes.Buffer)
	require.Nil(t, presence.ToBytes(buf))

	cols := []string{"username", "password", "last_presence", "last_presence_at"}
	mock.ExpectQuery(`SELECT username, password, last_presence, last_presence_at FROM users WHERE username = \?`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("alice", "wonderland", buf.Bytes(), time.Now()))

	usr, err := newUser(db).FetchUser(context.Background(), "alice")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.NotNil(t, usr)
	require.Equal(t, "alice", usr.Username)
	require.NotNil(t, usr.LastPresence)
	require.Equal(t, "alice@jabberwock.im/looking-glass", usr.LastPresence.From())
}

func TestMySQLUser_FetchNotFound(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT username, password, last_presence, last_presence_at FROM users WHERE username = \?`).
		WithArgs("hatter").
		WillReturnError(sql.ErrNoRows)

	usr, err := newUser(db).FetchUser(context.Background(), "hatter")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Nil(t, usr)
}

func TestMySQLUser_Exists(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE username = \?`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := newUser(db).UserExists(context.Background(), "alice")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
}

func TestMySQLOffline_InsertAndFetch(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	m := testMessage(t)
	buf := new(bytes.Buffer)
	require.Nil(t, m.ToBytes(buf))

	mock.ExpectExec(`INSERT INTO offline_messages \(username,data,created_at\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT data FROM offline_messages WHERE username = \?`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(buf.Bytes()))

	rep := newOffline(db)
	require.Nil(t, rep.InsertOfflineMessage(context.Background(), m, "alice"))

	messages, err := rep.FetchOfflineMessages(context.Background(), "alice")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "message", messages[0].Name())
}

func TestMySQLOffline_Count(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM offline_messages WHERE username = \?`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := newOffline(db).CountOfflineMessages(context.Background(), "alice")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 3, count)
}

func TestMySQLVCard_UpsertAndFetch(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	vCard := xmpp.NewElementNamespace("vCard", "vcard-temp")
	buf := new(bytes.Buffer)
	require.Nil(t, vCard.ToBytes(buf))

	mock.ExpectExec(`INSERT INTO vcards \(username,vcard,updated_at,created_at\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT vcard FROM vcards WHERE username = \?`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"vcard"}).AddRow(buf.Bytes()))

	rep := newVCard(db)
	require.Nil(t, rep.UpsertVCard(context.Background(), vCard, "alice"))

	el, err := rep.FetchVCard(context.Background(), "alice")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.NotNil(t, el)
	require.Equal(t, "vCard", el.Name())
	require.Equal(t, "vcard-temp", el.Namespace())
}

func TestMySQLRoster_Upsert(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO roster_versions \(username,created_at,updated_at\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO roster_items \(username,jid,name,subscription`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT IFNULL\(MAX\(ver\), 0\), IFNULL\(MAX\(last_deletion_ver\), 0\) FROM roster_versions`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"ver", "last_deletion_ver"}).AddRow(1, 0))

	ri := rostermodel.Item{
		Username:     "alice",
		JID:          "bob@jabberwock.im",
		Name:         "bob",
		Subscription: rostermodel.SubscriptionBoth,
		Groups:       []string{"Friends"},
	}
	ver, err := newRoster(db).UpsertRosterItem(context.Background(), &ri)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, 1, ver.Ver)
}

func TestMySQLRoster_FetchItems(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	cols := []string{"username", "jid", "name", "subscription", "groups", "ask", "ver"}
	mock.ExpectQuery(`SELECT username, jid, name, subscription`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("alice", "bob@jabberwock.im", "bob", "both", "Friends;Work", false, 2))
	mock.ExpectQuery(`SELECT IFNULL\(MAX\(ver\), 0\), IFNULL\(MAX\(last_deletion_ver\), 0\) FROM roster_versions`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"ver", "last_deletion_ver"}).AddRow(2, 0))

	items, ver, err := newRoster(db).FetchRosterItems(context.Background(), "alice")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Len(t, items, 1)
	require.Equal(t, []string{"Friends", "Work"}, items[0].Groups)
	require.Equal(t, 2, ver.Ver)
}

func TestMySQLCapabilities_UpsertAndFetch(t *testing.T) {
	db, mock := newStorageMock(t)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO capabilities \(node,ver,features,updated_at,created_at\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT features FROM capabilities WHERE \(node = \? AND ver = \?\)`).
		WithArgs("http://jabberwock.im", "v1234").
		WillReturnRows(sqlmock.NewRows([]string{"features"}).AddRow(`["urn:xmpp:ping"]`))

	rep := newCapabilities(db)
	caps := model.Capabilities{Node: "http://jabberwock.im", Ver: "v1234", Features: []string{"urn:xmpp:ping"}}
	require.Nil(t, rep.UpsertCapabilities(context.Background(), &caps))

	fetched, err := rep.FetchCapabilities(context.Background(), "http://jabberwock.im", "v1234")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, []string{"urn:xmpp:ping"}, fetched.Features)
}

func newStorageMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.Nil(t, err)
	return db, mock
}

func testMessage(t *testing.T) *xmpp.Message {
	t.Helper()
	j1, _ := jid.NewWithString("bob@jabberwock.im/chamber", true)
	j2, _ := jid.NewWithString("alice@jabberwock.im", true)
	el := xmpp.NewElementName("message")
	el.SetID("m0001")
	el.SetType(xmpp.ChatType)
	el.AppendElement(xmpp.NewElementName("body").SetText("Beware the Jabberwock"))
	m, err := xmpp.NewMessageFromElement(el, j1, j2)
	require.Nil(t, err)
	return m
}

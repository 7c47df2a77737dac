/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"bytes"
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jabberwock-im/jabberwock/pool"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

type mySQLVCard struct {
	*mySQLStorage
	pool *pool.BufferPool
}

func newVCard(db *sql.DB) *mySQLVCard {
	return &mySQLVCard{
		mySQLStorage: newStorage(db),
		pool:         pool.NewBufferPool(),
	}
}

// UpsertVCard inserts a new vCard element into storage, or updates it if previously inserted.
func (v *mySQLVCard) UpsertVCard(ctx context.Context, vCard xmpp.XElement, username string) error {
	buf := v.pool.Get()
	defer v.pool.Put(buf)

	el := xmpp.NewElementFromElement(vCard)
	if err := el.ToBytes(buf); err != nil {
		return err
	}
	blob := make([]byte, buf.Len())
	copy(blob, buf.Bytes())

	q := sq.Insert("vcards").
		Columns("username", "vcard", "updated_at", "created_at").
		Values(username, blob, nowExpr, nowExpr).
		Suffix("ON DUPLICATE KEY UPDATE vcard = ?, updated_at = NOW()", blob)

	_, err := q.RunWith(v.db).ExecContext(ctx)
	return err
}

// FetchVCard retrieves from storage a vCard element associated to a given user.
func (v *mySQLVCard) FetchVCard(ctx context.Context, username string) (xmpp.XElement, error) {
	q := sq.Select("vcard").From("vcards").Where(sq.Eq{"username": username})

	var blob []byte
	err := q.RunWith(v.db).QueryRowContext(ctx).Scan(&blob)
	switch err {
	case nil:
		return xmpp.NewElementFromBytes(bytes.NewBuffer(blob))
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

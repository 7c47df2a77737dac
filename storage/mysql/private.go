/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"

	sq "github.com/Masterminds/squirrel"
	"github.com/jabberwock-im/jabberwock/pool"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

type mySQLPrivate struct {
	*mySQLStorage
	pool *pool.BufferPool
}

func newPrivate(db *sql.DB) *mySQLPrivate {
	return &mySQLPrivate{
		mySQLStorage: newStorage(db),
		pool:         pool.NewBufferPool(),
	}
}

// FetchPrivateXML retrieves from storage a private element.
func (p *mySQLPrivate) FetchPrivateXML(ctx context.Context, namespace string, username string) ([]xmpp.XElement, error) {
	q := sq.Select("data").
		From("private_storage").
		Where(sq.And{sq.Eq{"username": username}, sq.Eq{"namespace": namespace}})

	var blob []byte
	err := q.RunWith(p.db).QueryRowContext(ctx).Scan(&blob)
	switch err {
	case nil:
		return deserializePrivateElements(blob)
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

// UpsertPrivateXML inserts a new private element into storage, or updates it if previously inserted.
func (p *mySQLPrivate) UpsertPrivateXML(ctx context.Context, privateXML []xmpp.XElement, namespace string, username string) error {
	buf := p.pool.Get()
	defer p.pool.Put(buf)

	if err := serializePrivateElements(buf, privateXML); err != nil {
		return err
	}
	blob := make([]byte, buf.Len())
	copy(blob, buf.Bytes())

	q := sq.Insert("private_storage").
		Columns("username", "namespace", "data", "updated_at", "created_at").
		Values(username, namespace, blob, nowExpr, nowExpr).
		Suffix("ON DUPLICATE KEY UPDATE data = ?, updated_at = NOW()", blob)

	_, err := q.RunWith(p.db).ExecContext(ctx)
	return err
}

func serializePrivateElements(buf *bytes.Buffer, elements []xmpp.XElement) error {
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(len(elements)); err != nil {
		return err
	}
	for _, el := range elements {
		if err := xmpp.NewElementFromElement(el).ToBytes(buf); err != nil {
			return err
		}
	}
	return nil
}

func deserializePrivateElements(blob []byte) ([]xmpp.XElement, error) {
	buf := bytes.NewBuffer(blob)
	var ln int
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&ln); err != nil {
		return nil, err
	}
	var elements []xmpp.XElement
	for i := 0; i < ln; i++ {
		el, err := xmpp.NewElementFromBytes(buf)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	return elements, nil
}

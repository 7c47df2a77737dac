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

type mySQLOffline struct {
	*mySQLStorage
	pool *pool.BufferPool
}

func newOffline(db *sql.DB) *mySQLOffline {
	return &mySQLOffline{
		mySQLStorage: newStorage(db),
		pool:         pool.NewBufferPool(),
	}
}

// InsertOfflineMessage inserts a new message element into user's offline queue.
func (o *mySQLOffline) InsertOfflineMessage(ctx context.Context, message *xmpp.Message, username string) error {
	buf := o.pool.Get()
	defer o.pool.Put(buf)

	if err := message.ToBytes(buf); err != nil {
		return err
	}
	q := sq.Insert("offline_messages").
		Columns("username", "data", "created_at").
		Values(username, buf.Bytes(), nowExpr)

	_, err := q.RunWith(o.db).ExecContext(ctx)
	return err
}

// CountOfflineMessages returns current length of user's offline queue.
func (o *mySQLOffline) CountOfflineMessages(ctx context.Context, username string) (int, error) {
	q := sq.Select("COUNT(*)").
		From("offline_messages").
		Where(sq.Eq{"username": username}).
		OrderBy("created_at")

	var count int
	err := q.RunWith(o.db).QueryRowContext(ctx).Scan(&count)
	switch err {
	case nil:
		return count, nil
	default:
		return 0, err
	}
}

// FetchOfflineMessages retrieves from storage current user offline queue.
func (o *mySQLOffline) FetchOfflineMessages(ctx context.Context, username string) ([]xmpp.Message, error) {
	q := sq.Select("data").
		From("offline_messages").
		Where(sq.Eq{"username": username}).
		OrderBy("created_at")

	rows, err := q.RunWith(o.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []xmpp.Message
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		message, err := xmpp.NewMessageFromBytes(bytes.NewBuffer(data))
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}
	return messages, nil
}

// DeleteOfflineMessages clears a user offline queue.
func (o *mySQLOffline) DeleteOfflineMessages(ctx context.Context, username string) error {
	q := sq.Delete("offline_messages").Where(sq.Eq{"username": username})
	_, err := q.RunWith(o.db).ExecContext(ctx)
	return err
}

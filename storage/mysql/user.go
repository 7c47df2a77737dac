/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"bytes"
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jabberwock-im/jabberwock/model"
	"github.com/jabberwock-im/jabberwock/pool"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

type mySQLUser struct {
	*mySQLStorage
	pool *pool.BufferPool
}

func newUser(db *sql.DB) *mySQLUser {
	return &mySQLUser{
		mySQLStorage: newStorage(db),
		pool:         pool.NewBufferPool(),
	}
}

// UpsertUser inserts a new user entity into storage, or updates it if previously inserted.
func (u *mySQLUser) UpsertUser(ctx context.Context, usr *model.User) error {
	var presenceBlob []byte
	if usr.LastPresence != nil {
		buf := u.pool.Get()
		if err := usr.LastPresence.ToBytes(buf); err != nil {
			u.pool.Put(buf)
			return err
		}
		presenceBlob = make([]byte, buf.Len())
		copy(presenceBlob, buf.Bytes())
		u.pool.Put(buf)
	}
	columns := []string{"username", "password", "last_presence", "last_presence_at", "updated_at", "created_at"}
	values := []interface{}{usr.Username, usr.Password, presenceBlob, usr.LastPresenceAt, nowExpr, nowExpr}

	q := sq.Insert("users").
		Columns(columns...).
		Values(values...).
		Suffix("ON DUPLICATE KEY UPDATE password = ?, last_presence = ?, last_presence_at = ?, updated_at = NOW()", usr.Password, presenceBlob, usr.LastPresenceAt)

	_, err := q.RunWith(u.db).ExecContext(ctx)
	return err
}

// DeleteUser deletes a user entity from storage.
func (u *mySQLUser) DeleteUser(ctx context.Context, username string) error {
	return u.inTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		_, err = sq.Delete("offline_messages").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("roster_items").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("roster_versions").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("private_storage").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("vcards").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		if err != nil {
			return err
		}
		_, err = sq.Delete("users").Where(sq.Eq{"username": username}).RunWith(tx).ExecContext(ctx)
		return err
	})
}

// FetchUser retrieves a user entity from storage.
func (u *mySQLUser) FetchUser(ctx context.Context, username string) (*model.User, error) {
	q := sq.Select("username", "password", "last_presence", "last_presence_at").
		From("users").
		Where(sq.Eq{"username": username})

	var usr model.User
	var presenceBlob []byte
	var presenceAt time.Time

	err := q.RunWith(u.db).QueryRowContext(ctx).Scan(&usr.Username, &usr.Password, &presenceBlob, &presenceAt)
	switch err {
	case nil:
		if len(presenceBlob) > 0 {
			presence, err := xmpp.NewPresenceFromBytes(bytes.NewBuffer(presenceBlob))
			if err != nil {
				return nil, err
			}
			usr.LastPresence = presence
			usr.LastPresenceAt = presenceAt
		}
		return &usr, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

// UserExists tells whether or not a user exists within storage.
func (u *mySQLUser) UserExists(ctx context.Context, username string) (bool, error) {
	q := sq.Select("COUNT(*)").From("users").Where(sq.Eq{"username": username})

	var count int
	err := q.RunWith(u.db).QueryRowContext(ctx).Scan(&count)
	switch err {
	case nil:
		return count > 0, nil
	default:
		return false, err
	}
}

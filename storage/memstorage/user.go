/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"bytes"
	"context"

	"github.com/jabberwock-im/jabberwock/model"
)

type memoryUser struct {
	memoryStorage
	users map[string][]byte
}

func (m *memoryUser) UpsertUser(_ context.Context, user *model.User) error {
	return m.inWriteLock(func() error {
		buf := bytes.NewBuffer(nil)
		if err := user.ToBytes(buf); err != nil {
			return err
		}
		m.users[user.Username] = buf.Bytes()
		return nil
	})
}

func (m *memoryUser) DeleteUser(_ context.Context, username string) error {
	return m.inWriteLock(func() error {
		delete(m.users, username)
		return nil
	})
}

func (m *memoryUser) FetchUser(_ context.Context, username string) (*model.User, error) {
	var ret *model.User
	err := m.inReadLock(func() error {
		b := m.users[username]
		if b == nil {
			return nil
		}
		var usr model.User
		if err := usr.FromBytes(bytes.NewBuffer(b)); err != nil {
			return err
		}
		ret = &usr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (m *memoryUser) UserExists(_ context.Context, username string) (bool, error) {
	var ret bool
	err := m.inReadLock(func() error {
		ret = m.users[username] != nil
		return nil
	})
	return ret, err
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"bytes"
	"context"

	"github.com/jabberwock-im/jabberwock/xmpp"
)

type memoryOffline struct {
	memoryStorage
	messages map[string][][]byte
}

func (m *memoryOffline) InsertOfflineMessage(_ context.Context, message *xmpp.Message, username string) error {
	return m.inWriteLock(func() error {
		buf := bytes.NewBuffer(nil)
		elem := xmpp.NewElementFromElement(message)
		if err := elem.ToBytes(buf); err != nil {
			return err
		}
		m.messages[username] = append(m.messages[username], buf.Bytes())
		return nil
	})
}

func (m *memoryOffline) CountOfflineMessages(_ context.Context, username string) (int, error) {
	var ret int
	err := m.inReadLock(func() error {
		ret = len(m.messages[username])
		return nil
	})
	return ret, err
}

func (m *memoryOffline) FetchOfflineMessages(_ context.Context, username string) ([]xmpp.Message, error) {
	var ret []xmpp.Message
	err := m.inReadLock(func() error {
		for _, b := range m.messages[username] {
			msg, err := xmpp.NewMessageFromBytes(bytes.NewBuffer(b))
			if err != nil {
				return err
			}
			ret = append(ret, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (m *memoryOffline) DeleteOfflineMessages(_ context.Context, username string) error {
	return m.inWriteLock(func() error {
		delete(m.messages, username)
		return nil
	})
}

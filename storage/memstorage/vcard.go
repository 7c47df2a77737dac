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

type memoryVCard struct {
	memoryStorage
	vCards map[string][]byte
}

func (m *memoryVCard) UpsertVCard(_ context.Context, vCard xmpp.XElement, username string) error {
	return m.inWriteLock(func() error {
		buf := bytes.NewBuffer(nil)
		elem := xmpp.NewElementFromElement(vCard)
		if err := elem.ToBytes(buf); err != nil {
			return err
		}
		m.vCards[username] = buf.Bytes()
		return nil
	})
}

func (m *memoryVCard) FetchVCard(_ context.Context, username string) (xmpp.XElement, error) {
	var ret xmpp.XElement
	err := m.inReadLock(func() error {
		b := m.vCards[username]
		if b == nil {
			return nil
		}
		elem, err := xmpp.NewElementFromBytes(bytes.NewBuffer(b))
		if err != nil {
			return err
		}
		ret = elem
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

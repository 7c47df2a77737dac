/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/jabberwock-im/jabberwock/xmpp"
)

type memoryPrivate struct {
	memoryStorage
	privateXML map[string][]byte
}

func (m *memoryPrivate) UpsertPrivateXML(_ context.Context, privateXML []xmpp.XElement, namespace string, username string) error {
	return m.inWriteLock(func() error {
		buf := bytes.NewBuffer(nil)
		enc := gob.NewEncoder(buf)
		if err := enc.Encode(len(privateXML)); err != nil {
			return err
		}
		for _, el := range privateXML {
			elem := xmpp.NewElementFromElement(el)
			if err := elem.ToBytes(buf); err != nil {
				return err
			}
		}
		m.privateXML[username+":"+namespace] = buf.Bytes()
		return nil
	})
}

func (m *memoryPrivate) FetchPrivateXML(_ context.Context, namespace string, username string) ([]xmpp.XElement, error) {
	var ret []xmpp.XElement
	err := m.inReadLock(func() error {
		b := m.privateXML[username+":"+namespace]
		if b == nil {
			return nil
		}
		buf := bytes.NewBuffer(b)
		dec := gob.NewDecoder(buf)
		var ln int
		if err := dec.Decode(&ln); err != nil {
			return err
		}
		for i := 0; i < ln; i++ {
			elem, err := xmpp.NewElementFromBytes(buf)
			if err != nil {
				return err
			}
			ret = append(ret, elem)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

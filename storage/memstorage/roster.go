/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"bytes"
	"context"

	"github.com/jabberwock-im/jabberwock/model/rostermodel"
)

type memoryRoster struct {
	memoryStorage
	items    map[string][][]byte
	versions map[string]int
}

func (m *memoryRoster) UpsertRosterItem(_ context.Context, ri *rostermodel.Item) (rostermodel.Version, error) {
	var ver rostermodel.Version
	err := m.inWriteLock(func() error {
		m.versions[ri.Username]++
		ri.Ver = m.versions[ri.Username]
		ver = rostermodel.Version{Ver: ri.Ver}

		buf := bytes.NewBuffer(nil)
		if err := ri.ToBytes(buf); err != nil {
			return err
		}
		items := m.items[ri.Username]
		for i, b := range items {
			it, err := decodeRosterItem(b)
			if err != nil {
				return err
			}
			if it.JID == ri.JID {
				items[i] = buf.Bytes()
				return nil
			}
		}
		m.items[ri.Username] = append(items, buf.Bytes())
		return nil
	})
	return ver, err
}

func (m *memoryRoster) DeleteRosterItem(_ context.Context, username, jid string) (rostermodel.Version, error) {
	var ver rostermodel.Version
	err := m.inWriteLock(func() error {
		m.versions[username]++
		ver = rostermodel.Version{Ver: m.versions[username]}

		items := m.items[username]
		for i, b := range items {
			it, err := decodeRosterItem(b)
			if err != nil {
				return err
			}
			if it.JID == jid {
				m.items[username] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
		return nil
	})
	return ver, err
}

func (m *memoryRoster) FetchRosterItems(_ context.Context, username string) ([]rostermodel.Item, rostermodel.Version, error) {
	var ret []rostermodel.Item
	var ver rostermodel.Version
	err := m.inReadLock(func() error {
		for _, b := range m.items[username] {
			it, err := decodeRosterItem(b)
			if err != nil {
				return err
			}
			ret = append(ret, *it)
		}
		ver = rostermodel.Version{Ver: m.versions[username]}
		return nil
	})
	if err != nil {
		return nil, rostermodel.Version{}, err
	}
	return ret, ver, nil
}

func (m *memoryRoster) FetchRosterItem(_ context.Context, username, jid string) (*rostermodel.Item, error) {
	var ret *rostermodel.Item
	err := m.inReadLock(func() error {
		for _, b := range m.items[username] {
			it, err := decodeRosterItem(b)
			if err != nil {
				return err
			}
			if it.JID == jid {
				ret = it
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func decodeRosterItem(b []byte) (*rostermodel.Item, error) {
	var it rostermodel.Item
	if err := it.FromBytes(bytes.NewBuffer(b)); err != nil {
		return nil, err
	}
	return &it, nil
}

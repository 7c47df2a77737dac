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

type memoryCapabilities struct {
	memoryStorage
	caps map[string][]byte
}

func (m *memoryCapabilities) UpsertCapabilities(_ context.Context, caps *model.Capabilities) error {
	return m.inWriteLock(func() error {
		buf := bytes.NewBuffer(nil)
		if err := caps.ToBytes(buf); err != nil {
			return err
		}
		m.caps[caps.Node+"#"+caps.Ver] = buf.Bytes()
		return nil
	})
}

func (m *memoryCapabilities) FetchCapabilities(_ context.Context, node, ver string) (*model.Capabilities, error) {
	var ret *model.Capabilities
	err := m.inReadLock(func() error {
		b := m.caps[node+"#"+ver]
		if b == nil {
			return nil
		}
		var cs model.Capabilities
		if err := cs.FromBytes(bytes.NewBuffer(b)); err != nil {
			return err
		}
		ret = &cs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

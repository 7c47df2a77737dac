/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jabberwock-im/jabberwock/storage/repository"
)

// ErrMocked will be returned by any repository method
// when mocked error is activated.
var ErrMocked = errors.New("storage mocked error")

// Storage represents an in-memory repository container.
type Storage struct {
	user    *memoryUser
	offline *memoryOffline
	vCard   *memoryVCard
	priv    *memoryPrivate
	roster  *memoryRoster
	caps    *memoryCapabilities
}

// New returns an initialized in-memory repository container.
func New() *Storage {
	return &Storage{
		user:    &memoryUser{users: make(map[string][]byte)},
		offline: &memoryOffline{messages: make(map[string][][]byte)},
		vCard:   &memoryVCard{vCards: make(map[string][]byte)},
		priv:    &memoryPrivate{privateXML: make(map[string][]byte)},
		roster:  &memoryRoster{items: make(map[string][][]byte), versions: make(map[string]int)},
		caps:    &memoryCapabilities{caps: make(map[string][]byte)},
	}
}

// User returns in-memory user repository.
func (s *Storage) User() repository.User { return s.user }

// Offline returns in-memory offline repository.
func (s *Storage) Offline() repository.Offline { return s.offline }

// VCard returns in-memory vCard repository.
func (s *Storage) VCard() repository.VCard { return s.vCard }

// Private returns in-memory private storage repository.
func (s *Storage) Private() repository.Private { return s.priv }

// Roster returns in-memory roster repository.
func (s *Storage) Roster() repository.Roster { return s.roster }

// Capabilities returns in-memory capabilities repository.
func (s *Storage) Capabilities() repository.Capabilities { return s.caps }

// Close releases all underlying resources.
func (s *Storage) Close(_ context.Context) error { return nil }

// EnableMockedError makes all repository methods fail
// returning ErrMocked.
func (s *Storage) EnableMockedError() {
	atomic.StoreUint32(&mockErr, 1)
}

// DisableMockedError disables mocked error failing mode.
func (s *Storage) DisableMockedError() {
	atomic.StoreUint32(&mockErr, 0)
}

var mockErr uint32

type memoryStorage struct {
	mu sync.RWMutex
}

func (m *memoryStorage) inWriteLock(f func() error) error {
	if atomic.LoadUint32(&mockErr) == 1 {
		return ErrMocked
	}
	m.mu.Lock()
	err := f()
	m.mu.Unlock()
	return err
}

func (m *memoryStorage) inReadLock(f func() error) error {
	if atomic.LoadUint32(&mockErr) == 1 {
		return ErrMocked
	}
	m.mu.RLock()
	err := f()
	m.mu.RUnlock()
	return err
}

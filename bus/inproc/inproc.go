/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package inproc

import (
	"context"
	"sync"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/log"
)

// Handler processes a bus message, returning nil when not interested.
type Handler func(ctx context.Context, msg *bus.Message) (*bus.Response, error)

// Bus is an in-process bus implementation backed by a handler registry.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New returns an initialized in-process bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// RegisterHandler registers a handler for a given operation.
func (b *Bus) RegisterHandler(operation string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[operation] = append(b.handlers[operation], h)
}

// Request dispatches a message to the operation handlers, returning the
// first handled response. An unhandled operation is not an error.
func (b *Bus) Request(ctx context.Context, msg *bus.Message) (*bus.Response, error) {
	b.mu.RLock()
	handlers := b.handlers[msg.Operation]
	b.mu.RUnlock()

	for _, h := range handlers {
		resp, err := h(ctx, msg)
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Handled {
			return resp, nil
		}
	}
	return &bus.Response{}, nil
}

// Post dispatches a message to the operation handlers discarding responses.
func (b *Bus) Post(ctx context.Context, msg *bus.Message) error {
	b.mu.RLock()
	handlers := b.handlers[msg.Operation]
	b.mu.RUnlock()

	for _, h := range handlers {
		if _, err := h(ctx, msg); err != nil {
			log.Warnf("inproc: %s handler failed: %v", msg.Operation, err)
		}
	}
	return nil
}

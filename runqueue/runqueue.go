/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package runqueue

import (
	"sync"
	"sync/atomic"

	"github.com/jabberwock-im/jabberwock/log"
)

const (
	idle int32 = iota
	running
)

// RunQueue serializes function execution: functions posted from any
// goroutine run one at a time, in posting order. Scheduling is lazy,
// a drainer goroutine exists only while functions are queued.
type RunQueue struct {
	name         string
	mu           sync.Mutex
	items        []func()
	messageCount int32
	state        int32
	stopped      int32
}

// New returns an initialized run queue.
func New(name string) *RunQueue {
	return &RunQueue{name: name}
}

// Run appends fn to the queue and schedules a drain.
func (m *RunQueue) Run(fn func()) {
	if atomic.LoadInt32(&m.stopped) == 1 {
		return
	}
	m.mu.Lock()
	m.items = append(m.items, fn)
	m.mu.Unlock()
	atomic.AddInt32(&m.messageCount, 1)
	m.schedule()
}

// Stop prevents further executions, running fn right after the last
// queued function finishes.
func (m *RunQueue) Stop(fn func()) {
	m.Run(func() {
		atomic.StoreInt32(&m.stopped, 1)
		if fn != nil {
			fn()
		}
	})
}

func (m *RunQueue) schedule() {
	if atomic.CompareAndSwapInt32(&m.state, idle, running) {
		go m.process()
	}
}

func (m *RunQueue) process() {

process:
	m.run()

	atomic.StoreInt32(&m.state, idle)
	if atomic.LoadInt32(&m.messageCount) > 0 {
		// try setting the queue back to running
		if atomic.CompareAndSwapInt32(&m.state, idle, running) {
			goto process
		}
	}
}

func (m *RunQueue) run() {

	defer func() {
		if err := recover(); err != nil {
			log.Errorf("run queue %s panicked with error: %v", m.name, err)
		}
	}()

	for {
		fn := m.pop()
		if fn == nil {
			return
		}
		// decrement before invoking so a panicking fn cannot leave
		// the scheduler spinning on a stale count
		atomic.AddInt32(&m.messageCount, -1)
		fn()
	}
}

func (m *RunQueue) pop() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil
	}
	fn := m.items[0]
	m.items = m.items[1:]
	return fn
}

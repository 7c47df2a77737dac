/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package pending

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/xmpp"
)

const idleInterval = time.Millisecond * 25

// MessageProcessor applies server rules to a message stanza.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *xmpp.Message)
}

// IQProcessor applies server rules to an iq stanza.
type IQProcessor interface {
	ProcessIQ(ctx context.Context, iq *xmpp.IQ)
}

// PresenceProcessor applies server rules to a presence stanza.
type PresenceProcessor interface {
	ProcessPresence(ctx context.Context, presence *xmpp.Presence)
}

// StreamInfo is a snapshot of the originating stream state captured
// at enqueue time. Jobs never hold a live stream reference.
type StreamInfo struct {
	Name        string
	Kind        stream.Kind
	LocalDomain string
	Flags       stream.Flags

	// ServerTarget tells whether the stanza is addressed to a
	// serviced domain itself.
	ServerTarget bool

	// ServerItemTarget tells whether the stanza is addressed to a
	// registered server item domain.
	ServerItemTarget bool
}

// Job wraps one received stanza along with its originating stream
// snapshot until a worker picks it up.
type Job struct {
	Stanza xmpp.Stanza
	Stream StreamInfo
}

type worker struct {
	index int
	mu    sync.Mutex
	jobs  []Job
}

func (w *worker) push(job Job) {
	w.mu.Lock()
	w.jobs = append(w.jobs, job)
	w.mu.Unlock()
}

func (w *worker) pop() (Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.jobs) == 0 {
		return Job{}, false
	}
	job := w.jobs[0]
	w.jobs = w.jobs[1:]
	return job, true
}

// Pool serializes stanza processing per conversation: every job for a
// given partition key lands on the same worker, whose private queue is
// strictly FIFO. Different conversations spread across workers and run
// in parallel.
type Pool struct {
	message  MessageProcessor
	iq       IQProcessor
	presence PresenceProcessor

	mu      sync.RWMutex
	workers []*worker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an initialized worker pool.
func New(config *Config, message MessageProcessor, iq IQProcessor, presence PresenceProcessor) *Pool {
	workers := config.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Pool{
		message:  message,
		iq:       iq,
		presence: presence,
		workers:  make([]*worker, workers),
	}
}

// Start spawns the pool workers.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.mu.Lock()
	for i := range p.workers {
		w := &worker{index: i}
		p.workers[i] = w
		p.wg.Add(1)
		go p.loop(ctx, w)
	}
	p.mu.Unlock()
	log.Infof("started pending pool (workers: %d)", len(p.workers))
}

// Stop cancels the pool workers and blocks until every worker has
// drained its queue and cleared its slot.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	log.Infof("stopped pending pool")
}

// Enqueue appends a job to the worker owning the stanza's partition
// key. Returns false when the pool has already been stopped.
func (p *Pool) Enqueue(job Job) bool {
	key := partitionKey(job.Stanza, job.Stream.Kind)
	index := int(xxhash.Sum64String(key) % uint64(len(p.workers)))

	// the registry lock only guards the slot lookup, never the
	// queue contents
	p.mu.RLock()
	w := p.workers[index]
	p.mu.RUnlock()

	if w == nil {
		return false
	}
	w.push(job)
	enqueuedJobs.Inc()
	queueDepth.Inc()
	return true
}

func (p *Pool) loop(ctx context.Context, w *worker) {
	defer p.wg.Done()
	for {
		job, ok := w.pop()
		if ok {
			p.process(ctx, job)
			continue
		}
		select {
		case <-ctx.Done():
			p.drain(ctx, w)
			p.clearSlot(w.index)
			return
		case <-time.After(idleInterval):
		}
	}
}

// drain finishes the jobs enqueued before cancellation instead of
// abandoning them.
func (p *Pool) drain(ctx context.Context, w *worker) {
	for {
		job, ok := w.pop()
		if !ok {
			return
		}
		p.process(ctx, job)
	}
}

func (p *Pool) clearSlot(index int) {
	p.mu.Lock()
	p.workers[index] = nil
	p.mu.Unlock()
}

func (p *Pool) process(ctx context.Context, job Job) {
	queueDepth.Dec()
	defer func() {
		// a malformed job must never take its worker down
		if err := recover(); err != nil {
			recoveredPanics.Inc()
			log.Errorf("pending job panicked: %v", err)
		}
	}()
	switch stanza := job.Stanza.(type) {
	case *xmpp.Message:
		p.message.ProcessMessage(ctx, stanza)
		processedJobs.WithLabelValues("message").Inc()
	case *xmpp.IQ:
		p.iq.ProcessIQ(ctx, stanza)
		processedJobs.WithLabelValues("iq").Inc()
	case *xmpp.Presence:
		p.presence.ProcessPresence(ctx, stanza)
		processedJobs.WithLabelValues("presence").Inc()
	default:
		log.Debugf("skipped pending job of type %T", stanza)
	}
}

// partitionKey derives the value hashed to pick a worker. Stanzas
// relayed between servers partition on both endpoint domains so that a
// remote conversation keeps its ordering; everything else partitions
// on the sender identity alone.
func partitionKey(stanza xmpp.Stanza, kind stream.Kind) string {
	if kind == stream.S2SKind {
		return stanza.FromJID().Domain() + " " + stanza.ToJID().Domain()
	}
	return stanza.FromJID().String()
}

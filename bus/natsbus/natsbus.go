/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package natsbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "jabberwock."

// Bus is a NATS request/reply bus implementation. Every operation maps
// to its own subject under a common prefix.
type Bus struct {
	conn           *nats.Conn
	requestTimeout time.Duration
	subs           []*nats.Subscription
}

// New connects to a NATS server and returns the associated bus.
func New(cfg *Config) (*Bus, error) {
	opts := []nats.Option{
		nats.Name("jabberwock"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second * 2),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("natsbus: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Infof("natsbus: reconnected")
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: conn, requestTimeout: cfg.RequestTimeout}, nil
}

// Request publishes a message to the operation subject and waits for a
// reply. A request that times out resolves to an unhandled response.
func (b *Bus) Request(ctx context.Context, msg *bus.Message) (*bus.Response, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}
	reply, err := b.conn.RequestWithContext(reqCtx, subjectPrefix+msg.Operation, data)
	switch err {
	case nil:
		break
	case nats.ErrNoResponders, context.DeadlineExceeded:
		return &bus.Response{}, nil
	default:
		return nil, err
	}
	var resp bus.Response
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Post publishes a message to the operation subject without waiting.
func (b *Bus) Post(_ context.Context, msg *bus.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.conn.Publish(subjectPrefix+msg.Operation, data)
}

// Subscribe answers requests published to an operation subject. It is
// meant for external applications attaching to the engine bus.
func (b *Bus) Subscribe(operation string, h func(ctx context.Context, msg *bus.Message) (*bus.Response, error)) error {
	sub, err := b.conn.QueueSubscribe(subjectPrefix+operation, "jabberwock", func(m *nats.Msg) {
		var msg bus.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Warnf("natsbus: malformed %s request: %v", operation, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.requestTimeout)
		defer cancel()

		resp, err := h(ctx, &msg)
		if err != nil {
			log.Warnf("natsbus: %s handler failed: %v", operation, err)
			return
		}
		if m.Reply == "" {
			return
		}
		if resp == nil {
			resp = &bus.Response{}
		}
		data, err := json.Marshal(resp)
		if err != nil {
			log.Warnf("natsbus: %v", err)
			return
		}
		_ = m.Respond(data)
	})
	if err != nil {
		return err
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Close drains the underlying NATS connection.
func (b *Bus) Close() error {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warnf("natsbus: %v", err)
		}
	}
	return b.conn.Drain()
}

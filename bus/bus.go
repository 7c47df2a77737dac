/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package bus

import (
	"bytes"
	"context"

	"github.com/jabberwock-im/jabberwock/xmpp"
)

// Engine originated operations.
const (
	UserAuth             = "user.auth"
	UserRegister         = "user.register"
	UserNotify           = "user.notify"
	ResourceNotify       = "resource.notify"
	PresenceNotify       = "presence.notify"
	PresenceSubscription = "presence.subscription"
	MsgRoute             = "msg.route"
	MsgOffline           = "msg.offline"
	JabberIQ             = "jabber.iq"
)

// Message is a bus request originated by the engine.
type Message struct {
	Operation string            `json:"operation"`
	Params    map[string]string `json:"params,omitempty"`
	Stanza    []byte            `json:"stanza,omitempty"`
}

// Response is the reply associated to a bus request.
type Response struct {
	Handled bool              `json:"handled"`
	Params  map[string]string `json:"params,omitempty"`
	Element []byte            `json:"element,omitempty"`
}

// Bus defines the engine's application messaging contract.
type Bus interface {
	// Request sends a message and waits for its response.
	Request(ctx context.Context, msg *Message) (*Response, error)

	// Post sends a message without waiting for a response.
	Post(ctx context.Context, msg *Message) error
}

// NewMessage returns a message for a given operation.
func NewMessage(operation string) *Message {
	return &Message{Operation: operation, Params: make(map[string]string)}
}

// SetParam sets a message parameter returning the message reference.
func (m *Message) SetParam(k, v string) *Message {
	if m.Params == nil {
		m.Params = make(map[string]string)
	}
	m.Params[k] = v
	return m
}

// Param returns a message parameter value.
func (m *Message) Param(k string) string {
	return m.Params[k]
}

// SetStanza attaches a stanza payload to the message.
func (m *Message) SetStanza(elem xmpp.XElement) error {
	buf := new(bytes.Buffer)
	if err := xmpp.NewElementFromElement(elem).ToBytes(buf); err != nil {
		return err
	}
	m.Stanza = buf.Bytes()
	return nil
}

// StanzaElement returns the message stanza payload, if attached.
func (m *Message) StanzaElement() (*xmpp.Element, error) {
	if len(m.Stanza) == 0 {
		return nil, nil
	}
	return xmpp.NewElementFromBytes(bytes.NewBuffer(m.Stanza))
}

// Param returns a response parameter value.
func (r *Response) Param(k string) string {
	if r == nil {
		return ""
	}
	return r.Params[k]
}

// SetElement attaches a reply element to the response.
func (r *Response) SetElement(elem xmpp.XElement) error {
	buf := new(bytes.Buffer)
	if err := xmpp.NewElementFromElement(elem).ToBytes(buf); err != nil {
		return err
	}
	r.Element = buf.Bytes()
	return nil
}

// ReplyElement returns the response reply element, if attached.
func (r *Response) ReplyElement() (*xmpp.Element, error) {
	if r == nil || len(r.Element) == 0 {
		return nil, nil
	}
	return xmpp.NewElementFromBytes(bytes.NewBuffer(r.Element))
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"bytes"
	"encoding/gob"

	"github.com/jabberwock-im/jabberwock/xmpp/jid"
)

type elementProxy struct {
	Name     string
	Text     string
	Attrs    []Attribute
	Elements []elementProxy
}

func (e *Element) proxy() elementProxy {
	p := elementProxy{
		Name:  e.name,
		Text:  e.text,
		Attrs: e.attrs,
	}
	for _, el := range e.elements {
		child, ok := el.(*Element)
		if !ok {
			child = NewElementFromElement(el)
		}
		p.Elements = append(p.Elements, child.proxy())
	}
	return p
}

func (e *Element) fromProxy(p elementProxy) {
	e.name = p.Name
	e.text = p.Text
	e.attrs = attributeSet(p.Attrs)
	e.elements = nil
	for _, cp := range p.Elements {
		child := &Element{}
		child.fromProxy(cp)
		e.elements = append(e.elements, child)
	}
}

// ToBytes converts an Element to its gob binary representation.
func (e *Element) ToBytes(buf *bytes.Buffer) error {
	enc := gob.NewEncoder(buf)
	return enc.Encode(e.proxy())
}

// FromBytes deserializes an Element from its gob binary representation.
func (e *Element) FromBytes(buf *bytes.Buffer) error {
	dec := gob.NewDecoder(buf)
	var p elementProxy
	if err := dec.Decode(&p); err != nil {
		return err
	}
	e.fromProxy(p)
	return nil
}

// NewElementFromBytes creates and returns a new Element from its binary representation.
func NewElementFromBytes(buf *bytes.Buffer) (*Element, error) {
	e := &Element{}
	if err := e.FromBytes(buf); err != nil {
		return nil, err
	}
	return e, nil
}

// NewMessageFromBytes creates and returns a new Message from its binary representation.
func NewMessageFromBytes(buf *bytes.Buffer) (*Message, error) {
	e, err := NewElementFromBytes(buf)
	if err != nil {
		return nil, err
	}
	fromJID, toJID, err := stanzaJIDs(e)
	if err != nil {
		return nil, err
	}
	return NewMessageFromElement(e, fromJID, toJID)
}

// NewPresenceFromBytes creates and returns a new Presence from its binary representation.
func NewPresenceFromBytes(buf *bytes.Buffer) (*Presence, error) {
	e, err := NewElementFromBytes(buf)
	if err != nil {
		return nil, err
	}
	fromJID, toJID, err := stanzaJIDs(e)
	if err != nil {
		return nil, err
	}
	return NewPresenceFromElement(e, fromJID, toJID)
}

func stanzaJIDs(e *Element) (*jid.JID, *jid.JID, error) {
	fromJID, err := jid.NewWithString(e.From(), false)
	if err != nil {
		return nil, nil, err
	}
	toJID, err := jid.NewWithString(e.To(), false)
	if err != nil {
		return nil, nil, err
	}
	return fromJID, toJID, nil
}

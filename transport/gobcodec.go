/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package transport

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/pkg/errors"
)

// maxFrameSize is the largest payload a single frame may carry.
const maxFrameSize = 1 << 20

// gobCodec frames stream elements as length prefixed gob records.
// Each frame is self contained and can be decoded independently.
type gobCodec struct {
	rw io.ReadWriter
}

// NewGobCodec returns a gob based element codec bound to rw. Its
// signature matches CodecFactory.
func NewGobCodec(rw io.ReadWriter) Codec {
	return &gobCodec{rw: rw}
}

func (c *gobCodec) Decode() (xmpp.XElement, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c.rw, hdr[:]); err != nil {
		return nil, err
	}
	ln := binary.BigEndian.Uint32(hdr[:])
	if ln == 0 || ln > maxFrameSize {
		return nil, errors.Errorf("invalid frame length: %d", ln)
	}
	payload := make([]byte, ln)
	if _, err := io.ReadFull(c.rw, payload); err != nil {
		return nil, err
	}
	return xmpp.NewElementFromBytes(bytes.NewBuffer(payload))
}

func (c *gobCodec) Encode(elem xmpp.XElement, _ bool) error {
	el, ok := elem.(*xmpp.Element)
	if !ok {
		el = xmpp.NewElementFromElement(elem)
	}
	buf := bytes.NewBuffer(nil)
	if err := el.ToBytes(buf); err != nil {
		return err
	}
	if buf.Len() > maxFrameSize {
		return errors.Errorf("frame too large: %d", buf.Len())
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(buf.Len()))
	if _, err := c.rw.Write(hdr[:]); err != nil {
		return err
	}
	_, err := c.rw.Write(buf.Bytes())
	return err
}

func (c *gobCodec) Reset(rw io.ReadWriter) {
	c.rw = rw
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jabberwock-im/jabberwock/transport"
)

type dialer struct {
	timeout     time.Duration
	keepAlive   time.Duration
	cf          transport.CodecFactory
	srvResolve  func(service, proto, name string) (cname string, addrs []*net.SRV, err error)
	dialTimeout func(network, address string, timeout time.Duration) (net.Conn, error)
}

func newDialer(cfg *Config, cf transport.CodecFactory) *dialer {
	return &dialer{
		timeout:     cfg.DialTimeout,
		keepAlive:   cfg.Transport.KeepAlive,
		cf:          cf,
		srvResolve:  net.LookupSRV,
		dialTimeout: net.DialTimeout,
	}
}

func (d *dialer) dial(remoteDomain string) (transport.Transport, error) {
	address := remoteDomain + ":" + strconv.Itoa(defaultTransportPort)

	_, addrs, err := d.srvResolve("xmpp-server", "tcp", remoteDomain)
	if err == nil && len(addrs) > 0 && addrs[0].Target != "." {
		address = strings.TrimSuffix(addrs[0].Target, ".") + ":" + strconv.Itoa(int(addrs[0].Port))
	}
	conn, err := d.dialTimeout("tcp", address, d.timeout)
	if err != nil {
		return nil, err
	}
	return transport.NewSocketTransport(conn, d.cf, d.keepAlive), nil
}

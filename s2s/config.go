/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import (
	"crypto/tls"
	"time"

	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/xmpp"
	"github.com/pkg/errors"
)

const (
	defaultTransportPort      = 5269
	defaultTransportKeepAlive = time.Duration(600) * time.Second
	defaultDialTimeout        = time.Duration(15) * time.Second
	defaultTimeout            = time.Duration(20) * time.Second
)

// TransportConfig represents an s2s transport configuration.
type TransportConfig struct {
	BindAddress string
	Port        int
	KeepAlive   time.Duration
}

type transportProxy struct {
	BindAddress string `yaml:"bind_addr"`
	Port        int    `yaml:"port"`
	KeepAlive   int    `yaml:"keep_alive"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (t *TransportConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := transportProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	t.BindAddress = p.BindAddress
	t.Port = p.Port
	if t.Port == 0 {
		t.Port = defaultTransportPort
	}
	t.KeepAlive = time.Duration(p.KeepAlive) * time.Second
	if t.KeepAlive == 0 {
		t.KeepAlive = defaultTransportKeepAlive
	}
	return nil
}

// Config represents an s2s configuration.
type Config struct {
	DialbackSecret string
	DialTimeout    time.Duration
	Timeout        time.Duration
	Transport      TransportConfig
}

type configProxy struct {
	DialbackSecret string          `yaml:"dialback_secret"`
	DialTimeout    int             `yaml:"dial_timeout"`
	Timeout        int             `yaml:"timeout"`
	Transport      TransportConfig `yaml:"transport"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.DialbackSecret = p.DialbackSecret
	if len(c.DialbackSecret) == 0 {
		return errors.New("s2s.dialback_secret must be set")
	}
	c.DialTimeout = time.Duration(p.DialTimeout) * time.Second
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	c.Timeout = time.Duration(p.Timeout) * time.Second
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	c.Transport = p.Transport
	if c.Transport.Port == 0 {
		c.Transport.Port = defaultTransportPort
	}
	if c.Transport.KeepAlive == 0 {
		c.Transport.KeepAlive = defaultTransportKeepAlive
	}
	return nil
}

type streamConfig struct {
	keyGen          *keyGen
	localDomain     string
	remoteDomain    string
	timeout         time.Duration
	tls             *tls.Config
	transport       transport.Transport
	dbVerify        xmpp.XElement
	onOutDisconnect func(s stream.S2SOut)
	onInDisconnect  func(s stream.S2SIn)
}

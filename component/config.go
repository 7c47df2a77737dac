/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package component

import (
	"time"

	"github.com/jabberwock-im/jabberwock/stream"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/pkg/errors"
)

const (
	defaultTransportPort      = 5275
	defaultTransportKeepAlive = time.Duration(600) * time.Second
	defaultConnectTimeout     = time.Duration(5) * time.Second
	defaultTimeout            = time.Duration(20) * time.Second
)

// TransportConfig represents a component transport configuration.
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

// Config represents an external component service configuration.
type Config struct {
	Secret         string
	ConnectTimeout time.Duration
	Timeout        time.Duration
	Transport      TransportConfig
}

type configProxy struct {
	Secret         string          `yaml:"secret"`
	ConnectTimeout int             `yaml:"connect_timeout"`
	Timeout        int             `yaml:"timeout"`
	Transport      TransportConfig `yaml:"transport"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	if len(p.Secret) == 0 {
		return errors.New("component.secret must be set")
	}
	c.Secret = p.Secret
	c.ConnectTimeout = time.Duration(p.ConnectTimeout) * time.Second
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
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
	secret         string
	connectTimeout time.Duration
	timeout        time.Duration
	transport      transport.Transport
	onAuthenticate func(stm stream.Component)
	onDisconnect   func(stm stream.Component)
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package natsbus

import (
	"errors"
	"time"
)

const defaultRequestTimeout = time.Second * 5

// Config represents NATS bus configuration.
type Config struct {
	URL            string
	RequestTimeout time.Duration
}

type configProxy struct {
	URL            string `yaml:"url"`
	RequestTimeout int    `yaml:"request_timeout"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	if len(p.URL) == 0 {
		return errors.New("natsbus.Config: must specify a connection url")
	}
	c.URL = p.URL
	c.RequestTimeout = time.Duration(p.RequestTimeout) * time.Second
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

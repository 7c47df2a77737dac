/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package router

// Config represents router configuration.
type Config struct {
	RestrictedPrefixes []string
	Gateway            *GatewayConfig
}

type configProxy struct {
	RestrictedPrefixes []string       `yaml:"restricted_prefixes"`
	Gateway            *GatewayConfig `yaml:"gateway"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.RestrictedPrefixes = p.RestrictedPrefixes
	c.Gateway = p.Gateway
	return nil
}

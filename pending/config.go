/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package pending

import "github.com/pkg/errors"

const (
	defaultWorkers = 4
	maxWorkers     = 10
)

// Config represents the pending pool configuration.
type Config struct {
	Workers int
}

type configProxy struct {
	Workers int `yaml:"workers"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.Workers = p.Workers
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		return errors.Errorf("pending.workers must be in range 1..%d", maxWorkers)
	}
	return nil
}

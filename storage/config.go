/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package storage

import (
	"errors"
	"fmt"
)

const defaultMySQLPoolSize = 16

// Type represents a storage manager type.
type Type int

const (
	// MySQL represents a MySQL storage type.
	MySQL Type = iota

	// Memory represents an in-memory storage type.
	Memory
)

// MySQLDb represents MySQL storage configuration.
type MySQLDb struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	PoolSize int    `yaml:"pool_size"`
}

// Config represents a storage manager configuration.
type Config struct {
	Type  Type
	MySQL *MySQLDb
}

type configProxy struct {
	Type  string   `yaml:"type"`
	MySQL *MySQLDb `yaml:"mysql"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	switch p.Type {
	case "mysql":
		if p.MySQL == nil {
			return errors.New("storage.Config: couldn't read MySQL configuration")
		}
		c.Type = MySQL
		c.MySQL = p.MySQL
		if c.MySQL.PoolSize == 0 {
			c.MySQL.PoolSize = defaultMySQLPoolSize
		}

	case "memory":
		c.Type = Memory

	case "":
		return errors.New("storage.Config: unspecified storage type")

	default:
		return fmt.Errorf("storage.Config: unrecognized storage type: %s", p.Type)
	}
	return nil
}

/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package app

import (
	"bytes"
	"io/ioutil"

	"github.com/jabberwock-im/jabberwock/bus/natsbus"
	"github.com/jabberwock-im/jabberwock/c2s"
	"github.com/jabberwock-im/jabberwock/component"
	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/router"
	"github.com/jabberwock-im/jabberwock/s2s"
	"github.com/jabberwock-im/jabberwock/storage"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// DebugConfig represents debug server configuration.
type DebugConfig struct {
	Port int `yaml:"port"`
}

// BusConfig represents application bus configuration.
type BusConfig struct {
	Type string          `yaml:"type"`
	NATS *natsbus.Config `yaml:"nats"`
}

// Config represents a global server configuration.
type Config struct {
	PIDFile   string            `yaml:"pid_path"`
	Debug     DebugConfig       `yaml:"debug"`
	Logger    log.Config        `yaml:"logger"`
	Hosts     []host.Config     `yaml:"hosts"`
	Storage   storage.Config    `yaml:"storage"`
	Bus       BusConfig         `yaml:"bus"`
	Router    router.Config     `yaml:"router"`
	Pending   pending.Config    `yaml:"pending"`
	C2S       c2s.Config        `yaml:"c2s"`
	S2S       *s2s.Config       `yaml:"s2s"`
	Component *component.Config `yaml:"component"`
}

// FromFile loads a configuration from a YAML file.
func (cfg *Config) FromFile(configFile string) error {
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}
	return cfg.FromBuffer(bytes.NewBuffer(b))
}

// FromBuffer loads a configuration from a YAML buffer.
func (cfg *Config) FromBuffer(buf *bytes.Buffer) error {
	if err := yaml.Unmarshal(buf.Bytes(), cfg); err != nil {
		return err
	}
	switch cfg.Bus.Type {
	case "", "inproc":
	case "nats":
		if cfg.Bus.NATS == nil {
			return errors.New("app.Config: missing nats bus configuration")
		}
	default:
		return errors.Errorf("app.Config: unrecognized bus type: %s", cfg.Bus.Type)
	}
	return nil
}

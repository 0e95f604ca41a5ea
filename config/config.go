/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package config implements time sync settings file.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/examclock/examclock/timesync/requester"
	"github.com/examclock/examclock/timesync/responder/server"
	yaml "gopkg.in/yaml.v2"
)

var errSamePorts = errors.New("request and response ports must differ")

// Config is a set of settings shared by the daemon and the CLI
type Config struct {
	// RoomNumber is sent as a host id in every message
	RoomNumber uint16 `yaml:"roomnumber"`
	// RequestPort responders listen on
	RequestPort int `yaml:"requestport"`
	// ResponsePort requesters listen on
	ResponsePort int `yaml:"responseport"`
	// Timeout to wait for the next response during discovery
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns config with default ports and timeout
func DefaultConfig() *Config {
	return &Config{
		RequestPort:  server.DefaultRequestPort,
		ResponsePort: server.DefaultResponsePort,
		Timeout:      requester.DefaultTimeout,
	}
}

// Validate checks if config is valid
func (c *Config) Validate() error {
	if c.RequestPort < 1 || c.RequestPort > 65535 {
		return fmt.Errorf("invalid request port %d", c.RequestPort)
	}
	if c.ResponsePort < 1 || c.ResponsePort > 65535 {
		return fmt.Errorf("invalid response port %d", c.ResponsePort)
	}
	if c.RequestPort == c.ResponsePort {
		return errSamePorts
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// ReadConfig reads config from the path. Missing keys keep default values
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(cData, c)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Write saves config to the path
func (c *Config) Write(path string) error {
	d, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, d, 0644)
}

// Holder keeps the current config and allows replacing it at runtime
type Holder struct {
	c atomic.Pointer[Config]
}

// NewHolder returns Holder with c as a current config
func NewHolder(c *Config) *Holder {
	h := &Holder{}
	h.Store(c)
	return h
}

// Load returns current config
func (h *Holder) Load() *Config {
	return h.c.Load()
}

// Store replaces current config
func (h *Holder) Store(c *Config) {
	h.c.Store(c)
}

// HostID returns room number from the current config
func (h *Holder) HostID() uint16 {
	return h.Load().RoomNumber
}

// Reload reads config from the path and replaces the current one.
// override, if not nil, is applied to the new config before it's validated and stored.
// Current config stays in place if the file can't be read.
func (h *Holder) Reload(path string, override func(*Config)) error {
	c, err := ReadConfig(path)
	if err != nil {
		return err
	}
	if override != nil {
		override(c)
		if err := c.Validate(); err != nil {
			return err
		}
	}
	h.Store(c)
	return nil
}

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

package server

import (
	"fmt"
	"net"
	"time"
)

const (
	// DefaultRequestPort is a port requests are sent to
	DefaultRequestPort = 25566
	// DefaultResponsePort is a port responses are sent to
	DefaultResponsePort = 25567
)

// Config is a server config structure
type Config struct {
	// ExtraOffset is added to the arrival and send timestamps of every response
	ExtraOffset time.Duration
	// IP to listen on. nil means all addresses
	IP net.IP
	// RequestPort to listen on
	RequestPort int
	// ResponsePort on the requester to send responses to
	ResponsePort int
	// ReuseAddr allows sharing the request port with other responders on the host
	ReuseAddr bool
	// DSCP to mark responses with
	DSCP int
}

// DefaultConfig returns config with default ports
func DefaultConfig() Config {
	return Config{
		RequestPort:  DefaultRequestPort,
		ResponsePort: DefaultResponsePort,
	}
}

// Validate checks if config is valid
func (c *Config) Validate() error {
	if c.RequestPort < 0 || c.RequestPort > 65535 {
		return fmt.Errorf("invalid request port %d", c.RequestPort)
	}
	if c.ResponsePort < 1 || c.ResponsePort > 65535 {
		return fmt.Errorf("invalid response port %d", c.ResponsePort)
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("invalid dscp %d", c.DSCP)
	}
	if c.IP != nil && c.IP.To4() == nil {
		return fmt.Errorf("only IPv4 is supported, got %s", c.IP)
	}
	return nil
}

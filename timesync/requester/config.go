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

package requester

import (
	"fmt"
	"net"
	"time"
)

const (
	// DefaultTimeout is how long to wait for the next response
	DefaultTimeout = time.Second
	// DefaultTTL keeps requests inside the local network segment
	DefaultTTL = 1
)

// Config is a discovery round configuration
type Config struct {
	// HostID is sent with the request
	HostID uint16
	// RequestPort responders listen on
	RequestPort int
	// ResponsePort to receive responses on
	ResponsePort int
	// Timeout to wait for the next response. The round ends when it expires
	Timeout time.Duration
	// Targets to send the request to. Empty means limited broadcast 255.255.255.255
	Targets []net.IP
	// ListenIP to receive responses on. nil means all addresses
	ListenIP net.IP
	// TTL of the request
	TTL int
	// DSCP to mark the request with
	DSCP int
}

// SetDefaults fills in unset fields
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if len(c.Targets) == 0 {
		c.Targets = []net.IP{net.IPv4bcast}
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
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
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.TTL < 1 || c.TTL > 255 {
		return fmt.Errorf("invalid ttl %d", c.TTL)
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("invalid dscp %d", c.DSCP)
	}
	for _, ip := range c.Targets {
		if ip.To4() == nil {
			return fmt.Errorf("only IPv4 targets are supported, got %s", ip)
		}
	}
	return nil
}

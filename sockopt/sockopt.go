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
Package sockopt creates UDP sockets with the options time sync needs.
*/
package sockopt

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/examclock/examclock/timestamp"
	"golang.org/x/sys/unix"
)

// Options are socket level options applied before bind
type Options struct {
	// Broadcast allows sending to broadcast addresses
	Broadcast bool
	// ReuseAddr allows several sockets to bind the same port.
	// All of them must set it, so a port held by a plain socket still fails to bind.
	ReuseAddr bool
	// RXTimestamps enables kernel software receive timestamps
	RXTimestamps bool
	// DSCP to mark outgoing packets with. 0 leaves the default
	DSCP int
}

// control returns net.ListenConfig Control function applying options
func (o Options) control(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = o.apply(int(fd))
	})
	if err != nil {
		return err
	}
	return sockErr
}

func (o Options) apply(fd int) error {
	if o.Broadcast {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
			return fmt.Errorf("failed to set SO_BROADCAST: %w", err)
		}
	}
	if o.ReuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
		}
	}
	if o.RXTimestamps {
		if err := timestamp.EnableSWTimestampsRx(fd); err != nil {
			return fmt.Errorf("failed to enable RX timestamps: %w", err)
		}
	}
	if o.DSCP != 0 {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, o.DSCP<<2); err != nil {
			return fmt.Errorf("failed to set DSCP %d: %w", o.DSCP, err)
		}
	}
	return nil
}

// ListenUDP binds UDP socket to ip:port with given options.
// nil ip means all addresses.
func ListenUDP(ctx context.Context, ip net.IP, port int, o Options) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: o.control}
	addr := &net.UDPAddr{IP: ip, Port: port}
	conn, err := lc.ListenPacket(ctx, "udp4", addr.String())
	if err != nil {
		return nil, err
	}
	return conn.(*net.UDPConn), nil
}

// ConnFd returns file descriptor of a connection
func ConnFd(conn *net.UDPConn) (int, error) {
	sc, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var intfd int
	err = sc.Control(func(fd uintptr) {
		intfd = int(fd)
	})
	if err != nil {
		return -1, err
	}
	return intfd, nil
}

// Broadcast reports whether SO_BROADCAST is enabled on the connection
func Broadcast(conn *net.UDPConn) (bool, error) {
	fd, err := ConnFd(conn)
	if err != nil {
		return false, err
	}
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DSCP returns DSCP value set on the connection
func DSCP(conn *net.UDPConn) (int, error) {
	fd, err := ConnFd(conn)
	if err != nil {
		return 0, err
	}
	tos, err := unix.GetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS)
	if err != nil {
		return 0, err
	}
	return tos >> 2, nil
}

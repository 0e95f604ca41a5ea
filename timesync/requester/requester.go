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
Package requester implements a single time sync discovery round:
broadcast a request, collect responses until none arrives within the timeout,
and turn each of them into a TimeKeeper.
*/
package requester

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/examclock/examclock/sockopt"
	"github.com/examclock/examclock/timestamp"
	"github.com/examclock/examclock/timesync/keeper"
	"github.com/examclock/examclock/timesync/protocol"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// maxPacketSizeBytes is enough for any valid message plus some garbage
const maxPacketSizeBytes = 1024

var (
	// ErrBind is returned when the response port can't be bound
	ErrBind = errors.New("failed to bind response port")
	// ErrSend is returned when the request can't be sent
	ErrSend = errors.New("failed to send request")
)

// packetReader is the part of net.UDPConn used to receive responses
type packetReader interface {
	timestamp.PacketReader
	SetReadDeadline(t time.Time) error
}

// Discover runs a discovery round and returns TimeKeepers of all peers which responded.
// It blocks for at least c.Timeout. No peers is not an error.
// If ctx is cancelled, TimeKeepers collected so far are returned along with ctx error.
func Discover(ctx context.Context, c Config) ([]*keeper.TimeKeeper, error) {
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	// listen before sending so no early response is lost
	conn, err := sockopt.ListenUDP(ctx, c.ListenIP, c.ResponsePort, sockopt.Options{
		Broadcast:    true,
		RXTimestamps: true,
		DSCP:         c.DSCP,
	})
	if err != nil {
		return nil, fmt.Errorf("%w %d: %w", ErrBind, c.ResponsePort, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := ipv4.NewPacketConn(conn).SetTTL(c.TTL); err != nil {
		log.Warningf("Failed to set TTL %d: %v", c.TTL, err)
	}

	t1 := time.Now()
	request := protocol.Encode(protocol.NewRequest(c.HostID, t1))
	for _, ip := range c.Targets {
		to := &net.UDPAddr{IP: ip, Port: c.RequestPort}
		log.Debugf("Sending request to %s", to)
		if _, err := conn.WriteToUDP(request, to); err != nil {
			return nil, fmt.Errorf("%w to %s: %w", ErrSend, to, err)
		}
	}

	keepers, err := collect(ctx, conn, t1, c.Timeout)
	log.Infof("Discovery finished, %d peer(s) found", len(keepers))
	return keepers, err
}

// collect reads responses to the request sent at t1.
// Every valid response restarts the timeout, anything else is dropped without touching it.
func collect(ctx context.Context, conn packetReader, t1 time.Time, timeout time.Duration) ([]*keeper.TimeKeeper, error) {
	sent := protocol.Truncate(t1)
	seen := make(map[string]bool)
	keepers := []*keeper.TimeKeeper{}
	buf := make([]byte, maxPacketSizeBytes)
	oob := make([]byte, timestamp.ControlSizeBytes)

	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			if ctx.Err() != nil {
				return keepers, ctx.Err()
			}
			return keepers, fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, addr, t4, err := timestamp.ReadPacketWithRXTimestamp(conn, buf, oob)
		if err != nil {
			if ctx.Err() != nil {
				return keepers, ctx.Err()
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				log.Debugf("No response within %v, finishing", timeout)
				return keepers, nil
			}
			return keepers, fmt.Errorf("failed to read response: %w", err)
		}

		response, err := protocol.Decode(buf[:n])
		if err != nil {
			log.Debugf("Invalid datagram from %s, discarding: %v", addr, err)
			continue
		}
		if response.Kind != protocol.KindResponse {
			log.Debugf("Unexpected %s from %s, discarding", response.Kind, addr)
			continue
		}
		echoed := response.Timestamps[0]
		if !echoed.Equal(sent) {
			log.Debugf("Stale response from %s to request sent at %v, discarding", addr, echoed)
			continue
		}
		// responders sharing a port on one host have the same source address,
		// only a byte-identical copy is a duplicate
		key := addr.String() + "|" + string(buf[:n])
		if seen[key] {
			log.Debugf("Duplicate response from %s, discarding", addr)
			continue
		}
		seen[key] = true

		k := keeper.NewFromExchange(echoed, response.Timestamps[1], response.Timestamps[2], t4, addr.IP, response.HostID)
		log.Debugf("Response from %s: %+v, offset %v, round trip %v", addr, response, k.Offset(), k.RoundTrip())
		keepers = append(keepers, k)
		deadline = time.Now().Add(timeout)
	}
}

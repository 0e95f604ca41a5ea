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
Package keeper implements TimeKeeper, a clock estimate of a remote peer.
TimeKeeper remembers the peer time observed during a sync exchange and keeps
extrapolating it using the local monotonic clock, so the estimate stays
correct without new network exchanges even if the local wall clock is stepped.
*/
package keeper

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/examclock/examclock/timesync/protocol"
)

// TimeKeeper keeps a running time estimate of a peer
type TimeKeeper struct {
	// Addr is the address the reply came from
	Addr net.IP
	// HostID is the identifier reported by the peer (exam room number)
	HostID uint16

	mu     sync.RWMutex
	origin time.Time
	// anchor carries a monotonic clock reading taken together with origin
	anchor time.Time

	offset    time.Duration
	roundTrip time.Duration
}

// New returns TimeKeeper whose current time is now+offset
func New(offset time.Duration, addr net.IP, hostID uint16) *TimeKeeper {
	now := time.Now()
	k := &TimeKeeper{
		Addr:   addr,
		HostID: hostID,
		offset: offset,
	}
	k.set(now.Round(0).Add(offset), now)
	return k
}

// NewFromExchange returns TimeKeeper built from a single request/response exchange.
// t1 - local send time, t2 - peer arrival time, t3 - peer send time, t4 - local arrival time.
func NewFromExchange(t1, t2, t3, t4 time.Time, addr net.IP, hostID uint16) *TimeKeeper {
	k := New(protocol.Offset(t1, t2, t3, t4), addr, hostID)
	k.roundTrip = protocol.RoundTrip(t1, t2, t3, t4)
	return k
}

func (k *TimeKeeper) set(origin, anchor time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.origin = origin
	k.anchor = anchor
}

// SetTime re-anchors the keeper: current time becomes t and keeps running from there
func (k *TimeKeeper) SetTime(t time.Time) {
	k.set(t.Round(0), time.Now())
}

// Now returns current estimate of the peer time
func (k *TimeKeeper) Now() time.Time {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.origin.Add(time.Since(k.anchor))
}

// Offset returns peer clock offset relative to the local clock, as measured on creation
func (k *TimeKeeper) Offset() time.Duration {
	return k.offset
}

// RoundTrip returns network delay of the exchange the keeper was built from.
// Zero if it was not built from an exchange.
func (k *TimeKeeper) RoundTrip() time.Duration {
	return k.roundTrip
}

// Name returns human readable name of the peer
func (k *TimeKeeper) Name() string {
	return fmt.Sprintf("room %04d", k.HostID)
}

func (k *TimeKeeper) String() string {
	return fmt.Sprintf("%s (%s) offset %v", k.Name(), k.Addr, k.offset)
}

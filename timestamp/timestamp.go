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
Package timestamp reads UDP datagrams together with kernel software receive timestamps.
They are taken when the packet enters the network stack, so scheduling delays of the
reader don't end up in the measured arrival time.
*/
package timestamp

import (
	"net"
	"time"
)

// ControlSizeBytes is a socket control message buffer size.
// If the read fails we may endup with multiple timestamps in the buffer
const ControlSizeBytes = 128

// PacketReader is the part of net.UDPConn needed to read control messages
type PacketReader interface {
	ReadMsgUDP(b, oob []byte) (n, oobn, flags int, addr *net.UDPAddr, err error)
}

// ReadPacketWithRXTimestamp reads a datagram into buf and returns number of bytes read,
// sender address and kernel RX timestamp.
// Current time is returned as a timestamp if the kernel didn't provide one.
// oob buffer can be reused after the call.
func ReadPacketWithRXTimestamp(conn PacketReader, buf, oob []byte) (int, *net.UDPAddr, time.Time, error) {
	n, oobn, _, addr, err := conn.ReadMsgUDP(buf, oob)
	now := time.Now()
	if err != nil {
		return 0, nil, time.Time{}, err
	}
	ts, err := socketControlMessageTimestamp(oob[:oobn])
	if err != nil {
		return n, addr, now, nil
	}
	return n, addr, ts, nil
}

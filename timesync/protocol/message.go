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
Package protocol implements the exam clock time sync message and basic
functions to work with it.
It provides bit-exact translation between the wire format and a simply
accessible struct.

	 0       4       5       7                              7+9N
	+-------+-------+-------+-------------------------------+
	| ECTC  | flags | host  | N x 9 byte timestamps         |
	+-------+-------+-------+-------------------------------+

	flags:
	 7 6 5 4 3 2 1 0
	+-+-+-+-+-+-+-+-+
	|   |sum|U|R|1 1|
	+-+-+-+-+-+-+-+-+
	R   - 1 for response, 0 for request
	U   - timestamps are UTC
	sum - checksum, sum of bytes from offset 5 modulo 4

All multi-byte integers are little-endian.
*/
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Signature is the fixed prefix of every message
var Signature = [4]byte{0x45, 0x43, 0x54, 0x43}

const (
	// RequestSizeBytes is the size of a request, which is also the minimum message size
	RequestSizeBytes = headerSizeBytes + TimestampSizeBytes
	// ResponseSizeBytes is the size of a response
	ResponseSizeBytes = headerSizeBytes + 3*TimestampSizeBytes

	// signature, flags and host id
	headerSizeBytes = 7
	// checksum covers everything after the flags byte
	checksumStart = 5
)

const (
	flagMarker    uint8 = 0b0000_0011
	flagResponse  uint8 = 0b0000_0100
	flagUTC       uint8 = 0b0000_1000
	flagChecksum  uint8 = 0b0011_0000
	checksumShift uint8 = 4
)

// Errors returned by Decode. Each is wrapped with details, use errors.Is.
var (
	ErrShortMessage        = errors.New("message too short")
	ErrBadSignature        = errors.New("bad signature")
	ErrBadMarker           = errors.New("protocol marker bits not set")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrTruncatedTimestamps = errors.New("truncated timestamp block")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
)

// Kind is a message kind
type Kind uint8

// Message kinds
const (
	KindRequest Kind = iota
	KindResponse
)

// timestamps returns the number of timestamps carried by the kind
func (k Kind) timestamps() int {
	if k == KindResponse {
		return 3
	}
	return 1
}

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Message is a time sync request or response.
// Request carries T1 (client send time).
// Response carries T1 echoed from the request, T2 (server arrival time)
// and T3 (server send time), in this order.
type Message struct {
	Kind       Kind
	HostID     uint16
	Timestamps []time.Time
}

// NewRequest returns a request sent at t1
func NewRequest(hostID uint16, t1 time.Time) *Message {
	return &Message{Kind: KindRequest, HostID: hostID, Timestamps: []time.Time{t1}}
}

// NewResponse returns a response to a request sent at t1, received at t2 and answered at t3
func NewResponse(hostID uint16, t1, t2, t3 time.Time) *Message {
	return &Message{Kind: KindResponse, HostID: hostID, Timestamps: []time.Time{t1, t2, t3}}
}

// checksum is a sum of all bytes modulo 4
func checksum(b []byte) uint8 {
	var sum uint8
	for _, v := range b {
		sum += v
	}
	return sum & 0b11
}

// Encode converts Message to bytes.
// It panics if the number of timestamps does not match the message kind.
func Encode(m *Message) []byte {
	if len(m.Timestamps) != m.Kind.timestamps() {
		panic(fmt.Sprintf("protocol: %s needs %d timestamps, got %d", m.Kind, m.Kind.timestamps(), len(m.Timestamps)))
	}
	b := make([]byte, headerSizeBytes, headerSizeBytes+len(m.Timestamps)*TimestampSizeBytes)
	copy(b, Signature[:])
	binary.LittleEndian.PutUint16(b[checksumStart:], m.HostID)
	for _, t := range m.Timestamps {
		b = appendTimestamp(b, t)
	}

	flags := flagMarker | flagUTC
	if m.Kind == KindResponse {
		flags |= flagResponse
	}
	flags |= checksum(b[checksumStart:]) << checksumShift
	b[4] = flags
	return b
}

// Decode parses bytes into Message
func Decode(b []byte) (*Message, error) {
	if len(b) < RequestSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrShortMessage, len(b), RequestSizeBytes)
	}
	if !bytes.Equal(b[:len(Signature)], Signature[:]) {
		return nil, fmt.Errorf("%w: % x", ErrBadSignature, b[:len(Signature)])
	}
	flags := b[4]
	if flags&flagMarker != flagMarker {
		return nil, fmt.Errorf("%w: flags %08b", ErrBadMarker, flags)
	}

	kind := KindRequest
	if flags&flagResponse != 0 {
		kind = KindResponse
	}
	end := headerSizeBytes + kind.timestamps()*TimestampSizeBytes
	if len(b) < end {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncatedTimestamps, kind, end, len(b))
	}
	want := (flags & flagChecksum) >> checksumShift
	if got := checksum(b[checksumStart:end]); got != want {
		return nil, fmt.Errorf("%w: computed %d, flags carry %d", ErrChecksumMismatch, got, want)
	}

	m := &Message{
		Kind:       kind,
		HostID:     binary.LittleEndian.Uint16(b[checksumStart:]),
		Timestamps: make([]time.Time, 0, kind.timestamps()),
	}
	for off := headerSizeBytes; off < end; off += TimestampSizeBytes {
		t, err := decodeTimestamp(b[off : off+TimestampSizeBytes])
		if err != nil {
			return nil, fmt.Errorf("timestamp at offset %d: %w", off, err)
		}
		m.Timestamps = append(m.Timestamps, t)
	}
	return m, nil
}

// MarshalBinary converts Message to bytes
func (m *Message) MarshalBinary() ([]byte, error) {
	if len(m.Timestamps) != m.Kind.timestamps() {
		return nil, fmt.Errorf("%s needs %d timestamps, got %d", m.Kind, m.Kind.timestamps(), len(m.Timestamps))
	}
	return Encode(m), nil
}

// UnmarshalBinary parses bytes into Message
func (m *Message) UnmarshalBinary(b []byte) error {
	decoded, err := Decode(b)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

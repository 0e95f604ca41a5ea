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

package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// TimestampSizeBytes is the size of a single encoded timestamp
const TimestampSizeBytes = 9

// Timestamp layout:
//
//	0    2     3   4    5      6      7           9
//	+----+-----+---+----+------+------+-----------+
//	|year|month|day|hour|minute|second|millisecond|
//	+----+-----+---+----+------+------+-----------+

// appendTimestamp appends UTC representation of t with millisecond resolution
func appendTimestamp(b []byte, t time.Time) []byte {
	t = t.UTC()
	b = binary.LittleEndian.AppendUint16(b, uint16(t.Year()))
	b = append(b,
		uint8(t.Month()),
		uint8(t.Day()),
		uint8(t.Hour()),
		uint8(t.Minute()),
		uint8(t.Second()),
	)
	return binary.LittleEndian.AppendUint16(b, uint16(t.Nanosecond()/int(time.Millisecond)))
}

// decodeTimestamp parses 9 bytes into UTC time.
// Unlike time.Date it refuses to normalize out of range values.
func decodeTimestamp(b []byte) (time.Time, error) {
	year := int(binary.LittleEndian.Uint16(b[0:]))
	month := time.Month(b[2])
	day := int(b[3])
	hour := int(b[4])
	minute := int(b[5])
	second := int(b[6])
	msec := int(binary.LittleEndian.Uint16(b[7:]))

	if year < 1 || month < time.January || month > time.December ||
		day < 1 || hour > 23 || minute > 59 || second > 59 || msec > 999 {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d:%02d.%03d", ErrInvalidTimestamp, year, month, day, hour, minute, second, msec)
	}
	t := time.Date(year, month, day, hour, minute, second, msec*int(time.Millisecond), time.UTC)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: day %d out of range for %04d-%02d", ErrInvalidTimestamp, day, year, month)
	}
	return t, nil
}

// Truncate drops everything below the wire resolution, returning UTC time
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

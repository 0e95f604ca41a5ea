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
	"time"
)

// Offset uses the two-way time transfer formula to calculate the offset of
// the server clock relative to the client clock.
// t1 - client send time, t2 - server arrival time,
// t3 - server send time, t4 - client arrival time.
func Offset(t1, t2, t3, t4 time.Time) time.Duration {
	forwardPath := t2.Sub(t1)
	returnPath := t3.Sub(t4)
	return (forwardPath + returnPath) / 2
}

// RoundTrip returns time spent on the network, excluding server processing time
func RoundTrip(t1, t2, t3, t4 time.Time) time.Duration {
	return t4.Sub(t1) - t3.Sub(t2)
}

// CurrentRealTime returns server time estimate given local time and offset
func CurrentRealTime(local time.Time, offset time.Duration) time.Time {
	return local.Add(offset)
}

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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOffset(t *testing.T) {
	t1 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(300 * time.Millisecond)
	t3 := t1.Add(310 * time.Millisecond)
	t4 := t1.Add(600 * time.Millisecond)

	require.Equal(t, 5*time.Millisecond, Offset(t1, t2, t3, t4))
	require.Equal(t, 590*time.Millisecond, RoundTrip(t1, t2, t3, t4))
}

func TestOffsetNegative(t *testing.T) {
	t1 := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	// server is 2s behind, 10ms each way
	t2 := t1.Add(10*time.Millisecond - 2*time.Second)
	t3 := t2
	t4 := t1.Add(20 * time.Millisecond)

	require.Equal(t, -2*time.Second, Offset(t1, t2, t3, t4))
	require.Equal(t, 20*time.Millisecond, RoundTrip(t1, t2, t3, t4))
}

func TestCurrentRealTime(t *testing.T) {
	now := time.Now()
	require.Equal(t, now.Add(5*time.Millisecond), CurrentRealTime(now, 5*time.Millisecond))
}

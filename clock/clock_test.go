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

package clock

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/examclock/examclock/timesync/keeper"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeClock struct {
	steps   []time.Duration
	sets    []time.Time
	syncs   int
	err     error
	syncErr error
}

func (c *fakeClock) Step(step time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.steps = append(c.steps, step)
	return nil
}

func (c *fakeClock) Set(t time.Time) error {
	if c.err != nil {
		return c.err
	}
	c.sets = append(c.sets, t)
	return nil
}

func (c *fakeClock) SetSync() error {
	c.syncs++
	return c.syncErr
}

func TestStepTimex(t *testing.T) {
	tests := []struct {
		step time.Duration
		sec  int64
		nsec int64
	}{
		{0, 0, 0},
		{1500 * time.Millisecond, 1, 500000000},
		{-1500 * time.Millisecond, -2, 500000000},
		{-time.Second, -1, 0},
		{-5 * time.Millisecond, -1, 995000000},
		{time.Hour, 3600, 0},
	}
	for _, tt := range tests {
		t.Run(tt.step.String(), func(t *testing.T) {
			tx := stepTimex(tt.step)
			require.Equal(t, AdjSetOffset|AdjNano, tx.Modes)
			require.Equal(t, tt.sec, int64(tx.Time.Sec))
			require.Equal(t, tt.nsec, int64(tx.Time.Usec))
		})
	}
}

func TestAdoptStep(t *testing.T) {
	c := &fakeClock{}
	k := keeper.New(time.Hour, net.ParseIP("10.0.0.2"), 101)

	step, err := Adopt(c, k, false)
	require.NoError(t, err)
	require.InDelta(t, time.Hour, step, float64(50*time.Millisecond))
	require.Equal(t, []time.Duration{step}, c.steps)
	require.Empty(t, c.sets)
	require.Equal(t, 1, c.syncs)
}

func TestAdoptSet(t *testing.T) {
	c := &fakeClock{}
	k := keeper.New(-time.Minute, net.ParseIP("10.0.0.2"), 101)

	step, err := Adopt(c, k, true)
	require.NoError(t, err)
	require.InDelta(t, -time.Minute, step, float64(50*time.Millisecond))
	require.Empty(t, c.steps)
	require.Len(t, c.sets, 1)
	require.InDelta(t, 0, time.Until(c.sets[0].Add(time.Minute)), float64(50*time.Millisecond))
}

func TestAdoptError(t *testing.T) {
	c := &fakeClock{err: unix.EPERM}
	k := keeper.New(time.Second, net.ParseIP("10.0.0.2"), 101)

	_, err := Adopt(c, k, false)
	require.ErrorIs(t, err, unix.EPERM)
	require.Equal(t, 0, c.syncs)
}

func TestAdoptSyncErrorIgnored(t *testing.T) {
	c := &fakeClock{syncErr: errors.New("nope")}
	k := keeper.New(time.Second, net.ParseIP("10.0.0.2"), 101)

	_, err := Adopt(c, k, false)
	require.NoError(t, err)
	require.Len(t, c.steps, 1)
}

func TestDryRunClock(t *testing.T) {
	c := &DryRunClock{}
	require.NoError(t, c.Step(time.Second))
	require.NoError(t, c.Set(time.Now()))
	require.NoError(t, c.SetSync())
}

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
	"time"

	"github.com/examclock/examclock/timesync/keeper"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Clock is the iface for system clock controls
type Clock interface {
	Step(step time.Duration) error
	Set(t time.Time) error
	SetSync() error
}

// SysClock groups methods for interacting with system clock
type SysClock struct{}

// Step jumps system time by step
func (c *SysClock) Step(step time.Duration) error {
	state, err := Step(unix.CLOCK_REALTIME, step)
	if err == nil && state != unix.TIME_OK {
		log.Warningf("clock state %d is not TIME_OK after stepping", state)
	}
	return err
}

// Set sets system time
func (c *SysClock) Set(t time.Time) error {
	return Set(unix.CLOCK_REALTIME, t)
}

// SetSync sets system clock status to TIME_OK
func (c *SysClock) SetSync() error {
	return SetSync(unix.CLOCK_REALTIME)
}

// DryRunClock only logs what would be done
type DryRunClock struct{}

// Step logs the step
func (c *DryRunClock) Step(step time.Duration) error {
	log.Infof("Would step clock by %v", step)
	return nil
}

// Set logs the time
func (c *DryRunClock) Set(t time.Time) error {
	log.Infof("Would set clock to %v", t)
	return nil
}

// SetSync does nothing
func (c *DryRunClock) SetSync() error {
	return nil
}

// Adopt applies time of the TimeKeeper to the clock and returns the applied step.
// With absolute set the clock is set to the keeper time, otherwise it is stepped by the difference.
func Adopt(c Clock, k *keeper.TimeKeeper, absolute bool) (time.Duration, error) {
	target := k.Now()
	step := target.Sub(time.Now())
	log.Infof("Adopting time of %s, step %v", k, step)

	var err error
	if absolute {
		err = c.Set(target)
	} else {
		err = c.Step(step)
	}
	if err != nil {
		return 0, err
	}

	if err := c.SetSync(); err != nil {
		log.Warningf("Failed to mark clock as synchronized: %v", err)
	}
	return step, nil
}

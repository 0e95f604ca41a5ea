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

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/examclock/examclock/config"
	"github.com/examclock/examclock/timesync/responder/checker"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigNoFile(t *testing.T) {
	fc := config.DefaultConfig()
	fc.RoomNumber = 12
	c, err := loadConfig("", fc, flagOverrides(fc, nil))
	require.NoError(t, err)
	require.Equal(t, fc, c)

	fc.RequestPort = 0
	_, err = loadConfig("", fc, flagOverrides(fc, nil))
	require.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roomnumber: 33\nrequestport: 30000\n"), 0644))

	c, err := loadConfig(path, config.DefaultConfig(), flagOverrides(config.DefaultConfig(), nil))
	require.NoError(t, err)
	require.Equal(t, uint16(33), c.RoomNumber)
	require.Equal(t, 30000, c.RequestPort)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roomnumber: 1\n"), 0644))
	holder := config.NewHolder(config.DefaultConfig())

	reload(holder, "", flagOverrides(config.DefaultConfig(), nil))
	require.Equal(t, uint16(0), holder.HostID())

	reload(holder, path, flagOverrides(config.DefaultConfig(), nil))
	require.Equal(t, uint16(1), holder.HostID())

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0644))
	reload(holder, path, flagOverrides(config.DefaultConfig(), nil))
	require.Equal(t, uint16(1), holder.HostID())
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roomnumber: 33\nrequestport: 30000\n"), 0644))
	fc := config.DefaultConfig()
	fc.RoomNumber = 12
	fc.RequestPort = 31000

	c, err := loadConfig(path, fc, flagOverrides(fc, map[string]bool{"room": true}))
	require.NoError(t, err)
	require.Equal(t, uint16(12), c.RoomNumber)
	require.Equal(t, 30000, c.RequestPort)
}

func TestReloadKeepsFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roomnumber: 33\n"), 0644))
	fc := config.DefaultConfig()
	fc.RoomNumber = 12
	override := flagOverrides(fc, map[string]bool{"room": true})

	c, err := loadConfig(path, fc, override)
	require.NoError(t, err)
	holder := config.NewHolder(c)
	require.Equal(t, uint16(12), holder.HostID())

	require.NoError(t, os.WriteFile(path, []byte("roomnumber: 44\nresponseport: 30001\n"), 0644))
	reload(holder, path, override)
	require.Equal(t, uint16(12), holder.HostID())
	require.Equal(t, 30001, holder.Load().ResponsePort)
}

func TestRunChecker(t *testing.T) {
	ch := &checker.SimpleChecker{ExpectedListeners: 1}
	err := runChecker(context.Background(), ch, time.Millisecond)
	require.ErrorIs(t, err, errCheckFailed)

	ch.IncListeners()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, runChecker(ctx, ch, time.Millisecond))
}

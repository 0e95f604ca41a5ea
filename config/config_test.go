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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "timesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.Equal(t, 25566, c.RequestPort)
	require.Equal(t, 25567, c.ResponsePort)
	require.Equal(t, time.Second, c.Timeout)
	require.Equal(t, uint16(0), c.RoomNumber)
	require.NoError(t, c.Validate())
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	c.RequestPort = 0
	require.Error(t, c.Validate())

	c = DefaultConfig()
	c.ResponsePort = 70000
	require.Error(t, c.Validate())

	c = DefaultConfig()
	c.ResponsePort = c.RequestPort
	require.ErrorIs(t, c.Validate(), errSamePorts)

	c = DefaultConfig()
	c.Timeout = 0
	require.Error(t, c.Validate())
}

func TestReadConfigOk(t *testing.T) {
	expected := &Config{
		RoomNumber:   1234,
		RequestPort:  30000,
		ResponsePort: 30001,
		Timeout:      1500 * time.Millisecond,
	}

	c, err := ReadConfig("")
	require.Error(t, err)
	require.Nil(t, c)

	config := `roomnumber: 1234
requestport: 30000
responseport: 30001
timeout: "1.5s"
`
	c, err = ReadConfig(writeFile(t, config))
	require.NoError(t, err)
	require.Equal(t, expected, c)
}

func TestReadConfigDefaults(t *testing.T) {
	c, err := ReadConfig(writeFile(t, "roomnumber: 7\n"))
	require.NoError(t, err)
	expected := DefaultConfig()
	expected.RoomNumber = 7
	require.Equal(t, expected, c)
}

func TestReadConfigInvalid(t *testing.T) {
	c, err := ReadConfig(writeFile(t, "requestport: 25566\nresponseport: 25566\n"))
	require.ErrorIs(t, err, errSamePorts)
	require.Nil(t, c)
}

func TestReadConfigDamaged(t *testing.T) {
	c, err := ReadConfig(writeFile(t, "Random stuff"))
	require.Error(t, err)
	require.Nil(t, c)

	c, err = ReadConfig(writeFile(t, "roomnumber: 70000\n"))
	require.Error(t, err)
	require.Nil(t, c)
}

func TestWriteConfig(t *testing.T) {
	expected := `roomnumber: 101
requestport: 25566
responseport: 25567
timeout: 1s
`
	c := DefaultConfig()
	c.RoomNumber = 101

	path := filepath.Join(t.TempDir(), "timesync.yaml")
	require.NoError(t, c.Write(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, expected, string(content))

	read, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, c, read)
}

func TestHolder(t *testing.T) {
	c := DefaultConfig()
	c.RoomNumber = 101
	h := NewHolder(c)
	require.Equal(t, uint16(101), h.HostID())
	require.Equal(t, c, h.Load())

	path := writeFile(t, "roomnumber: 202\n")
	require.NoError(t, h.Reload(path, nil))
	require.Equal(t, uint16(202), h.HostID())

	// broken file keeps previous config
	require.NoError(t, os.WriteFile(path, []byte("requestport: 0\n"), 0644))
	require.Error(t, h.Reload(path, nil))
	require.Equal(t, uint16(202), h.HostID())
}

func TestHolderReloadOverride(t *testing.T) {
	h := NewHolder(DefaultConfig())
	path := writeFile(t, "roomnumber: 202\nrequestport: 30000\n")

	require.NoError(t, h.Reload(path, func(c *Config) { c.RoomNumber = 5 }))
	require.Equal(t, uint16(5), h.HostID())
	require.Equal(t, 30000, h.Load().RequestPort)

	// override producing invalid config keeps previous one
	err := h.Reload(path, func(c *Config) { c.ResponsePort = c.RequestPort })
	require.ErrorIs(t, err, errSamePorts)
	require.Equal(t, uint16(5), h.HostID())
}

func TestHolderConcurrent(t *testing.T) {
	h := NewHolder(DefaultConfig())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			c := DefaultConfig()
			c.RoomNumber = uint16(i)
			h.Store(c)
		}
	}()
	for i := 0; i < 1000; i++ {
		require.Less(t, h.HostID(), uint16(1000))
	}
	<-done
	require.Equal(t, uint16(999), h.HostID())
}

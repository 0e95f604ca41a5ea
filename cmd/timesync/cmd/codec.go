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

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/examclock/examclock/timesync/protocol"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	encodeResponseFlag bool
	encodeTimesFlag    []string
)

func init() {
	RootCmd.AddCommand(encodeCmd)
	RootCmd.AddCommand(decodeCmd)
	encodeCmd.Flags().BoolVar(&encodeResponseFlag, "response", false, "encode a response instead of a request")
	encodeCmd.Flags().StringSliceVar(&encodeTimesFlag, "time", nil, "RFC3339 timestamps to encode. Default: now")
}

// buildMessage creates a message from RFC3339 timestamps. Missing ones are filled with now
func buildMessage(response bool, room uint16, times []string) (*protocol.Message, error) {
	want := 1
	if response {
		want = 3
	}
	if len(times) > want {
		return nil, fmt.Errorf("expected at most %d timestamps, got %d", want, len(times))
	}
	ts := make([]time.Time, want)
	now := time.Now()
	for i := range ts {
		ts[i] = now
		if i < len(times) {
			t, err := time.Parse(time.RFC3339Nano, times[i])
			if err != nil {
				return nil, fmt.Errorf("parsing timestamp %d: %w", i+1, err)
			}
			ts[i] = t
		}
	}
	if response {
		return protocol.NewResponse(room, ts[0], ts[1], ts[2]), nil
	}
	return protocol.NewRequest(room, ts[0]), nil
}

func encodeRun(w io.Writer, response bool, room uint16, times []string) error {
	m, err := buildMessage(response, room, times)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, hex.EncodeToString(protocol.Encode(m)))
	return nil
}

func decodeRun(w io.Writer, input string) error {
	b, err := hex.DecodeString(strings.Join(strings.Fields(input), ""))
	if err != nil {
		return fmt.Errorf("parsing hex: %w", err)
	}
	m, err := protocol.Decode(b)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "kind: %s\n", m.Kind)
	fmt.Fprintf(w, "room: %04d\n", m.HostID)
	for i, t := range m.Timestamps {
		fmt.Fprintf(w, "T%d: %s\n", i+1, t.Format(time.RFC3339Nano))
	}
	return nil
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print hex encoded time sync message",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := encodeRun(os.Stdout, encodeResponseFlag, roomFlag, encodeTimesFlag); err != nil {
			log.Fatal(err)
		}
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode hex encoded time sync message",
	Args:  cobra.MinimumNArgs(1),
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := decodeRun(os.Stdout, strings.Join(args, "")); err != nil {
			log.Fatal(err)
		}
	},
}

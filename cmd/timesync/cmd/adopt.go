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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/examclock/examclock/clock"
	"github.com/examclock/examclock/timesync/keeper"
	"github.com/examclock/examclock/timesync/requester"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	errNoPeers      = errors.New("no peers responded")
	errPeerNotFound = errors.New("no response from requested room")
)

var (
	adoptHostFlag     int
	adoptDryRunFlag   bool
	adoptAbsoluteFlag bool
)

func init() {
	RootCmd.AddCommand(adoptCmd)
	adoptCmd.Flags().IntVarP(&adoptHostFlag, "host", "H", -1, "room number to take time from. Default: lowest room number which responded")
	adoptCmd.Flags().BoolVarP(&adoptDryRunFlag, "dry-run", "n", false, "only print what would be done")
	adoptCmd.Flags().BoolVar(&adoptAbsoluteFlag, "absolute", false, "set the clock instead of stepping it")
}

// pickKeeper selects the keeper of the given room, or the lowest room if host is negative
func pickKeeper(keepers []*keeper.TimeKeeper, host int) (*keeper.TimeKeeper, error) {
	if len(keepers) == 0 {
		return nil, errNoPeers
	}
	sortKeepers(keepers)
	if host < 0 {
		return keepers[0], nil
	}
	for _, k := range keepers {
		if int(k.HostID) == host {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w %04d", errPeerNotFound, host)
}

func adoptRun(ctx context.Context, w io.Writer, cfg requester.Config, c clock.Clock, host int, absolute bool) error {
	keepers, err := requester.Discover(ctx, cfg)
	if err != nil {
		return err
	}
	k, err := pickKeeper(keepers, host)
	if err != nil {
		return err
	}
	step, err := clock.Adopt(c, k, absolute)
	if err != nil {
		return fmt.Errorf("adopting time of %s: %w", k, err)
	}
	fmt.Fprintf(w, "%s: clock step %v\n", k.Name(), step)
	return nil
}

var adoptCmd = &cobra.Command{
	Use:   "adopt",
	Short: "Discover peers and set the system clock to the time of one of them",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		if adoptHostFlag > 65535 {
			log.Fatalf("invalid room number %d", adoptHostFlag)
		}
		cfg, err := discoveryConfig(c.Flags())
		if err != nil {
			log.Fatal(err)
		}
		var sys clock.Clock = &clock.SysClock{}
		if adoptDryRunFlag {
			sys = &clock.DryRunClock{}
		}
		ctx, cancel := interruptible()
		defer cancel()
		if err := adoptRun(ctx, os.Stdout, cfg, sys, adoptHostFlag, adoptAbsoluteFlag); err != nil {
			log.Fatal(err)
		}
	},
}

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
	"io"
	"os"

	"github.com/examclock/examclock/timesync/requester"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(discoverCmd)
}

func discoverRun(ctx context.Context, w io.Writer, cfg requester.Config) error {
	keepers, err := requester.Discover(ctx, cfg)
	printKeepers(w, keepers)
	return err
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Broadcast a time request and print all peers which responded",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()

		cfg, err := discoveryConfig(c.Flags())
		if err != nil {
			log.Fatal(err)
		}
		ctx, cancel := interruptible()
		defer cancel()
		if err := discoverRun(ctx, os.Stdout, cfg); err != nil {
			log.Fatal(err)
		}
	},
}

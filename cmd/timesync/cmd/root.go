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
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/examclock/examclock/config"
	"github.com/examclock/examclock/timesync/requester"
	"github.com/examclock/examclock/timesync/responder/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

// RootCmd is a main entry point. It's exported so timesync could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "timesync",
	Short: "Find exam room clocks on the local network and sync with them",
}

var (
	verbose          bool
	configFlag       string
	roomFlag         uint16
	requestPortFlag  int
	responsePortFlag int
	timeoutFlag      time.Duration
	targetsFlag      []net.IP
	listenFlag       net.IP
	dscpFlag         int
)

func init() {
	pf := RootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&configFlag, "config", "c", "", "path to a yaml config file")
	pf.Uint16VarP(&roomFlag, "room", "r", 0, "room number to send in requests")
	pf.IntVar(&requestPortFlag, "requestport", server.DefaultRequestPort, "port responders listen on")
	pf.IntVar(&responsePortFlag, "responseport", server.DefaultResponsePort, "port to receive responses on")
	pf.DurationVarP(&timeoutFlag, "timeout", "t", requester.DefaultTimeout, "how long to wait for the next response")
	pf.IPSliceVar(&targetsFlag, "target", nil, "address to send requests to. Repeat for multiple. Default: 255.255.255.255")
	pf.IPVar(&listenFlag, "listen", nil, "address to receive responses on. Default: all")
	pf.IntVar(&dscpFlag, "dscp", 0, "DSCP to mark requests with")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// discoveryConfig builds discovery round config from the config file and flags.
// Flags set explicitly take precedence over the file.
func discoveryConfig(flags *pflag.FlagSet) (requester.Config, error) {
	c := config.DefaultConfig()
	if configFlag != "" {
		var err error
		if c, err = config.ReadConfig(configFlag); err != nil {
			return requester.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	if flags.Changed("room") {
		c.RoomNumber = roomFlag
	}
	if flags.Changed("requestport") {
		c.RequestPort = requestPortFlag
	}
	if flags.Changed("responseport") {
		c.ResponsePort = responsePortFlag
	}
	if flags.Changed("timeout") {
		c.Timeout = timeoutFlag
	}
	if err := c.Validate(); err != nil {
		return requester.Config{}, err
	}

	rc := requester.Config{
		HostID:       c.RoomNumber,
		RequestPort:  c.RequestPort,
		ResponsePort: c.ResponsePort,
		Timeout:      c.Timeout,
		Targets:      targetsFlag,
		ListenIP:     listenFlag,
		DSCP:         dscpFlag,
	}
	rc.SetDefaults()
	return rc, rc.Validate()
}

// interruptible returns context cancelled on interrupt
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
}

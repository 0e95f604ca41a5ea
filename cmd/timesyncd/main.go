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
	"errors"
	"flag"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/examclock/examclock/config"
	"github.com/examclock/examclock/timesync/responder/checker"
	"github.com/examclock/examclock/timesync/responder/server"
	"github.com/examclock/examclock/timesync/responder/stats"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	syscall "golang.org/x/sys/unix"
)

const pprofHTTP = "localhost:6060"

var errCheckFailed = errors.New("health check failed")

func main() {
	var (
		debugger       bool
		logLevel       string
		configFile     string
		ip             string
		monitoringPort int
		checkInterval  time.Duration
		flagConfig     = config.DefaultConfig()
		s              = server.Server{}
	)

	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flag.StringVar(&configFile, "config", "", "Path to a yaml config file. Reloaded on SIGHUP")
	flag.StringVar(&ip, "ip", "0.0.0.0", "IP to listen to")
	flag.IntVar(&flagConfig.RequestPort, "requestport", flagConfig.RequestPort, "Port to receive requests on")
	flag.IntVar(&flagConfig.ResponsePort, "responseport", flagConfig.ResponsePort, "Port to send responses to")
	flag.Func("room", "Room number to send in responses", func(v string) error {
		n, err := strconv.ParseUint(v, 10, 16)
		flagConfig.RoomNumber = uint16(n)
		return err
	})
	flag.IntVar(&monitoringPort, "monitoringport", 0, "Port to run monitoring server on. 0 disables it")
	flag.DurationVar(&checkInterval, "checkinterval", 10*time.Second, "How often to run health checks")
	flag.DurationVar(&s.Config.ExtraOffset, "extraoffset", 0, "Extra offset to return to clients")
	flag.BoolVar(&s.Config.ReuseAddr, "reuseaddr", false, "Allow other processes to bind the request port")
	flag.IntVar(&s.Config.DSCP, "dscp", 0, "DSCP to mark responses with")
	flag.BoolVar(&debugger, "pprof", false, "Enable pprof")

	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("Unrecognized log level: %v", logLevel)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := flagOverrides(flagConfig, set)

	c, err := loadConfig(configFile, flagConfig, override)
	if err != nil {
		log.Fatalf("Config is invalid: %v", err)
	}
	holder := config.NewHolder(c)

	s.Config.IP = net.ParseIP(ip)
	s.Config.RequestPort = c.RequestPort
	s.Config.ResponsePort = c.ResponsePort
	if err := s.Config.Validate(); err != nil {
		log.Fatalf("Config is invalid: %v", err)
	}
	log.Infof("Serving as room %04d", holder.HostID())

	if debugger {
		log.Warningf("Staring profiler on %s", pprofHTTP)
		go func() {
			log.Println(http.ListenAndServe(pprofHTTP, nil))
		}()
	}

	st := &stats.JSONStats{}
	ch := &checker.SimpleChecker{ExpectedListeners: 1}
	s.Stats = st
	s.Checker = ch
	s.HostID = holder.HostID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if monitoringPort != 0 {
		eg.Go(func() error {
			return st.Start(ctx, monitoringPort)
		})
	}

	if err := s.Start(ctx); err != nil {
		log.Fatalf("Failed to start responder: %v", err)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warningf("Failed to notify systemd: %v", err)
	}

	eg.Go(func() error {
		return runChecker(ctx, ch, checkInterval)
	})

	eg.Go(func() error {
		<-ctx.Done()
		s.Stop()
		s.Wait()
		return nil
	})

	// Handle signals for graceful shutdown and config reload
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP)
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case sig := <-sigs:
				if sig != syscall.SIGHUP {
					log.Warning("Graceful shutdown")
					cancel()
					return nil
				}
				reload(holder, configFile, override)
			}
		}
	})

	if err := eg.Wait(); err != nil {
		log.Fatalf("Internal error shutdown: %v", err)
	}
}

// flagOverrides returns a function which copies values of the explicitly set flags into a config
func flagOverrides(flagConfig *config.Config, set map[string]bool) func(*config.Config) {
	return func(c *config.Config) {
		if set["room"] {
			c.RoomNumber = flagConfig.RoomNumber
		}
		if set["requestport"] {
			c.RequestPort = flagConfig.RequestPort
		}
		if set["responseport"] {
			c.ResponsePort = flagConfig.ResponsePort
		}
	}
}

// loadConfig reads the config file if there is one.
// Flags set explicitly on the command line override values from the file.
func loadConfig(path string, flagConfig *config.Config, override func(*config.Config)) (*config.Config, error) {
	if path == "" {
		return flagConfig, flagConfig.Validate()
	}
	c, err := config.ReadConfig(path)
	if err != nil {
		return nil, err
	}
	override(c)
	return c, c.Validate()
}

// reload re-reads the config file, keeping explicitly set flags on top of it.
// Only room number is applied at runtime
func reload(holder *config.Holder, path string, override func(*config.Config)) {
	if path == "" {
		log.Warning("No config file to reload")
		return
	}
	old := holder.Load()
	if err := holder.Reload(path, override); err != nil {
		log.Errorf("Failed to reload config, keeping the old one: %v", err)
		return
	}
	c := holder.Load()
	if c.RequestPort != old.RequestPort || c.ResponsePort != old.ResponsePort {
		log.Warning("Port changes require a restart")
	}
	log.Infof("Config reloaded, serving as room %04d", c.RoomNumber)
}

// runChecker periodically checks responder health until ctx is done
func runChecker(ctx context.Context, ch *checker.SimpleChecker, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := ch.Check(); err != nil {
				return errors.Join(errCheckFailed, err)
			}
		}
	}
}

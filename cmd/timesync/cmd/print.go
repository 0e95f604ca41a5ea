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
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/eclesh/welford"
	"github.com/examclock/examclock/timesync/keeper"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

const (
	offsetWarnThreshold = 100 * time.Millisecond
	offsetFailThreshold = time.Second
	timeLayout          = "2006-01-02 15:04:05.000"
)

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// sortKeepers orders keepers by room number, then by address
func sortKeepers(keepers []*keeper.TimeKeeper) {
	sort.SliceStable(keepers, func(i, j int) bool {
		if keepers[i].HostID != keepers[j].HostID {
			return keepers[i].HostID < keepers[j].HostID
		}
		return keepers[i].Addr.String() < keepers[j].Addr.String()
	})
}

func fmtOffset(offset time.Duration) string {
	switch a := abs(offset); {
	case a > offsetFailThreshold:
		return color.RedString("%v", offset)
	case a > offsetWarnThreshold:
		return color.YellowString("%v", offset)
	}
	return color.GreenString("%v", offset)
}

// offsetStats returns mean and standard deviation of peer offsets
func offsetStats(keepers []*keeper.TimeKeeper) (mean, stddev time.Duration) {
	s := welford.New()
	for _, k := range keepers {
		s.Add(float64(k.Offset()))
	}
	return time.Duration(s.Mean()), time.Duration(s.Stddev())
}

// printKeepers prints a table of peers followed by offset summary
func printKeepers(w io.Writer, keepers []*keeper.TimeKeeper) {
	if len(keepers) == 0 {
		fmt.Fprintln(w, "No peers responded")
		return
	}
	sortKeepers(keepers)

	table := tablewriter.NewWriter(w)
	table.Header("room", "address", "time", "offset", "round trip")
	for _, k := range keepers {
		_ = table.Append([]string{
			fmt.Sprintf("%04d", k.HostID),
			k.Addr.String(),
			k.Now().Local().Format(timeLayout),
			fmtOffset(k.Offset()),
			k.RoundTrip().String(),
		})
	}
	_ = table.Render()

	mean, stddev := offsetStats(keepers)
	fmt.Fprintf(w, "%d peer(s), mean offset %v, stddev %v\n", len(keepers), mean, stddev)
}

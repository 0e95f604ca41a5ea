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

package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "timesync"
	subsystem = "responder"
)

// PrometheusExporter exposes JSONStats counters in Prometheus format
type PrometheusExporter struct {
	registry   *prometheus.Registry
	collectors map[string]prometheus.Collector
}

// NewPrometheusExporter creates a new instance of PrometheusExporter reading from stats
func NewPrometheusExporter(stats *JSONStats) *PrometheusExporter {
	e := &PrometheusExporter{
		registry:   prometheus.NewRegistry(),
		collectors: make(map[string]prometheus.Collector),
	}
	counter := func(name, key, help string) {
		e.register(key, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(stats.toMap()[key]) }))
	}
	counter("requests_total", "requests", "Valid requests received")
	counter("responses_total", "responses", "Responses sent")
	counter("invalid_format_total", "invalidformat", "Datagrams discarded as malformed or unexpected")
	counter("read_errors_total", "readError", "Socket read errors")
	counter("send_errors_total", "sendError", "Failed attempts to send a response")

	e.register("listeners", prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "listeners",
		Help:      "Running listeners",
	}, func() float64 { return float64(stats.toMap()["listeners"]) }))
	return e
}

func (e *PrometheusExporter) register(key string, c prometheus.Collector) {
	e.registry.MustRegister(c)
	e.collectors[key] = c
}

// Handler returns http handler serving the metrics
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
}

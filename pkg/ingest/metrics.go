/*
Copyright 2025 The Leclerc Authors.

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

package ingest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

const ingestSubsystem = "ingest"

var (
	pagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leclerc",
			Subsystem: ingestSubsystem,
			Name:      "pages_total",
			Help:      "Number of result pages ingested (from start of process)",
		})

	spansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leclerc",
			Subsystem: ingestSubsystem,
			Name:      "spans_total",
			Help:      "Number of span documents written to the graph store",
		})

	errorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leclerc",
			Subsystem: ingestSubsystem,
			Name:      "errors_total",
			Help:      "Number of documents that failed to decode or write",
		})
)

func init() {
	prometheus.MustRegister(pagesTotal)
	prometheus.MustRegister(spansTotal)
	prometheus.MustRegister(errorsTotal)
}

// StartMetricsServer exposes /metrics on the given address for the
// lifetime of the process.
func StartMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		klog.V(0).Infof("Serving metrics on %v", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			klog.Errorf("Metrics server failed: %v", err)
		}
	}()
}

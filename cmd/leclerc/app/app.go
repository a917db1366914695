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

package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"k8s.io/klog/v2"

	"github.com/giovanniberti/leclerc/cmd/leclerc/app/options"
	"github.com/giovanniberti/leclerc/pkg/analyze"
	"github.com/giovanniberti/leclerc/pkg/elastic"
	"github.com/giovanniberti/leclerc/pkg/graph"
	"github.com/giovanniberti/leclerc/pkg/ingest"
	"github.com/giovanniberti/leclerc/pkg/scan"
)

// openKeepAlive is the keep-alive the point in time is opened with;
// every search refreshes it with the scan keep-alive.
const openKeepAlive = time.Minute

// App runs one regression analysis: ingest both intervals into the
// graph store (unless analyzing an existing database), walk the span
// tree, print the report.
type App struct {
	options *options.Options
}

func New(config *options.Options) *App {
	return &App{options: config}
}

func (a *App) Run(ctx context.Context) error {
	if a.options.MetricsAddr != "" {
		ingest.StartMetricsServer(a.options.MetricsAddr)
	}

	store, err := graph.OpenKuzu(a.options.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if a.options.Offline() {
		klog.V(0).Infof("Analyzing existing database %v, skipping ingestion", a.options.DatabasePath)
	} else if err := a.ingest(ctx, store); err != nil {
		return err
	}

	analyzer := analyze.New(store, a.options.BaselineWindow, a.options.MutantWindow, a.options.Threshold)
	results, err := analyzer.Analyze(ctx, []string{a.options.SpanName})
	if err != nil {
		return err
	}

	return analyze.WriteReport(os.Stdout, results)
}

func (a *App) ingest(ctx context.Context, store graph.Store) error {
	baselineClient, mutantClient, err := a.clients()
	if err != nil {
		return err
	}

	if err := baselineClient.Ping(ctx); err != nil {
		return err
	}
	if mutantClient != baselineClient {
		if err := mutantClient.Ping(ctx); err != nil {
			return err
		}
	}

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}

	baselineQuery := elastic.NewQuery(a.options.BaselineWindow.Start, a.options.BaselineWindow.End, a.options.ServiceName)
	if err := a.ingestPass(ctx, "baseline", baselineClient, store, baselineQuery); err != nil {
		return err
	}

	mutantQuery := elastic.NewQuery(a.options.MutantWindow.Start, a.options.MutantWindow.End, a.options.ServiceName)
	return a.ingestPass(ctx, "mutant", mutantClient, store, mutantQuery)
}

// clients returns the baseline and mutant trace source clients. With a
// single --elastic both sides share one client.
func (a *App) clients() (*elastic.Client, *elastic.Client, error) {
	if a.options.Elastic != "" {
		client, err := elastic.NewClient(a.options.Elastic)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}

	baseline, err := elastic.NewClient(a.options.BaselineElastic)
	if err != nil {
		return nil, nil, err
	}
	mutant, err := elastic.NewClient(a.options.MutantElastic)
	if err != nil {
		return nil, nil, err
	}
	return baseline, mutant, nil
}

// ingestPass scans one interval and funnels its pages into the graph
// store. The point in time is closed on every exit path; close errors
// after a successful pass are advisory.
func (a *App) ingestPass(ctx context.Context, side string, client *elastic.Client, store graph.Store, query *elastic.Query) error {
	klog.V(0).Infof("Ingesting %s interval from %v", side, client.URL())

	pit, err := client.OpenPointInTime(ctx, a.options.IndexPattern, openKeepAlive)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.ClosePointInTime(context.Background(), pit); err != nil {
			klog.Warningf("Closing point in time for %s interval: %v", side, err)
		}
	}()

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordinator := scan.NewCoordinator(client, scan.DefaultOptions())
	stream, err := coordinator.Scan(scanCtx, query, pit)
	if err != nil {
		return fmt.Errorf("scanning %s interval: %v", side, err)
	}

	ingestor := ingest.NewIngestor(store, a.options.IngestWorkers)
	if err := ingestor.Run(ctx, stream.Pages()); err != nil {
		// Unblock the remaining scanners before reporting.
		cancel()
		for range stream.Pages() {
		}
		return fmt.Errorf("ingesting %s interval: %v", side, err)
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("scanning %s interval: %v", side, err)
	}

	klog.V(0).Infof("Finished ingesting %s interval", side)
	return nil
}

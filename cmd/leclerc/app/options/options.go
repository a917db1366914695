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

package options

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/giovanniberti/leclerc/pkg/analyze"
	"github.com/giovanniberti/leclerc/pkg/elastic"
	"github.com/giovanniberti/leclerc/pkg/ingest"
)

const DefaultDatabasePath = "./kuzu-db"

// Options is populated from command line flags. Validate resolves the
// raw flag values into the typed fields the app consumes.
type Options struct {
	// Exactly one source form must be used: a single backend for both
	// intervals, a backend per interval, or an already-populated
	// database with no backend at all.
	Elastic         string
	BaselineElastic string
	MutantElastic   string
	Database        string

	IndexPattern string
	ServiceName  string
	SpanName     string

	BaselineStart    string
	BaselineEnd      string
	BaselineDuration string
	MutantStart      string
	MutantEnd        string
	MutantDuration   string
	// Duration supplies a default for both sides when their specific
	// end/duration flags are absent.
	Duration string

	Threshold     float64
	IngestWorkers int
	MetricsAddr   string

	// Resolved by Validate.
	BaselineWindow analyze.Window
	MutantWindow   analyze.Window
	DatabasePath   string
}

// NewOptions creates a new options struct with default values.
func NewOptions() *Options {
	return &Options{
		IndexPattern:  elastic.DefaultIndexPattern,
		Threshold:     analyze.DefaultThreshold,
		IngestWorkers: ingest.DefaultWorkers,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Elastic, "elastic", o.Elastic,
		"URL of the trace backend holding both intervals")
	fs.StringVar(&o.BaselineElastic, "baseline-elastic", o.BaselineElastic,
		"URL of the trace backend holding the baseline interval")
	fs.StringVar(&o.MutantElastic, "mutant-elastic", o.MutantElastic,
		"URL of the trace backend holding the mutant interval")
	fs.StringVar(&o.Database, "database", o.Database,
		"Path to an already-populated graph database; skips ingestion")
	fs.StringVar(&o.IndexPattern, "index-pattern", o.IndexPattern,
		"Index pattern to scan for trace documents")
	fs.StringVar(&o.ServiceName, "service-name", o.ServiceName,
		"Restrict ingestion to documents of this service")
	fs.StringVar(&o.SpanName, "span-name", o.SpanName,
		"Name of the span rooting the analysis tree (required)")
	fs.StringVar(&o.BaselineStart, "baseline-start", o.BaselineStart,
		"Start of the baseline interval (RFC 3339)")
	fs.StringVar(&o.BaselineEnd, "baseline-end", o.BaselineEnd,
		"End of the baseline interval (RFC 3339)")
	fs.StringVar(&o.BaselineDuration, "baseline-duration", o.BaselineDuration,
		"Length of the baseline interval, e.g. 15m")
	fs.StringVar(&o.MutantStart, "mutant-start", o.MutantStart,
		"Start of the mutant interval (RFC 3339)")
	fs.StringVar(&o.MutantEnd, "mutant-end", o.MutantEnd,
		"End of the mutant interval (RFC 3339)")
	fs.StringVar(&o.MutantDuration, "mutant-duration", o.MutantDuration,
		"Length of the mutant interval, e.g. 15m")
	fs.StringVar(&o.Duration, "duration", o.Duration,
		"Default interval length for both sides, e.g. 15m")
	fs.Float64Var(&o.Threshold, "threshold", o.Threshold,
		"Minimum |rank-biserial correlation| at which two samples differ")
	fs.IntVar(&o.IngestWorkers, "ingest-workers", o.IngestWorkers,
		"Number of concurrent graph-store writers")
	fs.StringVar(&o.MetricsAddr, "metrics-addr", o.MetricsAddr,
		"Address to serve Prometheus metrics on; empty disables the listener")
}

// Validate checks flag consistency and resolves the analysis windows.
// It is called before any I/O.
func (o *Options) Validate() error {
	if err := o.validateSource(); err != nil {
		return err
	}

	if o.SpanName == "" {
		return fmt.Errorf("--span-name is required")
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("--threshold must be in [0, 1], got %v", o.Threshold)
	}

	var err error
	o.BaselineWindow, err = resolveWindow("baseline", o.BaselineStart, o.BaselineEnd, o.BaselineDuration, o.Duration)
	if err != nil {
		return err
	}
	o.MutantWindow, err = resolveWindow("mutant", o.MutantStart, o.MutantEnd, o.MutantDuration, o.Duration)
	if err != nil {
		return err
	}

	o.DatabasePath = o.Database
	if o.DatabasePath == "" {
		o.DatabasePath = DefaultDatabasePath
	}
	return nil
}

func (o *Options) validateSource() error {
	single := o.Elastic != ""
	split := o.BaselineElastic != "" || o.MutantElastic != ""
	offline := o.Database != ""

	if split && (o.BaselineElastic == "" || o.MutantElastic == "") {
		return fmt.Errorf("--baseline-elastic and --mutant-elastic must be used together")
	}

	used := 0
	for _, form := range []bool{single, split, offline} {
		if form {
			used++
		}
	}
	switch {
	case used == 0:
		return fmt.Errorf("one of --elastic, --baseline-elastic/--mutant-elastic or --database is required")
	case used > 1:
		return fmt.Errorf("--elastic, --baseline-elastic/--mutant-elastic and --database are mutually exclusive")
	}
	return nil
}

// Offline reports whether the run analyzes an already-populated
// database instead of ingesting from a trace backend.
func (o *Options) Offline() bool {
	return o.Database != ""
}

func resolveWindow(side, start, end, duration, defaultDuration string) (analyze.Window, error) {
	if start == "" {
		return analyze.Window{}, fmt.Errorf("--%s-start is required", side)
	}
	startTime, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return analyze.Window{}, fmt.Errorf("invalid --%s-start %q: %v", side, start, err)
	}

	if end != "" && duration != "" {
		return analyze.Window{}, fmt.Errorf("--%s-end and --%s-duration are mutually exclusive", side, side)
	}

	if end != "" {
		endTime, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return analyze.Window{}, fmt.Errorf("invalid --%s-end %q: %v", side, end, err)
		}
		if !endTime.After(startTime) {
			return analyze.Window{}, fmt.Errorf("--%s-end must be after --%s-start", side, side)
		}
		return analyze.Window{Start: startTime, End: endTime}, nil
	}

	if duration == "" {
		duration = defaultDuration
	}
	if duration == "" {
		return analyze.Window{}, fmt.Errorf("one of --%s-end, --%s-duration or --duration is required", side, side)
	}

	d, err := ParseDuration(duration)
	if err != nil {
		return analyze.Window{}, fmt.Errorf("invalid %s duration: %v", side, err)
	}
	return analyze.Window{Start: startTime, End: startTime.Add(d)}, nil
}

// ParseDuration parses the interval-length syntax "N UNIT" with a
// decimal N and unit s, m or h.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	default:
		return 0, fmt.Errorf("invalid duration %q: unit must be s, m or h", s)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(value * float64(unit)), nil
}

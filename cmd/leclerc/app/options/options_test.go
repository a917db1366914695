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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() *Options {
	o := NewOptions()
	o.Elastic = "http://localhost:9201"
	o.SpanName = "root"
	o.BaselineStart = "2025-01-01T00:00:00Z"
	o.MutantStart = "2025-01-02T00:00:00Z"
	o.Duration = "15m"
	return o
}

func TestValidate(t *testing.T) {
	// valid
	for _, mutate := range []func(*Options){
		func(o *Options) {},
		func(o *Options) {
			o.Elastic = ""
			o.BaselineElastic = "http://base:9200"
			o.MutantElastic = "http://mut:9200"
		},
		func(o *Options) {
			o.Elastic = ""
			o.Database = "/tmp/traces-db"
		},
		func(o *Options) {
			o.Duration = ""
			o.BaselineEnd = "2025-01-01T01:00:00Z"
			o.MutantDuration = "1.5h"
		},
	} {
		o := validOptions()
		mutate(o)
		assert.NoError(t, o.Validate(), "should be valid: %+v", o)
	}

	// invalid
	for _, mutate := range []func(*Options){
		func(o *Options) { o.Elastic = "" },
		func(o *Options) { o.Database = "/tmp/traces-db" },
		func(o *Options) { o.BaselineElastic = "http://base:9200" },
		func(o *Options) {
			o.Elastic = ""
			o.BaselineElastic = "http://base:9200"
		},
		func(o *Options) { o.SpanName = "" },
		func(o *Options) { o.BaselineStart = "" },
		func(o *Options) { o.BaselineStart = "yesterday" },
		func(o *Options) { o.BaselineEnd = "2025-01-01T01:00:00Z"; o.BaselineDuration = "10m" },
		func(o *Options) { o.BaselineEnd = "2024-12-31T00:00:00Z" },
		func(o *Options) { o.Duration = ""; o.MutantDuration = "15m" },
		func(o *Options) { o.Threshold = 1.5 },
	} {
		o := validOptions()
		mutate(o)
		assert.Error(t, o.Validate(), "should not be valid: %+v", o)
	}
}

func TestValidateResolvesWindows(t *testing.T) {
	o := validOptions()
	require.NoError(t, o.Validate())

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), o.BaselineWindow.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC), o.BaselineWindow.End)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 15, 0, 0, time.UTC), o.MutantWindow.End)
	assert.Equal(t, DefaultDatabasePath, o.DatabasePath)

	o = validOptions()
	o.Duration = ""
	o.BaselineEnd = "2025-01-01T02:30:00Z"
	o.MutantDuration = "45s"
	require.NoError(t, o.Validate())

	assert.Equal(t, time.Date(2025, 1, 1, 2, 30, 0, 0, time.UTC), o.BaselineWindow.End)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 45, 0, time.UTC), o.MutantWindow.End)
}

func TestParseDuration(t *testing.T) {
	for _, testCase := range []struct {
		in   string
		want time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"30s", 30 * time.Second},
		{"2h", 2 * time.Hour},
		{"1.5h", 90 * time.Minute},
		{"0.5m", 30 * time.Second},
	} {
		got, err := ParseDuration(testCase.in)
		assert.NoError(t, err, "should parse: %q", testCase.in)
		assert.Equal(t, testCase.want, got, "parsing %q", testCase.in)
	}

	for _, in := range []string{"", "m", "15", "15d", "-5m", "0s", "abch"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, "should not parse: %q", in)
	}
}

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

package elastic

import (
	"fmt"
	"time"
)

// Query selects the trace documents of one recorded interval, optionally
// restricted to a single service.
type Query struct {
	Start   time.Time
	End     time.Time
	Service string
}

// NewQuery builds a query over (start, end). An empty service matches
// all services.
func NewQuery(start, end time.Time, service string) *Query {
	return &Query{Start: start, End: end, Service: service}
}

// Body renders the query clause of the search request.
func (q *Query) Body() map[string]any {
	serviceQuery := "service.name: *"
	if q.Service != "" {
		serviceQuery = fmt.Sprintf("service.name: %q", q.Service)
	}

	return map[string]any{
		"bool": map[string]any{
			"must": []any{
				map[string]any{
					"range": map[string]any{
						"@timestamp": map[string]any{
							"gt": q.Start.Format(time.RFC3339Nano),
							"lt": q.End.Format(time.RFC3339Nano),
						},
					},
				},
				map[string]any{
					"query_string": map[string]any{
						"query": serviceQuery,
					},
				},
			},
		},
	}
}

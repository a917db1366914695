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

package graph

import (
	"context"
	"time"
)

// SpanFields holds the attributes of a span node. A nil *SpanFields in
// UpsertSpan creates a bare placeholder node that a later upsert fills in.
type SpanFields struct {
	Name       string
	TraceID    string
	Timestamp  time.Time
	DurationUS int64
}

// Store is the contract between the ingestion pipeline, the analyzer and
// the underlying property-graph database.
//
// Writes are keyed by span id and must be serialized per key by the
// implementation; callers may issue them from multiple goroutines.
// AddChildEdge is not idempotent: one edge is created per call, so
// re-ingesting the same document duplicates edges. Name-projected reads
// (DistinctChildNames) are unaffected; Durations counts each occurrence.
type Store interface {
	// CreateSchema declares the Span node table and the HasChild edge
	// table. Safe to call on a store that already has them.
	CreateSchema(ctx context.Context) error

	// UpsertSpan creates or overwrites the span with the given id.
	// With nil fields only the node itself is guaranteed to exist.
	UpsertSpan(ctx context.Context, id string, fields *SpanFields) error

	// AddChildEdge creates a HasChild edge from parent to child. Both
	// nodes must already exist.
	AddChildEdge(ctx context.Context, parentID, childID string) error

	// DistinctChildNames returns the sorted set of names n such that a
	// chain of spans named path[0]..path[len-1] has a child named n
	// whose timestamp falls in [start, end].
	DistinctChildNames(ctx context.Context, path []string, start, end time.Time) ([]string, error)

	// Durations returns duration_us of the terminal span of every chain
	// matching path whose terminal timestamp falls in [start, end]. A
	// path reachable through multiple chains contributes one sample per
	// chain.
	Durations(ctx context.Context, path []string, start, end time.Time) ([]int64, error)

	Close() error
}

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
	"fmt"
	"sort"
	"sync"
	"time"
)

type memorySpan struct {
	fields    SpanFields
	populated bool
}

// MemoryStore is an in-memory Store used by tests. It mirrors the edge semantics of the Kùzu adapter:
// edges form a multiset, one entry per AddChildEdge call.
type MemoryStore struct {
	mu    sync.Mutex
	spans map[string]*memorySpan
	// children maps a parent span id to its child span ids, with
	// duplicates preserved.
	children map[string][]string
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		spans:    make(map[string]*memorySpan),
		children: make(map[string][]string),
	}
}

func (m *MemoryStore) CreateSchema(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) UpsertSpan(ctx context.Context, id string, fields *SpanFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	span, ok := m.spans[id]
	if !ok {
		span = &memorySpan{}
		m.spans[id] = span
	}
	if fields != nil {
		span.fields = *fields
		span.populated = true
	}
	return nil
}

func (m *MemoryStore) AddChildEdge(ctx context.Context, parentID, childID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.spans[parentID]; !ok {
		return fmt.Errorf("edge references unknown parent span %q", parentID)
	}
	if _, ok := m.spans[childID]; !ok {
		return fmt.Errorf("edge references unknown child span %q", childID)
	}
	m.children[parentID] = append(m.children[parentID], childID)
	return nil
}

func (m *MemoryStore) DistinctChildNames(ctx context.Context, path []string, start, end time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	for _, terminal := range m.matchChains(path) {
		for _, childID := range m.children[terminal] {
			child := m.spans[childID]
			if !child.populated || !inWindow(child.fields.Timestamp, start, end) {
				continue
			}
			seen[child.fields.Name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Durations(ctx context.Context, path []string, start, end time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var durations []int64
	for _, terminal := range m.matchChains(path) {
		span := m.spans[terminal]
		if inWindow(span.fields.Timestamp, start, end) {
			durations = append(durations, span.fields.DurationUS)
		}
	}
	return durations, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// SpanCount reports the number of span nodes, placeholders included.
func (m *MemoryStore) SpanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spans)
}

// Edges returns the (parent, child) edge multiset, sorted.
func (m *MemoryStore) Edges() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var edges [][2]string
	for parent, children := range m.children {
		for _, child := range children {
			edges = append(edges, [2]string{parent, child})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// Span returns the fields of a span node and whether they have been
// populated by the span's own document (false for bare placeholders).
func (m *MemoryStore) Span(id string) (SpanFields, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	span, ok := m.spans[id]
	if !ok || !span.populated {
		return SpanFields{}, false
	}
	return span.fields, true
}

// matchChains returns the ids of spans terminating a chain whose names
// match path, one entry per concrete chain. Duplicate edges yield
// duplicate chains, matching the graph database's semantics.
func (m *MemoryStore) matchChains(path []string) []string {
	if len(path) == 0 {
		return nil
	}

	var current []string
	for id, span := range m.spans {
		if span.populated && span.fields.Name == path[0] {
			current = append(current, id)
		}
	}
	sort.Strings(current)

	for _, name := range path[1:] {
		var next []string
		for _, id := range current {
			for _, childID := range m.children[id] {
				child := m.spans[childID]
				if child.populated && child.fields.Name == name {
					next = append(next, childID)
				}
			}
		}
		current = next
	}
	return current
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

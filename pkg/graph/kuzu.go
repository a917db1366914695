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
	"strings"
	"sync"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"
)

const (
	upsertSpanQuery = `
		MERGE (s:Span {id: $span_id})
		ON CREATE SET s.trace_id = $trace_id, s.timestamp = $timestamp, s.duration_us = $duration_us, s.name = $name
		ON MATCH  SET s.trace_id = $trace_id, s.timestamp = $timestamp, s.duration_us = $duration_us, s.name = $name`

	upsertPlaceholderQuery = `MERGE (s:Span {id: $span_id})`

	addChildEdgeQuery = `
		MATCH (p:Span), (c:Span)
		WHERE p.id = $parent_id AND c.id = $child_id
		CREATE (p)-[:HasChild]->(c)`
)

// KuzuStore is a Store backed by an embedded Kùzu database. A single
// connection guarded by a mutex serializes all statements.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection

	mu       sync.Mutex
	prepared map[string]*kuzu.PreparedStatement
}

var _ Store = &KuzuStore{}

// OpenKuzu opens (or creates) the database at the given path.
func OpenKuzu(path string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %v", path, err)
	}

	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database %q: %v", path, err)
	}

	return &KuzuStore{
		db:       db,
		conn:     conn,
		prepared: make(map[string]*kuzu.PreparedStatement),
	}, nil
}

func (s *KuzuStore) CreateSchema(ctx context.Context) error {
	schema := []string{
		"CREATE NODE TABLE IF NOT EXISTS Span(id STRING, name STRING, trace_id STRING, timestamp TIMESTAMP, duration_us INT64, PRIMARY KEY (id))",
		"CREATE REL TABLE IF NOT EXISTS HasChild(FROM Span TO Span)",
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schema {
		result, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("creating schema: %v", err)
		}
		result.Close()
	}
	return nil
}

func (s *KuzuStore) UpsertSpan(ctx context.Context, id string, fields *SpanFields) error {
	if fields == nil {
		return s.exec(upsertPlaceholderQuery, map[string]any{"span_id": id})
	}
	return s.exec(upsertSpanQuery, map[string]any{
		"span_id":     id,
		"trace_id":    fields.TraceID,
		"timestamp":   fields.Timestamp,
		"duration_us": fields.DurationUS,
		"name":        fields.Name,
	})
}

func (s *KuzuStore) AddChildEdge(ctx context.Context, parentID, childID string) error {
	return s.exec(addChildEdgeQuery, map[string]any{
		"parent_id": parentID,
		"child_id":  childID,
	})
}

func (s *KuzuStore) DistinctChildNames(ctx context.Context, path []string, start, end time.Time) ([]string, error) {
	query, params := pathQuery(path, len(path)+1, "RETURN DISTINCT s%d.name AS name", start, end)

	var names []string
	err := s.query(query, params, func(tuple *kuzu.FlatTuple) error {
		value, err := tuple.GetValue(0)
		if err != nil {
			return err
		}
		name, ok := value.(string)
		if !ok {
			return fmt.Errorf("unexpected name type %T", value)
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

func (s *KuzuStore) Durations(ctx context.Context, path []string, start, end time.Time) ([]int64, error) {
	query, params := pathQuery(path, len(path), "RETURN s%d.duration_us AS duration_us", start, end)

	var durations []int64
	err := s.query(query, params, func(tuple *kuzu.FlatTuple) error {
		value, err := tuple.GetValue(0)
		if err != nil {
			return err
		}
		duration, ok := value.(int64)
		if !ok {
			return fmt.Errorf("unexpected duration type %T", value)
		}
		durations = append(durations, duration)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return durations, nil
}

func (s *KuzuStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range s.prepared {
		stmt.Close()
	}
	s.prepared = nil
	s.conn.Close()
	s.db.Close()
	return nil
}

// pathQuery builds the chain query for a span path. chainLen is the
// number of spans matched (len(path) for terminal-span queries, one more
// for child queries); the timestamp window always applies to the last
// span of the chain. returnTmpl receives its 1-based index.
func pathQuery(path []string, chainLen int, returnTmpl string, start, end time.Time) (string, map[string]any) {
	match := make([]string, 0, chainLen)
	for i := 1; i <= chainLen; i++ {
		match = append(match, fmt.Sprintf("(s%d:Span)", i))
	}

	params := map[string]any{
		"t_start": start,
		"t_end":   end,
	}

	where := make([]string, 0, len(path)+2)
	for i, name := range path {
		param := fmt.Sprintf("name%d", i)
		where = append(where, fmt.Sprintf("s%d.name = $%s", i+1, param))
		params[param] = name
	}
	where = append(where,
		fmt.Sprintf("s%d.timestamp >= $t_start", chainLen),
		fmt.Sprintf("s%d.timestamp <= $t_end", chainLen))

	query := fmt.Sprintf("MATCH %s\nWHERE %s\n%s",
		strings.Join(match, "-[:HasChild]->"),
		strings.Join(where, " AND "),
		fmt.Sprintf(returnTmpl, chainLen))

	return query, params
}

func (s *KuzuStore) exec(query string, params map[string]any) error {
	return s.query(query, params, nil)
}

func (s *KuzuStore) query(query string, params map[string]any, visit func(*kuzu.FlatTuple) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, ok := s.prepared[query]
	if !ok {
		var err error
		stmt, err = s.conn.Prepare(query)
		if err != nil {
			return fmt.Errorf("preparing statement: %v", err)
		}
		s.prepared[query] = stmt
	}

	result, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("executing statement: %v", err)
	}
	defer result.Close()

	if visit == nil {
		return nil
	}

	for result.HasNext() {
		tuple, err := result.Next()
		if err != nil {
			return fmt.Errorf("reading result row: %v", err)
		}
		if err := visit(tuple); err != nil {
			return err
		}
	}
	return nil
}

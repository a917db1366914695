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
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/giovanniberti/leclerc/pkg/graph"
	"github.com/giovanniberti/leclerc/pkg/scan"
)

const DefaultWorkers = 4

// Ingestor decodes pages of trace documents and writes span nodes and
// parent edges to the graph store. Arrival order does not matter: node
// writes are upserts keyed by span id, and a parent not yet seen is
// created as a placeholder that its own document later fills in.
type Ingestor struct {
	store   graph.Store
	workers int
}

func NewIngestor(store graph.Store, workers int) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	return &Ingestor{store: store, workers: workers}
}

// Run consumes pages until the channel closes or a write fails. Any
// decode or store error aborts the pass.
func (in *Ingestor) Run(ctx context.Context, pages <-chan scan.Page) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < in.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case page, ok := <-pages:
					if !ok {
						return nil
					}
					if err := in.ingestPage(ctx, page); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}

func (in *Ingestor) ingestPage(ctx context.Context, page scan.Page) error {
	for _, hit := range page.Hits {
		doc, err := DecodeDocument(hit.Source)
		if err != nil {
			errorsTotal.Inc()
			return err
		}
		if err := in.writeDocument(ctx, doc); err != nil {
			errorsTotal.Inc()
			return err
		}
		spansTotal.Inc()
	}
	pagesTotal.Inc()
	return nil
}

// writeDocument applies the per-document write protocol: upsert the
// span with its full fields, then make sure the parent node exists and
// link it. The unconditional field set fills in placeholders created
// earlier by this span's children.
func (in *Ingestor) writeDocument(ctx context.Context, doc Document) error {
	err := in.store.UpsertSpan(ctx, doc.SpanID, &graph.SpanFields{
		Name:       doc.Name,
		TraceID:    doc.TraceID,
		Timestamp:  doc.Timestamp,
		DurationUS: doc.DurationUS,
	})
	if err != nil {
		return fmt.Errorf("upserting span %s: %v", doc.SpanID, err)
	}

	if doc.ParentID == "" {
		return nil
	}

	if err := in.store.UpsertSpan(ctx, doc.ParentID, nil); err != nil {
		return fmt.Errorf("upserting parent placeholder %s: %v", doc.ParentID, err)
	}
	if err := in.store.AddChildEdge(ctx, doc.ParentID, doc.SpanID); err != nil {
		return fmt.Errorf("linking %s -> %s: %v", doc.ParentID, doc.SpanID, err)
	}
	return nil
}

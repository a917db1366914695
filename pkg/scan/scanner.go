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

package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/giovanniberti/leclerc/pkg/elastic"
)

// SearchClient is the slice of the trace source client the scanner
// needs. *elastic.Client implements it; tests substitute a fake.
type SearchClient interface {
	NodeCount(ctx context.Context) (int, error)
	Search(ctx context.Context, req elastic.SearchRequest) (*elastic.SearchResult, error)
}

// Page is one batch of raw trace documents produced by a slice scanner.
type Page struct {
	Slice int
	Hits  []elastic.Hit
}

// Options tune a scan.
type Options struct {
	// PageSize is the per-request hit limit.
	PageSize int
	// RequestTimeout is the server-side timeout of each search.
	RequestTimeout time.Duration
	// KeepAlive extends the point in time on each search.
	KeepAlive time.Duration
}

// DefaultOptions match the search service's allowed page limit.
func DefaultOptions() Options {
	return Options{
		PageSize:       10_000,
		RequestTimeout: 5 * time.Minute,
		KeepAlive:      5 * time.Minute,
	}
}

// sliceScanner drives one slice of a sliced, paginated scan. Within the
// slice, pages arrive strictly in ascending @timestamp order. A scanner
// is not restartable: resuming would need a fresh point in time.
type sliceScanner struct {
	client    SearchClient
	query     *elastic.Query
	pit       string
	slice     int
	maxSlices int
	opts      Options
}

func (s *sliceScanner) run(ctx context.Context, out chan<- Page) error {
	var searchAfter []json.RawMessage
	searches := 0
	sliceHits := 0

	for {
		result, err := s.client.Search(ctx, elastic.SearchRequest{
			PitID:       s.pit,
			KeepAlive:   s.opts.KeepAlive,
			Query:       s.query,
			Size:        s.opts.PageSize,
			SearchAfter: searchAfter,
			SliceID:     s.slice,
			MaxSlices:   s.maxSlices,
			Timeout:     s.opts.RequestTimeout,
		})
		if err != nil {
			return fmt.Errorf("slice %d: %v", s.slice, err)
		}

		if len(result.Hits) == 0 {
			break
		}

		searches++
		sliceHits += len(result.Hits)
		klog.V(2).Infof("[slice %d, search %d] %d hits", s.slice, searches, len(result.Hits))

		select {
		case out <- Page{Slice: s.slice, Hits: result.Hits}:
		case <-ctx.Done():
			return ctx.Err()
		}

		// The backend may rotate the snapshot token on every response.
		s.pit = result.PitID
		searchAfter = result.Hits[len(result.Hits)-1].Sort

		if len(result.Hits) < s.opts.PageSize {
			break
		}
	}

	klog.V(2).Infof("[slice %d] processed %d hits", s.slice, sliceHits)
	return nil
}

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
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/giovanniberti/leclerc/pkg/elastic"
)

// Coordinator fans a query out over one slice scanner per backend data
// node and merges their pages into a single unordered stream.
type Coordinator struct {
	client SearchClient
	opts   Options
}

func NewCoordinator(client SearchClient, opts Options) *Coordinator {
	return &Coordinator{client: client, opts: opts}
}

// PageStream is the merged output of a scan. Err reports the first
// fatal slice error; it is valid once Pages has been closed.
type PageStream struct {
	pages chan Page
	err   error
}

func (s *PageStream) Pages() <-chan Page {
	return s.pages
}

func (s *PageStream) Err() error {
	return s.err
}

// Scan starts the sliced scan for the given query and snapshot. The
// slice count equals the backend's data-node count; a single-node
// backend gets one unsliced scan. A fatal error in any slice cancels
// the others; the stream's channel closes when all slices drain. The
// channel is bounded so slow consumers apply back-pressure to the
// scanners.
func (c *Coordinator) Scan(ctx context.Context, query *elastic.Query, pit string) (*PageStream, error) {
	slices, err := c.client.NodeCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("determining slice count: %v", err)
	}
	if slices < 1 {
		slices = 1
	}
	klog.V(2).Infof("Scanning with %d slice(s)", slices)

	stream := &PageStream{pages: make(chan Page, 2*slices)}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < slices; i++ {
		scanner := &sliceScanner{
			client:    c.client,
			query:     query,
			pit:       pit,
			slice:     i,
			maxSlices: slices,
			opts:      c.opts,
		}
		g.Go(func() error {
			return scanner.run(ctx, stream.pages)
		})
	}

	go func() {
		stream.err = g.Wait()
		close(stream.pages)
	}()

	return stream, nil
}

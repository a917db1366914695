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
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/giovanniberti/leclerc/pkg/elastic"
)

// fakeSearchClient serves a fixed document corpus through the sliced,
// sorted pagination protocol. Documents are assigned to slices round
// robin by index; the sort key of document i is i itself.
type fakeSearchClient struct {
	nodes    int
	pageSize int
	docs     []json.RawMessage

	mu   sync.Mutex
	pits int
}

func newFakeSearchClient(nodes, pageSize int, docs []json.RawMessage) *fakeSearchClient {
	return &fakeSearchClient{nodes: nodes, pageSize: pageSize, docs: docs}
}

func (f *fakeSearchClient) NodeCount(ctx context.Context) (int, error) {
	return f.nodes, nil
}

func (f *fakeSearchClient) Search(ctx context.Context, req elastic.SearchRequest) (*elastic.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Size > f.pageSize {
		req.Size = f.pageSize
	}

	after := -1
	if req.SearchAfter != nil {
		parsed, err := strconv.Atoi(string(req.SearchAfter[0]))
		if err != nil {
			return nil, fmt.Errorf("bad search_after cursor: %v", err)
		}
		after = parsed
	}

	var hits []elastic.Hit
	for i, doc := range f.docs {
		if req.MaxSlices > 1 && i%req.MaxSlices != req.SliceID {
			continue
		}
		if i <= after {
			continue
		}
		hits = append(hits, elastic.Hit{
			Source: doc,
			Sort:   []json.RawMessage{json.RawMessage(strconv.Itoa(i))},
		})
		if len(hits) == req.Size {
			break
		}
	}

	f.mu.Lock()
	f.pits++
	pit := fmt.Sprintf("pit-%d", f.pits)
	f.mu.Unlock()

	return &elastic.SearchResult{PitID: pit, Hits: hits}, nil
}

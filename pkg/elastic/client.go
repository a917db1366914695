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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// DefaultIndexPattern selects the APM trace data streams.
const DefaultIndexPattern = ".ds-traces*"

// Hit is one search hit. Source carries the raw trace document; Sort is
// the hit's sort key, kept as raw JSON so that nanosecond timestamps
// survive the search_after round trip without float truncation.
type Hit struct {
	Source json.RawMessage   `json:"_source"`
	Sort   []json.RawMessage `json:"sort"`
}

// SearchResult is one page of a paginated scan. PitID is the refreshed
// point-in-time token and must replace the one used for the request.
type SearchResult struct {
	PitID string
	Hits  []Hit
}

// SearchRequest describes one page request of a sliced, sorted scan.
type SearchRequest struct {
	PitID     string
	KeepAlive time.Duration
	Query     *Query
	Size      int
	// SearchAfter is the sort key of the last hit of the previous page,
	// nil for the first page.
	SearchAfter []json.RawMessage
	// SliceID/MaxSlices partition the result set; slicing is disabled
	// when MaxSlices <= 1.
	SliceID   int
	MaxSlices int
	Timeout   time.Duration
}

// Client talks to an Elasticsearch-compatible trace search service.
type Client struct {
	es  *elasticsearch.Client
	url string
}

// NewClient builds a client for the backend at the given URL.
func NewClient(url string) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("creating client for %s: %v", url, err)
	}
	return &Client{es: es, url: url}, nil
}

// URL returns the backend address the client was built with.
func (c *Client) URL() string {
	return c.url
}

// Ping verifies that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("backend %s is unreachable: %v", c.url, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("backend %s is unreachable: %s", c.url, res.String())
	}
	return nil
}

// NodeCount returns the number of data nodes in the backend cluster.
func (c *Client) NodeCount(ctx context.Context) (int, error) {
	res, err := c.es.Nodes.Info(c.es.Nodes.Info.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("fetching node info: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("fetching node info: %s", res.String())
	}

	var body struct {
		Nodes map[string]struct {
			Roles []string `json:"roles"`
		} `json:"nodes"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding node info: %v", err)
	}

	count := 0
	for _, node := range body.Nodes {
		for _, role := range node.Roles {
			if role == "data" || strings.HasPrefix(role, "data_") {
				count++
				break
			}
		}
	}
	return count, nil
}

// OpenPointInTime opens a consistent read snapshot over the index pattern.
func (c *Client) OpenPointInTime(ctx context.Context, index string, keepAlive time.Duration) (string, error) {
	res, err := c.es.OpenPointInTime(
		[]string{index},
		esDuration(keepAlive),
		c.es.OpenPointInTime.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("opening point in time over %q: %v", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", fmt.Errorf("opening point in time over %q: %s", index, res.String())
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding point in time response: %v", err)
	}
	return body.ID, nil
}

// ClosePointInTime releases the snapshot.
func (c *Client) ClosePointInTime(ctx context.Context, id string) error {
	payload, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return err
	}

	res, err := c.es.ClosePointInTime(
		c.es.ClosePointInTime.WithContext(ctx),
		c.es.ClosePointInTime.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("closing point in time: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("closing point in time: %s", res.String())
	}
	return nil
}

// Search runs one page request. Results are sorted ascending by
// @timestamp with nanosecond resolution.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	body := map[string]any{
		"pit": map[string]any{
			"id":         req.PitID,
			"keep_alive": esDuration(req.KeepAlive),
		},
		"query": req.Query.Body(),
		"size":  req.Size,
		"sort": []any{
			map[string]any{
				"@timestamp": map[string]any{
					"order":        "asc",
					"format":       "strict_date_optional_time_nanos",
					"numeric_type": "date_nanos",
				},
			},
		},
		"timeout": esDuration(req.Timeout),
	}
	if req.SearchAfter != nil {
		body["search_after"] = req.SearchAfter
	}
	if req.MaxSlices > 1 {
		body["slice"] = map[string]any{
			"id":  req.SliceID,
			"max": req.MaxSlices,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithAllowPartialSearchResults(false),
		c.es.Search.WithTrackTotalHits(false),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %v", err)
	}
	defer res.Body.Close()

	return decodeSearchResponse(res)
}

func decodeSearchResponse(res *esapi.Response) (*SearchResult, error) {
	if res.IsError() {
		return nil, fmt.Errorf("search request: %s", res.String())
	}

	var body struct {
		PitID string `json:"pit_id"`
		Hits  struct {
			Hits []Hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %v", err)
	}

	return &SearchResult{PitID: body.PitID, Hits: body.Hits.Hits}, nil
}

// esDuration renders a duration in the time-unit syntax the search API
// expects for timeout and keep_alive values.
func esDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	}
	return fmt.Sprintf("%ds", int64(d/time.Second))
}

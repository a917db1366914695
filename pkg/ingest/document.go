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
	"encoding/json"
	"fmt"
	"time"
)

// Document is the canonical form of one decoded trace document. Root
// documents (transactions) have an empty ParentID.
type Document struct {
	SpanID     string
	TraceID    string
	Name       string
	Timestamp  time.Time
	DurationUS int64
	ParentID   string
	Root       bool
}

type rawDuration struct {
	US *int64 `json:"us"`
}

type rawOperation struct {
	Name     *string      `json:"name"`
	Duration *rawDuration `json:"duration"`
}

type rawID struct {
	ID *string `json:"id"`
}

type rawSpan struct {
	ID       *string      `json:"id"`
	Name     *string      `json:"name"`
	Duration *rawDuration `json:"duration"`
}

type rawDocument struct {
	Timestamp   *string       `json:"@timestamp"`
	Trace       *rawID        `json:"trace"`
	Span        *rawSpan      `json:"span"`
	Parent      *rawID        `json:"parent"`
	Transaction *rawOperation `json:"transaction"`
}

// DecodeDocument decodes a raw trace document. A document is a trace
// root iff it carries a transaction object; otherwise the span object
// plus parent.id describe a non-root span. A missing required field is
// a hard error: it indicates schema drift or data corruption, not a
// recoverable condition.
func DecodeDocument(raw json.RawMessage) (Document, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("malformed trace document: %v", err)
	}

	var op rawOperation
	var parentID string
	root := doc.Transaction != nil

	switch {
	case root:
		op = *doc.Transaction
	case doc.Span != nil:
		op = rawOperation{Name: doc.Span.Name, Duration: doc.Span.Duration}
		if doc.Parent == nil || doc.Parent.ID == nil {
			return Document{}, fmt.Errorf("span document without parent.id")
		}
		parentID = *doc.Parent.ID
	default:
		return Document{}, fmt.Errorf("document has neither transaction nor span object")
	}

	if op.Name == nil {
		return Document{}, fmt.Errorf("document without operation name")
	}
	if op.Duration == nil || op.Duration.US == nil {
		return Document{}, fmt.Errorf("document without duration.us")
	}
	if doc.Timestamp == nil {
		return Document{}, fmt.Errorf("document without @timestamp")
	}
	if doc.Trace == nil || doc.Trace.ID == nil {
		return Document{}, fmt.Errorf("document without trace.id")
	}
	if doc.Span == nil || doc.Span.ID == nil {
		return Document{}, fmt.Errorf("document without span.id")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, *doc.Timestamp)
	if err != nil {
		return Document{}, fmt.Errorf("parsing @timestamp %q: %v", *doc.Timestamp, err)
	}

	return Document{
		SpanID:     *doc.Span.ID,
		TraceID:    *doc.Trace.ID,
		Name:       *op.Name,
		Timestamp:  timestamp,
		DurationUS: *op.Duration.US,
		ParentID:   parentID,
		Root:       root,
	}, nil
}

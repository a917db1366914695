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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransactionDocument(t *testing.T) {
	raw := json.RawMessage(`{
		"@timestamp": "2025-05-02T12:08:00.000Z",
		"trace": {"id": "trace-1"},
		"span": {"id": "span-1"},
		"transaction": {"name": "GET /orders", "duration": {"us": 1500}}
	}`)

	doc, err := DecodeDocument(raw)
	require.NoError(t, err)

	assert.Equal(t, "span-1", doc.SpanID)
	assert.Equal(t, "trace-1", doc.TraceID)
	assert.Equal(t, "GET /orders", doc.Name)
	assert.Equal(t, int64(1500), doc.DurationUS)
	assert.Equal(t, time.Date(2025, 5, 2, 12, 8, 0, 0, time.UTC), doc.Timestamp)
	assert.True(t, doc.Root)
	assert.Empty(t, doc.ParentID)
}

func TestDecodeSpanDocument(t *testing.T) {
	raw := json.RawMessage(`{
		"@timestamp": "2025-05-02T12:08:00.123456Z",
		"trace": {"id": "trace-1"},
		"span": {"id": "span-2", "name": "SELECT orders", "duration": {"us": 230}},
		"parent": {"id": "span-1"}
	}`)

	doc, err := DecodeDocument(raw)
	require.NoError(t, err)

	assert.Equal(t, "span-2", doc.SpanID)
	assert.Equal(t, "SELECT orders", doc.Name)
	assert.Equal(t, int64(230), doc.DurationUS)
	assert.Equal(t, "span-1", doc.ParentID)
	assert.False(t, doc.Root)
}

func TestDecodeMalformedDocuments(t *testing.T) {
	for _, testCase := range []struct {
		name string
		raw  string
	}{
		{"not JSON", `{`},
		{"neither transaction nor span", `{"@timestamp": "2025-05-02T12:08:00Z", "trace": {"id": "t"}}`},
		{"missing name", `{"@timestamp": "2025-05-02T12:08:00Z", "trace": {"id": "t"}, "span": {"id": "s"}, "transaction": {"duration": {"us": 1}}}`},
		{"missing duration", `{"@timestamp": "2025-05-02T12:08:00Z", "trace": {"id": "t"}, "span": {"id": "s"}, "transaction": {"name": "n"}}`},
		{"missing timestamp", `{"trace": {"id": "t"}, "span": {"id": "s"}, "transaction": {"name": "n", "duration": {"us": 1}}}`},
		{"missing trace id", `{"@timestamp": "2025-05-02T12:08:00Z", "span": {"id": "s"}, "transaction": {"name": "n", "duration": {"us": 1}}}`},
		{"missing span id", `{"@timestamp": "2025-05-02T12:08:00Z", "trace": {"id": "t"}, "transaction": {"name": "n", "duration": {"us": 1}}}`},
		{"span without parent", `{"@timestamp": "2025-05-02T12:08:00Z", "trace": {"id": "t"}, "span": {"id": "s", "name": "n", "duration": {"us": 1}}}`},
		{"bad timestamp", `{"@timestamp": "last tuesday", "trace": {"id": "t"}, "span": {"id": "s"}, "transaction": {"name": "n", "duration": {"us": 1}}}`},
	} {
		_, err := DecodeDocument(json.RawMessage(testCase.raw))
		assert.Error(t, err, "should fail to decode: %s", testCase.name)
	}
}

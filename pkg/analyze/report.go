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

package analyze

import (
	"fmt"
	"io"
	"strings"
)

// PathString renders a span path the way reports and logs show it.
func PathString(path []string) string {
	return strings.Join(path, " > ")
}

// WriteReport writes the human-readable summary of the terminal
// differing paths found by an analysis run.
func WriteReport(w io.Writer, results []PathResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No differing span paths found")
		return err
	}

	if _, err := fmt.Fprintf(w, "Found %d differing span path(s):\n", len(results)); err != nil {
		return err
	}
	for _, result := range results {
		if _, err := fmt.Fprintf(w, "  %s: r=%+.4f\n", PathString(result.Path), result.RankBiserial); err != nil {
			return err
		}
	}
	return nil
}

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
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aclements/go-moremath/stats"
	"k8s.io/klog/v2"

	"github.com/giovanniberti/leclerc/pkg/graph"
)

// DefaultThreshold is the minimum |r| at which two duration samples are
// considered different.
const DefaultThreshold = 0.1

// Window is one closed analysis interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// PathResult is one terminal differing span path. U and P come from the
// Mann-Whitney test on (baseline, mutant); RankBiserial is
// 2·U/(n1·n2) − 1, negative when the mutant is slower.
type PathResult struct {
	Path         []string
	U            float64
	P            float64
	RankBiserial float64
}

// Analyzer walks the span tree depth-first, pruning subtrees whose
// duration distributions are statistically indistinguishable between
// the two windows, and reports only the deepest differing paths.
type Analyzer struct {
	store     graph.Store
	baseline  Window
	mutant    Window
	threshold float64
}

func New(store graph.Store, baseline, mutant Window, threshold float64) *Analyzer {
	return &Analyzer{
		store:     store,
		baseline:  baseline,
		mutant:    mutant,
		threshold: threshold,
	}
}

// Analyze tests the given span path and recurses into the child names
// both windows share while the test keeps rejecting. Paths with samples
// on only one side are a hard error; paths with no samples at all
// yield no results.
func (a *Analyzer) Analyze(ctx context.Context, path []string) ([]PathResult, error) {
	pathString := PathString(path)
	klog.V(2).Infof("Analyzing path %s", pathString)

	baseline, err := a.store.Durations(ctx, path, a.baseline.Start, a.baseline.End)
	if err != nil {
		return nil, fmt.Errorf("fetching baseline samples for path %s: %v", pathString, err)
	}
	mutant, err := a.store.Durations(ctx, path, a.mutant.Start, a.mutant.End)
	if err != nil {
		return nil, fmt.Errorf("fetching mutant samples for path %s: %v", pathString, err)
	}

	klog.V(2).Infof("Fetched samples for path %s, baseline: %d samples, mutant: %d samples",
		pathString, len(baseline), len(mutant))

	if len(baseline) == 0 && len(mutant) == 0 {
		return nil, nil
	}
	if len(baseline) == 0 || len(mutant) == 0 {
		return nil, fmt.Errorf("path %s has samples on one side only (baseline: %d, mutant: %d)",
			pathString, len(baseline), len(mutant))
	}

	result, r, err := rankTest(baseline, mutant)
	if err != nil {
		return nil, fmt.Errorf("rank test for path %s: %v", pathString, err)
	}

	klog.V(2).Infof("Tested path %s with rank-biserial correlation %v", pathString, r)

	if math.Abs(r) <= a.threshold {
		return nil, nil
	}

	baselineChildren, err := a.store.DistinctChildNames(ctx, path, a.baseline.Start, a.baseline.End)
	if err != nil {
		return nil, fmt.Errorf("fetching baseline children of path %s: %v", pathString, err)
	}
	mutantChildren, err := a.store.DistinctChildNames(ctx, path, a.mutant.Start, a.mutant.End)
	if err != nil {
		return nil, fmt.Errorf("fetching mutant children of path %s: %v", pathString, err)
	}

	common := intersect(baselineChildren, mutantChildren)
	if (len(baselineChildren) > 0 || len(mutantChildren) > 0) && len(common) == 0 {
		klog.Warningf("Found no common child span for path %s between baseline and mutant", pathString)
	}

	var childResults []PathResult
	for _, child := range common {
		childPath := append(append(make([]string, 0, len(path)+1), path...), child)
		results, err := a.Analyze(ctx, childPath)
		if err != nil {
			return nil, err
		}
		childResults = append(childResults, results...)
	}

	// A differing descendant explains this path's difference; report
	// the deepest level only.
	if len(childResults) > 0 {
		return childResults, nil
	}

	return []PathResult{{
		Path:         path,
		U:            result.U,
		P:            result.P,
		RankBiserial: r,
	}}, nil
}

// rankTest runs the Mann-Whitney U test and derives the rank-biserial
// correlation. Two samples in which every value is identical carry no
// rank signal; they come back as r = 0 so the caller prunes.
func rankTest(baseline, mutant []int64) (stats.MannWhitneyUTestResult, float64, error) {
	result, err := stats.MannWhitneyUTest(toFloats(baseline), toFloats(mutant), stats.LocationDiffers)
	if err != nil {
		if err == stats.ErrSamplesEqual {
			return stats.MannWhitneyUTestResult{
				N1: len(baseline),
				N2: len(mutant),
				U:  float64(len(baseline)*len(mutant)) / 2,
				P:  1,
			}, 0, nil
		}
		return stats.MannWhitneyUTestResult{}, 0, err
	}

	effectSize := result.U / float64(result.N1*result.N2)
	return *result, 2*effectSize - 1, nil
}

func toFloats(samples []int64) []float64 {
	floats := make([]float64, len(samples))
	for i, s := range samples {
		floats[i] = float64(s)
	}
	return floats
}

// intersect returns the names present in both sorted slices, sorted.
func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, name := range b {
		inB[name] = true
	}

	var common []string
	for _, name := range a {
		if inB[name] {
			common = append(common, name)
		}
	}
	return common
}

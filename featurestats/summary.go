/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package featurestats

import (
	"errors"
	"fmt"

	"github.com/apache/datasketches-featurestats-go/statistics"
)

var (
	ErrWeightsLengthMismatch = errors.New("values and weights must have the same length")
	ErrIncompatibleSummary   = errors.New("incompatible summaries")
	ErrInconsistentSummary   = errors.New("weighted top-k is not empty while unweighted top-k is")
)

// CombinedSummary holds the sketches of one feature: a distinct sketch, an
// unweighted top-k sketch and, for weighted features, a weighted top-k sketch.
// The set of sketches is fixed when the summary is created.
type CombinedSummary struct {
	distinct   DistinctSketch
	unweighted TopKSketch
	weighted   TopKSketch
}

// Estimate is a snapshot of the estimates of a summary.
type Estimate struct {
	Distinct       uint64
	TopKUnweighted []statistics.ValueCount
	TopKWeighted   []statistics.ValueCount
}

// NewCombinedSummary returns a summary over the given sketches. weighted may
// be nil.
func NewCombinedSummary(distinct DistinctSketch, unweighted, weighted TopKSketch) *CombinedSummary {
	return &CombinedSummary{
		distinct:   distinct,
		unweighted: unweighted,
		weighted:   weighted,
	}
}

// Weighted reports whether the summary owns a weighted top-k sketch.
func (s *CombinedSummary) Weighted() bool {
	return s.weighted != nil
}

// Add presents values to the summary. weights, when not nil, must be aligned
// with values; they are only used by a weighted summary.
func (s *CombinedSummary) Add(values []string, weights []float64) error {
	if weights != nil && len(weights) != len(values) {
		return fmt.Errorf("%w: %d values, %d weights", ErrWeightsLengthMismatch, len(values), len(weights))
	}
	// The weighted sketch is the only one that rejects input, so it goes first.
	if weights != nil && s.weighted != nil {
		if err := s.weighted.UpdateWeighted(values, weights); err != nil {
			return err
		}
	}
	if err := s.unweighted.Update(values); err != nil {
		return err
	}
	s.distinct.Update(values)
	return nil
}

// Merge folds other into s. Both summaries must have the same shape.
func (s *CombinedSummary) Merge(other *CombinedSummary) error {
	if other == nil {
		return nil
	}
	if other == s {
		return fmt.Errorf("%w: cannot merge a summary into itself", ErrIncompatibleSummary)
	}
	if s.Weighted() != other.Weighted() {
		return fmt.Errorf("%w: weighted %t, other weighted %t", ErrIncompatibleSummary, s.Weighted(), other.Weighted())
	}
	if err := s.distinct.Merge(other.distinct); err != nil {
		return err
	}
	if err := s.unweighted.Merge(other.unweighted); err != nil {
		return err
	}
	if s.weighted != nil {
		return s.weighted.Merge(other.weighted)
	}
	return nil
}

// Estimate queries the sketches. An empty unweighted list always comes with
// an empty weighted list.
func (s *CombinedSummary) Estimate() (Estimate, error) {
	est := Estimate{
		Distinct:       s.distinct.Estimate(),
		TopKUnweighted: s.unweighted.Estimate(),
	}
	if s.weighted != nil {
		est.TopKWeighted = s.weighted.Estimate()
	}
	if len(est.TopKUnweighted) == 0 && len(est.TopKWeighted) != 0 {
		return Estimate{}, ErrInconsistentSummary
	}
	return est, nil
}

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

// Package kmv is dedicated to the K-Minimum-Values family of streaming algorithms
// that estimate the number of distinct items in a stream.
//
// A Sketch hashes every item into a 63 bit space and keeps only the k smallest hash
// values seen. When more than k hashes fall below the current threshold (theta), the
// threshold is lowered to the (k+1)-th smallest retained hash. The estimate is k divided
// by theta as a fraction of the hash space. Sketches built with the same k and seed can
// be merged in any order and grouping; the estimate only depends on the union of the
// items the merged sketches have seen.
package kmv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/datasketches-featurestats-go/internal"
)

var (
	ErrIncompatibleK    = errors.New("sketches with a different k cannot be merged")
	ErrIncompatibleSeed = errors.New("sketches with a different seed cannot be merged")
)

// Sketch is a K-Minimum-Values distinct counting sketch.
type Sketch struct {
	table   *hashtable
	seed    uint64
	isEmpty bool
}

type sketchOptions struct {
	k    int
	seed uint64
}

type SketchOptionFunc func(*sketchOptions)

// WithK sets the number of minimum hash values retained by the sketch.
// Larger values improve accuracy at the cost of memory.
func WithK(k int) SketchOptionFunc {
	return func(opts *sketchOptions) {
		opts.k = k
	}
}

// WithSeed sets the seed for the hash function. Sketches produced with a different
// seed are not compatible and cannot be merged.
func WithSeed(seed uint64) SketchOptionFunc {
	return func(opts *sketchOptions) {
		opts.seed = seed
	}
}

// NewSketch creates an empty sketch with the given options.
func NewSketch(opts ...SketchOptionFunc) (*Sketch, error) {
	options := &sketchOptions{
		k:    DefaultK,
		seed: DefaultSeed,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.k < MinK {
		return nil, fmt.Errorf("k must not be less than %d: %d", MinK, options.k)
	}
	if options.k > MaxK {
		return nil, fmt.Errorf("k must not be greater than %d: %d", MaxK, options.k)
	}
	if _, err := internal.ComputeSeedHash(options.seed); err != nil {
		return nil, err
	}

	return &Sketch{
		table:   newHashtable(uint32(options.k)),
		seed:    options.seed,
		isEmpty: true,
	}, nil
}

// K returns the configured number of minimum values.
func (s *Sketch) K() int {
	return int(s.table.k)
}

// Seed returns the hash seed.
func (s *Sketch) Seed() uint64 {
	return s.seed
}

// IsEmpty returns true if no item was ever presented to this sketch.
func (s *Sketch) IsEmpty() bool {
	return s.isEmpty
}

// NumRetained returns the number of hash values currently held.
func (s *Sketch) NumRetained() int {
	return int(s.table.numEntries)
}

// Capacity returns the maximum number of hash values the sketch can hold.
// It is fixed at construction.
func (s *Sketch) Capacity() int {
	return int(s.table.capacity())
}

// Theta64 returns theta as a positive integer between 0 and MaxTheta
func (s *Sketch) Theta64() uint64 {
	return s.table.theta
}

// IsEstimationMode returns true if the sketch has seen more than k distinct hashes.
func (s *Sketch) IsEstimationMode() bool {
	return s.table.theta < MaxTheta || s.table.numEntries > s.table.k
}

// UpdateString presents the UTF-8 bytes of value as a potential distinct item.
func (s *Sketch) UpdateString(value string) {
	s.isEmpty = false
	h, _ := internal.HashStringMurmur3(value, s.seed)
	s.table.insert(h >> 1)
}

// UpdateBytes presents data as a potential distinct item.
func (s *Sketch) UpdateBytes(data []byte) {
	s.isEmpty = false
	h, _ := internal.HashBytesMurmur3(data, s.seed)
	s.table.insert(h >> 1)
}

// UpdateStrings presents every value as a potential distinct item.
func (s *Sketch) UpdateStrings(values []string) {
	for _, v := range values {
		s.UpdateString(v)
	}
}

// Merge folds other into this sketch. other is not modified.
func (s *Sketch) Merge(other *Sketch) error {
	if other == nil || other.IsEmpty() {
		return nil
	}
	if other.table.k != s.table.k {
		return fmt.Errorf("%w: %d != %d", ErrIncompatibleK, other.table.k, s.table.k)
	}
	if other.seed != s.seed {
		return ErrIncompatibleSeed
	}
	s.isEmpty = false
	s.table.lowerTheta(other.table.theta)
	for _, h := range other.table.entries {
		if h != 0 {
			s.table.insert(h)
		}
	}
	return nil
}

// Estimate returns the estimated number of distinct items.
// It is exact while the sketch has seen at most k distinct hashes.
func (s *Sketch) Estimate() float64 {
	if !s.IsEstimationMode() {
		return float64(s.table.numEntries)
	}
	count, theta := s.effectiveEntries()
	return float64(count) / (float64(theta) / float64(MaxTheta))
}

// effectiveEntries returns the number of hashes below the effective theta, which
// is the smaller of theta and the (k+1)-th smallest retained hash. Both values
// depend only on the union of items seen, not on the update or merge order.
func (s *Sketch) effectiveEntries() (uint32, uint64) {
	if s.table.numEntries <= s.table.k {
		return s.table.numEntries, s.table.theta
	}
	retained := s.table.retained()
	kth := internal.QuickSelect(retained, 0, len(retained)-1, int(s.table.k))
	return s.table.k, min(kth, s.table.theta)
}

// Copy returns a deep copy of this sketch.
func (s *Sketch) Copy() *Sketch {
	return &Sketch{
		table:   s.table.copy(),
		seed:    s.seed,
		isEmpty: s.isEmpty,
	}
}

// Reset returns the sketch to its empty state, keeping k and seed.
func (s *Sketch) Reset() {
	s.table = newHashtable(s.table.k)
	s.isEmpty = true
}

func (s *Sketch) String() string {
	seedHash, _ := internal.ComputeSeedHash(s.seed)

	var result strings.Builder
	result.WriteString("### KMV sketch summary:\n")
	result.WriteString(fmt.Sprintf("   k                    : %d\n", s.table.k))
	result.WriteString(fmt.Sprintf("   num retained entries : %d\n", s.table.numEntries))
	result.WriteString(fmt.Sprintf("   seed hash            : %d\n", seedHash))
	result.WriteString(fmt.Sprintf("   empty?               : %t\n", s.isEmpty))
	result.WriteString(fmt.Sprintf("   estimation mode?     : %t\n", s.IsEstimationMode()))
	result.WriteString(fmt.Sprintf("   theta (fraction)     : %f\n", float64(s.table.theta)/float64(MaxTheta)))
	result.WriteString(fmt.Sprintf("   estimate             : %f\n", s.Estimate()))
	result.WriteString("### End sketch summary\n")
	return result.String()
}

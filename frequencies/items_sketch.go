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

// Package frequencies is dedicated to streaming algorithms that estimate the
// frequency of occurrence of items in a weighted multiset stream of items.
// If the frequency distribution of items is sufficiently skewed, these algorithms
// are very useful in identifying the "Heavy Hitters" that occurred most
// frequently in the stream.
//
// ItemsSketch is a Misra-Gries summary over string items with float64 weights.
// It tracks at most numBuckets items. When more are seen, the count of the
// (numBuckets+1)-th ranked item is subtracted from the tracked items and every
// item ranked below numBuckets is dropped. The subtracted amounts accumulate in
// the maximum error, so for any item
//
//	lowerBound <= true frequency <= lowerBound + GetMaximumError()
package frequencies

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/datasketches-featurestats-go/common"
	"github.com/apache/datasketches-featurestats-go/internal"
)

const (
	_LG_MIN_MAP_SIZE = 3

	// MaxNumBuckets bounds the number of tracked items of a sketch.
	MaxNumBuckets = 1 << 24
)

var (
	ErrInvalidNumBuckets = fmt.Errorf("numBuckets must be in [1, %d]", MaxNumBuckets)
	ErrNegativeWeight    = errors.New("weight may not be negative")
	ErrInvalidWeight     = errors.New("weight must be a finite number")
	ErrLengthMismatch    = errors.New("items and weights must have the same length")
)

type ItemsSketch struct {
	// Maximum number of items tracked between public calls.
	numBuckets int
	// Log2 of the maximum length of the arrays of the hash map.
	lgMaxMapSize int
	// The current number of counters supported by the hash map.
	curMapCap int
	// Tracks the total of decremented counts.
	offset float64
	// The sum of all weights of the stream so far.
	streamWeight float64
	hashMap      *reversePurgeItemHashMap
}

// NewItemsSketch returns an empty sketch that tracks at most numBuckets items.
// The hash map starts at 8 slots and grows up to the smallest power of two whose
// capacity holds 2*(numBuckets+1) items, so purges are amortized over at least
// numBuckets+1 new items.
func NewItemsSketch(numBuckets int) (*ItemsSketch, error) {
	if numBuckets < 1 || numBuckets > MaxNumBuckets {
		return nil, ErrInvalidNumBuckets
	}
	maxMapSize := internal.CeilPowerOf2(int(math.Ceil(float64(2*(numBuckets+1)) / reversePurgeItemHashMapLoadFactor)))
	lgMaxMapSize, err := internal.ExactLog2(maxMapSize)
	if err != nil {
		return nil, err
	}
	return newItemsSketch(numBuckets, max(lgMaxMapSize, _LG_MIN_MAP_SIZE), _LG_MIN_MAP_SIZE)
}

func newItemsSketch(numBuckets int, lgMaxMapSize int, lgCurMapSize int) (*ItemsSketch, error) {
	hashMap, err := newReversePurgeItemHashMap(1<<lgCurMapSize, common.ItemSketchStringHasher{})
	if err != nil {
		return nil, err
	}
	return &ItemsSketch{
		numBuckets:   numBuckets,
		lgMaxMapSize: lgMaxMapSize,
		curMapCap:    hashMap.getCapacity(),
		hashMap:      hashMap,
	}, nil
}

// GetNumBuckets returns the maximum number of items tracked by the sketch.
func (s *ItemsSketch) GetNumBuckets() int {
	return s.numBuckets
}

// GetCurrentMapCapacity returns the current number of counters the hash map supports.
func (s *ItemsSketch) GetCurrentMapCapacity() int {
	return s.curMapCap
}

// GetMaximumMapCapacity returns the number of counters the hash map supports at
// its maximum size.
func (s *ItemsSketch) GetMaximumMapCapacity() int {
	return int(float64(uint64(1)<<s.lgMaxMapSize) * reversePurgeItemHashMapLoadFactor)
}

// GetEstimate returns the estimated frequency of item: its counter plus the
// maximum error when tracked, otherwise 0.
func (s *ItemsSketch) GetEstimate(item string) float64 {
	if !s.hashMap.contains(item) {
		return 0
	}
	return s.hashMap.get(item) + s.offset
}

// GetLowerBound returns the guaranteed lower bound frequency of item, which is
// never negative.
func (s *ItemsSketch) GetLowerBound(item string) float64 {
	return s.hashMap.get(item)
}

// GetUpperBound returns the guaranteed upper bound frequency of item.
func (s *ItemsSketch) GetUpperBound(item string) float64 {
	return s.hashMap.get(item) + s.offset
}

// GetMaximumError returns an upper bound on the error of GetEstimate for any item.
func (s *ItemsSketch) GetMaximumError() float64 {
	return s.offset
}

// GetStreamWeight returns the sum of the weights seen so far by the sketch.
func (s *ItemsSketch) GetStreamWeight() float64 {
	return s.streamWeight
}

// GetNumActiveItems returns the number of items currently tracked.
func (s *ItemsSketch) GetNumActiveItems() int {
	return s.hashMap.numActive
}

// IsEmpty returns true if the sketch tracks no item.
func (s *ItemsSketch) IsEmpty() bool {
	return s.GetNumActiveItems() == 0
}

// Update adds one occurrence of item.
func (s *ItemsSketch) Update(item string) error {
	return s.UpdateWeighted(item, 1)
}

// UpdateWeighted adds weight to the frequency of item. A weight of zero is a
// no-op, a negative or non-finite weight is an error.
func (s *ItemsSketch) UpdateWeighted(item string, weight float64) error {
	if err := checkWeight(weight); err != nil {
		return err
	}
	if weight == 0 {
		return nil
	}
	s.streamWeight += weight
	if err := s.add(item, weight); err != nil {
		return err
	}
	return s.compress()
}

// UpdateMany adds one occurrence of every item.
func (s *ItemsSketch) UpdateMany(items []string) error {
	for _, item := range items {
		s.streamWeight++
		if err := s.add(item, 1); err != nil {
			return err
		}
	}
	return s.compress()
}

// UpdateManyWeighted adds weights[i] to the frequency of items[i]. The weights
// are validated before the sketch is touched.
func (s *ItemsSketch) UpdateManyWeighted(items []string, weights []float64) error {
	if len(items) != len(weights) {
		return ErrLengthMismatch
	}
	for _, w := range weights {
		if err := checkWeight(w); err != nil {
			return err
		}
	}
	for i, item := range items {
		if weights[i] == 0 {
			continue
		}
		s.streamWeight += weights[i]
		if err := s.add(item, weights[i]); err != nil {
			return err
		}
	}
	return s.compress()
}

// Merge folds other into this sketch. The sketches may have different numbers
// of buckets; the result keeps the buckets of the receiver.
func (s *ItemsSketch) Merge(other *ItemsSketch) error {
	if other == nil || other.IsEmpty() {
		return nil
	}
	iter := other.hashMap.iterator()
	for iter.next() {
		if err := s.add(iter.getKey(), iter.getValue()); err != nil {
			return err
		}
	}
	s.offset += other.offset
	s.streamWeight += other.streamWeight
	return s.compress()
}

// Estimate returns every tracked item, ordered by estimate (largest first) and
// then by item.
func (s *ItemsSketch) Estimate() []*Row {
	rows := make([]*Row, 0, s.hashMap.numActive)
	iter := s.hashMap.iterator()
	for iter.next() {
		lb := iter.getValue()
		rows = append(rows, newRow(iter.getKey(), lb+s.offset, lb+s.offset, lb))
	}
	slices.SortFunc(rows, compareRows)
	return rows
}

// GetFrequentItems is GetFrequentItemsWithThreshold(GetMaximumError(), errorType).
func (s *ItemsSketch) GetFrequentItems(errorType ErrorType) []*Row {
	return s.sortItems(s.GetMaximumError(), errorType)
}

// GetFrequentItemsWithThreshold returns the tracked items whose bound reaches
// threshold. With NoFalseNegatives the upper bound is compared, with
// NoFalsePositives the lower bound. A threshold below GetMaximumError() is
// raised to it.
func (s *ItemsSketch) GetFrequentItemsWithThreshold(threshold float64, errorType ErrorType) []*Row {
	return s.sortItems(max(threshold, s.GetMaximumError()), errorType)
}

// Reset returns the sketch to its empty state.
func (s *ItemsSketch) Reset() error {
	hashMap, err := newReversePurgeItemHashMap(1<<_LG_MIN_MAP_SIZE, s.hashMap.hasher)
	if err != nil {
		return err
	}
	s.hashMap = hashMap
	s.curMapCap = hashMap.getCapacity()
	s.offset = 0
	s.streamWeight = 0
	return nil
}

func (s *ItemsSketch) String() string {
	var sb strings.Builder
	sb.WriteString("FrequentItemsSketch:")
	sb.WriteString("\n")
	sb.WriteString("  Num Buckets      : " + strconv.Itoa(s.numBuckets))
	sb.WriteString("\n")
	sb.WriteString("  Stream Weight    : " + strconv.FormatFloat(s.streamWeight, 'g', -1, 64))
	sb.WriteString("\n")
	sb.WriteString("  Max Error Offset : " + strconv.FormatFloat(s.offset, 'g', -1, 64))
	sb.WriteString("\n")
	sb.WriteString(s.hashMap.String())
	return sb.String()
}

// add adjusts the counter of item, growing the map or purging it when the
// current capacity is reached.
func (s *ItemsSketch) add(item string, weight float64) error {
	if err := s.hashMap.adjustOrPutValue(item, weight); err != nil {
		return err
	}
	if s.hashMap.numActive < s.curMapCap {
		return nil
	}
	if s.hashMap.lgLength < s.lgMaxMapSize {
		if err := s.hashMap.resize(2 * len(s.hashMap.keys)); err != nil {
			return err
		}
		s.curMapCap = s.hashMap.getCapacity()
		return nil
	}
	return s.purge()
}

// compress restores the numBuckets bound at the end of a public call.
func (s *ItemsSketch) compress() error {
	if s.hashMap.numActive <= s.numBuckets {
		return nil
	}
	return s.purge()
}

// purge keeps the numBuckets top ranked items, ranked by count and then by
// item, and subtracts the count of the first dropped item from each of them.
// The subtracted count is at most the count of every kept item, so no counter
// goes negative.
func (s *ItemsSketch) purge() error {
	keys := s.hashMap.getActiveKeys()
	values := s.hashMap.getActiveValues()
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return compareRows(&Row{item: keys[a], est: values[a]}, &Row{item: keys[b], est: values[b]})
	})
	threshold := values[order[s.numBuckets]]
	s.hashMap.reset()
	for _, j := range order[:s.numBuckets] {
		if err := s.hashMap.adjustOrPutValue(keys[j], values[j]-threshold); err != nil {
			return err
		}
	}
	s.offset += threshold
	return nil
}

func (s *ItemsSketch) sortItems(threshold float64, errorType ErrorType) []*Row {
	rows := make([]*Row, 0)
	iter := s.hashMap.iterator()
	for iter.next() {
		lb := iter.getValue()
		ub := lb + s.offset
		bound := ub
		if errorType == ErrorTypeEnum.NoFalsePositives {
			bound = lb
		}
		if bound >= threshold {
			rows = append(rows, newRow(iter.getKey(), ub, ub, lb))
		}
	}
	slices.SortFunc(rows, compareRows)
	return rows
}

func checkWeight(weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return ErrInvalidWeight
	}
	if weight < 0 {
		return ErrNegativeWeight
	}
	return nil
}

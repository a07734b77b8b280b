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
	"fmt"
	"math"

	"github.com/axiomhq/hyperloglog"

	"github.com/apache/datasketches-featurestats-go/frequencies"
	"github.com/apache/datasketches-featurestats-go/kmv"
	"github.com/apache/datasketches-featurestats-go/statistics"
)

const (
	DistinctSketchKMV = "kmv"
	DistinctSketchHLL = "hll"
)

// DistinctSketch estimates the number of distinct tokens of a feature.
type DistinctSketch interface {
	Update(values []string)
	// Merge folds other, which must come from the same factory, into the sketch.
	Merge(other DistinctSketch) error
	Estimate() uint64
	MarshalBinary() ([]byte, error)
}

// TopKSketch estimates the most frequent tokens of a feature.
type TopKSketch interface {
	Update(values []string) error
	// UpdateWeighted adds weights[i] to the count of values[i].
	UpdateWeighted(values []string, weights []float64) error
	// Merge folds other, which must come from the same factory, into the sketch.
	Merge(other TopKSketch) error
	// Estimate lists the tracked tokens, largest count first.
	Estimate() []statistics.ValueCount
	MarshalBinary() ([]byte, error)
}

// SketchFactory builds the sketches of a summary and decodes serialized ones.
type SketchFactory interface {
	NewDistinctSketch() (DistinctSketch, error)
	NewTopKSketch() (TopKSketch, error)
	DecodeDistinctSketch(b []byte) (DistinctSketch, error)
	DecodeTopKSketch(b []byte) (TopKSketch, error)
}

type sketchFactory struct {
	distinct  string
	kmvK      int
	mgBuckets int
}

// NewSketchFactory returns the factory for the sketch sizes and the distinct
// sketch kind of cfg.
func NewSketchFactory(cfg Config) (SketchFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &sketchFactory{
		distinct:  cfg.DistinctSketch,
		kmvK:      cfg.NumKMVBuckets,
		mgBuckets: cfg.MisraGriesBuckets(),
	}, nil
}

func (f *sketchFactory) NewDistinctSketch() (DistinctSketch, error) {
	if f.distinct == DistinctSketchHLL {
		return &hllDistinct{sketch: hyperloglog.New()}, nil
	}
	sk, err := kmv.NewSketch(kmv.WithK(f.kmvK))
	if err != nil {
		return nil, err
	}
	return &kmvDistinct{sketch: sk}, nil
}

func (f *sketchFactory) NewTopKSketch() (TopKSketch, error) {
	sk, err := frequencies.NewItemsSketch(f.mgBuckets)
	if err != nil {
		return nil, err
	}
	return &misraGriesTopK{sketch: sk}, nil
}

func (f *sketchFactory) DecodeDistinctSketch(b []byte) (DistinctSketch, error) {
	if f.distinct == DistinctSketchHLL {
		var sk hyperloglog.Sketch
		if err := sk.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("decoding hll sketch: %w", err)
		}
		return &hllDistinct{sketch: &sk}, nil
	}
	sk, err := kmv.NewSketchFromSlice(b, kmv.DefaultSeed)
	if err != nil {
		return nil, fmt.Errorf("decoding kmv sketch: %w", err)
	}
	if sk.K() != f.kmvK {
		return nil, fmt.Errorf("%w: kmv sketch with k %d, want %d", ErrIncompatibleSummary, sk.K(), f.kmvK)
	}
	return &kmvDistinct{sketch: sk}, nil
}

func (f *sketchFactory) DecodeTopKSketch(b []byte) (TopKSketch, error) {
	sk, err := frequencies.NewItemsSketchFromSlice(b)
	if err != nil {
		return nil, fmt.Errorf("decoding misra-gries sketch: %w", err)
	}
	if sk.GetNumBuckets() != f.mgBuckets {
		return nil, fmt.Errorf("%w: misra-gries sketch with %d buckets, want %d", ErrIncompatibleSummary, sk.GetNumBuckets(), f.mgBuckets)
	}
	return &misraGriesTopK{sketch: sk}, nil
}

type kmvDistinct struct {
	sketch *kmv.Sketch
}

func (d *kmvDistinct) Update(values []string) {
	d.sketch.UpdateStrings(values)
}

func (d *kmvDistinct) Merge(other DistinctSketch) error {
	o, ok := other.(*kmvDistinct)
	if !ok {
		return fmt.Errorf("%w: cannot merge %T into a kmv sketch", ErrIncompatibleSummary, other)
	}
	if err := d.sketch.Merge(o.sketch); err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatibleSummary, err)
	}
	return nil
}

func (d *kmvDistinct) Estimate() uint64 {
	return uint64(math.Round(d.sketch.Estimate()))
}

func (d *kmvDistinct) MarshalBinary() ([]byte, error) {
	return d.sketch.MarshalBinary()
}

type hllDistinct struct {
	sketch *hyperloglog.Sketch
}

func (d *hllDistinct) Update(values []string) {
	for _, v := range values {
		d.sketch.Insert([]byte(v))
	}
}

func (d *hllDistinct) Merge(other DistinctSketch) error {
	o, ok := other.(*hllDistinct)
	if !ok {
		return fmt.Errorf("%w: cannot merge %T into an hll sketch", ErrIncompatibleSummary, other)
	}
	if err := d.sketch.Merge(o.sketch); err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatibleSummary, err)
	}
	return nil
}

func (d *hllDistinct) Estimate() uint64 {
	return d.sketch.Estimate()
}

func (d *hllDistinct) MarshalBinary() ([]byte, error) {
	return d.sketch.MarshalBinary()
}

type misraGriesTopK struct {
	sketch *frequencies.ItemsSketch
}

func (t *misraGriesTopK) Update(values []string) error {
	return t.sketch.UpdateMany(values)
}

func (t *misraGriesTopK) UpdateWeighted(values []string, weights []float64) error {
	return t.sketch.UpdateManyWeighted(values, weights)
}

func (t *misraGriesTopK) Merge(other TopKSketch) error {
	o, ok := other.(*misraGriesTopK)
	if !ok {
		return fmt.Errorf("%w: cannot merge %T into a misra-gries sketch", ErrIncompatibleSummary, other)
	}
	return t.sketch.Merge(o.sketch)
}

func (t *misraGriesTopK) Estimate() []statistics.ValueCount {
	rows := t.sketch.Estimate()
	out := make([]statistics.ValueCount, len(rows))
	for i, r := range rows {
		out[i] = statistics.ValueCount{Value: r.GetItem(), Count: r.GetEstimate()}
	}
	return out
}

func (t *misraGriesTopK) MarshalBinary() ([]byte, error) {
	return t.sketch.MarshalBinary()
}

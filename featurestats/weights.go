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

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/exp/constraints"
)

var (
	ErrMissingWeightColumn  = errors.New("weight column not found")
	ErrInvalidExampleWeight = errors.New("each example must have exactly one numeric weight")
)

// WeightResolver decides which features are weighted and supplies the weight
// of every example of a record.
type WeightResolver interface {
	IsWeighted(path FeaturePath) bool
	// Weights returns one weight per row of rec for the feature at path.
	Weights(rec arrow.Record, path FeaturePath) ([]float64, error)
}

// ExampleWeightMap names the column that holds the example weights, globally
// and per feature. PerFeatureOverride is keyed by the dotted feature path.
type ExampleWeightMap struct {
	Weight             string            `yaml:"weight,omitempty"`
	PerFeatureOverride map[string]string `yaml:"per_feature_override,omitempty"`
}

var _ WeightResolver = ExampleWeightMap{}

// WeightColumn returns the weight column of the feature at path, or "" when
// the feature is not weighted.
func (m ExampleWeightMap) WeightColumn(path FeaturePath) string {
	if col, ok := m.PerFeatureOverride[path.String()]; ok {
		return col
	}
	return m.Weight
}

func (m ExampleWeightMap) IsWeighted(path FeaturePath) bool {
	return m.WeightColumn(path) != ""
}

func (m ExampleWeightMap) Weights(rec arrow.Record, path FeaturePath) ([]float64, error) {
	name := m.WeightColumn(path)
	if name == "" {
		return nil, fmt.Errorf("feature %s is not weighted", path)
	}
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingWeightColumn, name)
	}
	weights, err := exampleWeights(rec.Column(indices[0]))
	if err != nil {
		return nil, fmt.Errorf("weight column %q: %w", name, err)
	}
	return weights, nil
}

// exampleWeights reads one weight per row from a numeric column or from a
// list column whose rows hold exactly one numeric value.
func exampleWeights(col arrow.Array) ([]float64, error) {
	values := col
	list, isList := col.(array.ListLike)
	if isList {
		values = list.ListValues()
	}
	value, err := numericAccessor(values)
	if err != nil {
		return nil, err
	}
	weights := make([]float64, col.Len())
	for i := range weights {
		if col.IsNull(i) {
			return nil, fmt.Errorf("%w: row %d has no weight", ErrInvalidExampleWeight, i)
		}
		j := i
		if isList {
			start, end := list.ValueOffsets(i)
			if end-start != 1 {
				return nil, fmt.Errorf("%w: row %d has %d weights", ErrInvalidExampleWeight, i, end-start)
			}
			j = int(start)
		}
		if values.IsNull(j) {
			return nil, fmt.Errorf("%w: row %d has a null weight", ErrInvalidExampleWeight, i)
		}
		weights[i] = value(j)
	}
	return weights, nil
}

func numericAccessor(arr arrow.Array) (func(int) float64, error) {
	switch a := arr.(type) {
	case *array.Int8:
		return numeric[int8](a), nil
	case *array.Int16:
		return numeric[int16](a), nil
	case *array.Int32:
		return numeric[int32](a), nil
	case *array.Int64:
		return numeric[int64](a), nil
	case *array.Uint8:
		return numeric[uint8](a), nil
	case *array.Uint16:
		return numeric[uint16](a), nil
	case *array.Uint32:
		return numeric[uint32](a), nil
	case *array.Uint64:
		return numeric[uint64](a), nil
	case *array.Float32:
		return numeric[float32](a), nil
	case *array.Float64:
		return numeric[float64](a), nil
	}
	return nil, fmt.Errorf("%w: %s is not numeric", ErrInvalidExampleWeight, arr.DataType())
}

func numeric[T constraints.Integer | constraints.Float](a valuer[T]) func(int) float64 {
	return func(i int) float64 {
		return float64(a.Value(i))
	}
}

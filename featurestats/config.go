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
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/apache/datasketches-featurestats-go/frequencies"
	"github.com/apache/datasketches-featurestats-go/kmv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config sizes the sketches of every summary and controls the report.
type Config struct {
	// Number of most frequent values listed as top values.
	NumTopValues int `yaml:"num_top_values"`
	// Number of buckets of the rank histogram.
	NumRankHistogramBuckets int `yaml:"num_rank_histogram_buckets"`
	// Minimum count of a value to be listed.
	FrequencyThreshold float64 `yaml:"frequency_threshold"`
	// Minimum weighted count of a value to be listed in the weighted views.
	WeightedFrequencyThreshold float64 `yaml:"weighted_frequency_threshold"`
	NumMisraGriesBuckets       int     `yaml:"num_misragries_buckets"`
	NumKMVBuckets              int     `yaml:"num_kmv_buckets"`
	// Report the estimates as custom statistics instead of string statistics.
	StoreOutputInCustomStats bool `yaml:"store_output_in_custom_stats"`
	// Distinct sketch kind, DistinctSketchKMV or DistinctSketchHLL.
	DistinctSketch string           `yaml:"distinct_sketch"`
	Weights        ExampleWeightMap `yaml:"weights"`
}

func DefaultConfig() Config {
	return Config{
		NumTopValues:               2,
		NumRankHistogramBuckets:    128,
		FrequencyThreshold:         1,
		WeightedFrequencyThreshold: 1.0,
		NumMisraGriesBuckets:       128,
		NumKMVBuckets:              128,
		DistinctSketch:             DistinctSketchKMV,
	}
}

// MisraGriesBuckets returns the number of items tracked by each frequency
// sketch, large enough to fill both the top values and the rank histogram.
func (c Config) MisraGriesBuckets() int {
	return max(c.NumMisraGriesBuckets, c.NumTopValues, c.NumRankHistogramBuckets)
}

func (c Config) Validate() error {
	switch {
	case c.NumTopValues < 0:
		return fmt.Errorf("%w: num_top_values must not be negative: %d", ErrInvalidConfig, c.NumTopValues)
	case c.NumRankHistogramBuckets < 0:
		return fmt.Errorf("%w: num_rank_histogram_buckets must not be negative: %d", ErrInvalidConfig, c.NumRankHistogramBuckets)
	case c.NumMisraGriesBuckets < 1 || c.MisraGriesBuckets() > frequencies.MaxNumBuckets:
		return fmt.Errorf("%w: num_misragries_buckets must be in [1, %d]: %d", ErrInvalidConfig, frequencies.MaxNumBuckets, c.MisraGriesBuckets())
	case c.NumKMVBuckets < kmv.MinK || c.NumKMVBuckets > kmv.MaxK:
		return fmt.Errorf("%w: num_kmv_buckets must be in [%d, %d]: %d", ErrInvalidConfig, kmv.MinK, kmv.MaxK, c.NumKMVBuckets)
	case math.IsNaN(c.FrequencyThreshold) || math.IsNaN(c.WeightedFrequencyThreshold):
		return fmt.Errorf("%w: frequency thresholds must be numbers", ErrInvalidConfig)
	case c.DistinctSketch != DistinctSketchKMV && c.DistinctSketch != DistinctSketchHLL:
		return fmt.Errorf("%w: unknown distinct_sketch %q", ErrInvalidConfig, c.DistinctSketch)
	}
	return nil
}

// LoadConfig decodes a YAML configuration over DefaultConfig and validates
// it. Unknown fields are errors.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfigFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := LoadConfig(bytes.NewReader(b))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

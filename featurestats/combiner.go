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

// Package featurestats computes approximate per-feature distinct counts and
// top-k values, unweighted and weighted, over arrow record batches.
//
// A StatsCombiner follows the combiner protocol of data-parallel engines:
// each worker folds its partition into an Accumulator with AddInput, the
// accumulators are merged with MergeAccumulators in any order and grouping,
// and ExtractOutput turns the merged state into a report. Memory per feature
// is bounded by the configured sketch sizes.
package featurestats

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/apache/datasketches-featurestats-go/schema"
	"github.com/apache/datasketches-featurestats-go/statistics"
)

var ErrAccumulatorClosed = errors.New("accumulator is closed")

type accumulatorState int

const (
	accumulating accumulatorState = iota
	mergedAway
	finalized
)

func (s accumulatorState) String() string {
	switch s {
	case mergedAway:
		return "merged away"
	case finalized:
		return "finalized"
	}
	return "accumulating"
}

type featureSummary struct {
	path    FeaturePath
	summary *CombinedSummary
}

// Accumulator is the partial state of a StatsCombiner: one summary per
// feature. It is not safe for concurrent use.
type Accumulator struct {
	features map[string]*featureSummary
	state    accumulatorState
}

// Len returns the number of features with a summary.
func (a *Accumulator) Len() int {
	return len(a.features)
}

// Paths returns the features with a summary, ordered by path.
func (a *Accumulator) Paths() []FeaturePath {
	out := make([]FeaturePath, 0, len(a.features))
	for _, fs := range a.sorted() {
		out = append(out, fs.path)
	}
	return out
}

// Summary returns the summary of the feature at path, or nil.
func (a *Accumulator) Summary(path FeaturePath) *CombinedSummary {
	if fs, ok := a.features[path.Key()]; ok {
		return fs.summary
	}
	return nil
}

func (a *Accumulator) sorted() []*featureSummary {
	out := make([]*featureSummary, 0, len(a.features))
	for _, fs := range a.features {
		out = append(out, fs)
	}
	slices.SortFunc(out, func(x, y *featureSummary) int {
		if c := strings.Compare(x.path.String(), y.path.String()); c != 0 {
			return c
		}
		return strings.Compare(x.path.Key(), y.path.Key())
	})
	return out
}

func (a *Accumulator) checkState(allowed ...accumulatorState) error {
	if slices.Contains(allowed, a.state) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAccumulatorClosed, a.state)
}

// StatsCombiner computes top-k and uniques statistics for categorical integer
// features and string features.
type StatsCombiner struct {
	cfg         Config
	categorical PathSet
	bytes       PathSet
	weights     WeightResolver
	observer    Observer
	logger      *zap.Logger
	factory     SketchFactory
}

type statsCombinerOptions struct {
	cfg         Config
	categorical PathSet
	bytes       PathSet
	weights     WeightResolver
	weightsSet  bool
	observer    Observer
	logger      *zap.Logger
	factory     SketchFactory
}

type StatsCombinerOptionFunc func(*statsCombinerOptions)

// WithConfig sets the sketch sizes and report parameters.
func WithConfig(cfg Config) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		opts.cfg = cfg
	}
}

// WithCategoricalFeatures declares integer features whose values are categories.
func WithCategoricalFeatures(paths ...FeaturePath) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		for _, p := range paths {
			opts.categorical.Add(p)
		}
	}
}

// WithBytesFeatures declares string features that hold raw bytes. They are
// never summarized.
func WithBytesFeatures(paths ...FeaturePath) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		for _, p := range paths {
			opts.bytes.Add(p)
		}
	}
}

// WithSchema declares the categorical and bytes features of s.
func WithSchema(s *schema.Schema) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		for _, p := range s.CategoricalNumericFeatures() {
			opts.categorical.Add(p)
		}
		for _, p := range s.BytesFeatures() {
			opts.bytes.Add(p)
		}
	}
}

// WithWeightResolver replaces the weight columns of the configuration. A nil
// resolver makes every feature unweighted.
func WithWeightResolver(r WeightResolver) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		opts.weights = r
		opts.weightsSet = true
	}
}

func WithObserver(o Observer) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		opts.observer = o
	}
}

func WithLogger(l *zap.Logger) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		opts.logger = l
	}
}

// WithSketchFactory replaces the sketches built from the configuration.
func WithSketchFactory(f SketchFactory) StatsCombinerOptionFunc {
	return func(opts *statsCombinerOptions) {
		opts.factory = f
	}
}

func NewStatsCombiner(opts ...StatsCombinerOptionFunc) (*StatsCombiner, error) {
	options := &statsCombinerOptions{
		cfg:         DefaultConfig(),
		categorical: NewPathSet(),
		bytes:       NewPathSet(),
		observer:    nopObserver{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.cfg.Validate(); err != nil {
		return nil, err
	}
	if !options.weightsSet {
		options.weights = options.cfg.Weights
	}
	if options.factory == nil {
		f, err := NewSketchFactory(options.cfg)
		if err != nil {
			return nil, err
		}
		options.factory = f
	}
	if options.observer == nil {
		options.observer = nopObserver{}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	return &StatsCombiner{
		cfg:         options.cfg,
		categorical: options.categorical,
		bytes:       options.bytes,
		weights:     options.weights,
		observer:    options.observer,
		logger:      options.logger,
		factory:     options.factory,
	}, nil
}

func (c *StatsCombiner) Config() Config {
	return c.cfg
}

// CreateAccumulator returns a new empty accumulator.
func (c *StatsCombiner) CreateAccumulator() *Accumulator {
	return &Accumulator{features: make(map[string]*featureSummary)}
}

// AddInput folds the eligible features of rec into acc.
func (c *StatsCombiner) AddInput(acc *Accumulator, rec arrow.Record) error {
	if err := acc.checkState(accumulating); err != nil {
		return err
	}
	return enumerateLeaves(rec, func(l leafArray) error {
		featureType, ok, err := featureTypeOf(l.array.DataType())
		if err != nil {
			return fmt.Errorf("feature %s: %w", l.path, err)
		}
		if !ok || !IsEligible(l.path, featureType, c.categorical, c.bytes) {
			return nil
		}
		weighted := c.isWeighted(l.path)
		var exampleWeights []float64
		if weighted {
			exampleWeights, err = c.weights.Weights(rec, l.path)
			if err != nil {
				return fmt.Errorf("feature %s: %w", l.path, err)
			}
			if len(exampleWeights) != int(rec.NumRows()) {
				return fmt.Errorf("feature %s: %w: %d rows, %d weights", l.path, ErrWeightsLengthMismatch, rec.NumRows(), len(exampleWeights))
			}
		}
		tokens, rows, err := leafTokens(l)
		if err != nil {
			return err
		}
		var weights []float64
		if weighted {
			weights = make([]float64, len(rows))
			for i, row := range rows {
				weights[i] = exampleWeights[row]
			}
		}
		summary, err := c.summaryFor(acc, l.path, weighted)
		if err != nil {
			return err
		}
		if err := summary.Add(tokens, weights); err != nil {
			return fmt.Errorf("feature %s: %w", l.path, err)
		}
		return nil
	})
}

func (c *StatsCombiner) isWeighted(path FeaturePath) bool {
	return c.weights != nil && c.weights.IsWeighted(path)
}

func (c *StatsCombiner) summaryFor(acc *Accumulator, path FeaturePath, weighted bool) (*CombinedSummary, error) {
	key := path.Key()
	if fs, ok := acc.features[key]; ok {
		return fs.summary, nil
	}
	summary, err := c.newSummary(path, weighted)
	if err != nil {
		return nil, err
	}
	acc.features[key] = &featureSummary{path: path, summary: summary}
	return summary, nil
}

func (c *StatsCombiner) newSummary(path FeaturePath, weighted bool) (*CombinedSummary, error) {
	distinct, err := c.factory.NewDistinctSketch()
	if err != nil {
		return nil, err
	}
	unweighted, err := c.factory.NewTopKSketch()
	if err != nil {
		return nil, err
	}
	var weightedSketch TopKSketch
	if weighted {
		if weightedSketch, err = c.factory.NewTopKSketch(); err != nil {
			return nil, err
		}
	}
	c.observer.SummaryCreated(SummaryInfo{
		Path:                    path,
		Weighted:                weighted,
		NumTopValues:            c.cfg.NumTopValues,
		NumRankHistogramBuckets: c.cfg.NumRankHistogramBuckets,
		NumMisraGriesBuckets:    c.cfg.MisraGriesBuckets(),
		NumKMVBuckets:           c.cfg.NumKMVBuckets,
	})
	c.logger.Debug("created feature summary",
		zap.Stringer("feature", path),
		zap.Bool("weighted", weighted))
	return NewCombinedSummary(distinct, unweighted, weightedSketch), nil
}

// MergeAccumulators merges accs into a new accumulator. A summary is adopted
// as is when the result has none for its feature yet. The sources are
// consumed and cannot be used afterwards; nil sources are skipped.
func (c *StatsCombiner) MergeAccumulators(accs ...*Accumulator) (*Accumulator, error) {
	result := c.CreateAccumulator()
	for _, acc := range accs {
		if acc == nil {
			continue
		}
		if err := acc.checkState(accumulating); err != nil {
			return nil, err
		}
		for key, fs := range acc.features {
			existing, ok := result.features[key]
			if !ok {
				result.features[key] = fs
				continue
			}
			if err := existing.summary.Merge(fs.summary); err != nil {
				return nil, fmt.Errorf("feature %s: %w", fs.path, err)
			}
		}
		acc.features = nil
		acc.state = mergedAway
	}
	return result, nil
}

// ExtractOutput builds one record per feature that received at least one
// value, ordered by feature path.
func (c *StatsCombiner) ExtractOutput(acc *Accumulator) (*statistics.DatasetFeatureStatistics, error) {
	if err := acc.checkState(accumulating, finalized); err != nil {
		return nil, err
	}
	acc.state = finalized
	makeStats := statistics.MakeFeatureStatsTopKUniques
	if c.cfg.StoreOutputInCustomStats {
		makeStats = statistics.MakeFeatureStatsTopKUniquesCustomStats
	}
	result := &statistics.DatasetFeatureStatistics{}
	for _, fs := range acc.sorted() {
		est, err := fs.summary.Estimate()
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", fs.path, err)
		}
		if len(est.TopKUnweighted) == 0 {
			continue
		}
		params := statistics.TopKUniquesParams{
			Path:                       fs.path,
			IsCategorical:              c.categorical.Contains(fs.path),
			NumTopValues:               c.cfg.NumTopValues,
			NumRankHistogramBuckets:    c.cfg.NumRankHistogramBuckets,
			FrequencyThreshold:         c.cfg.FrequencyThreshold,
			WeightedFrequencyThreshold: c.cfg.WeightedFrequencyThreshold,
		}
		result.Features = append(result.Features, makeStats(params, est.Distinct, est.TopKUnweighted, est.TopKWeighted))
	}
	return result, nil
}

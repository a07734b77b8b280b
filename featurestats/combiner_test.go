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
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/apache/datasketches-featurestats-go/schema"
	"github.com/apache/datasketches-featurestats-go/statistics"
)

func newTestCombiner(t *testing.T, opts ...StatsCombinerOptionFunc) *StatsCombiner {
	c, err := NewStatsCombiner(opts...)
	require.NoError(t, err)
	return c
}

func runCombiner(t *testing.T, c *StatsCombiner, recs ...arrow.Record) *statistics.DatasetFeatureStatistics {
	acc := c.CreateAccumulator()
	for _, rec := range recs {
		require.NoError(t, c.AddInput(acc, rec))
	}
	out, err := c.ExtractOutput(acc)
	require.NoError(t, err)
	return out
}

func TestStatsCombinerStringFeature(t *testing.T) {
	mem := newAllocator(t)
	c := newTestCombiner(t)

	out := runCombiner(t, c, stringRecord(t, mem, "s", "a", "a", "b", "c"))
	require.Len(t, out.Features, 1)
	f := out.Feature("s")
	require.NotNil(t, f)
	assert.Equal(t, statistics.FeatureTypeSTRING, f.Type)
	require.NotNil(t, f.StringStats)
	assert.Equal(t, uint64(3), f.StringStats.Unique)
	assert.Equal(t, []*statistics.FreqAndValue{
		{Value: "a", Frequency: 2},
		{Value: "b", Frequency: 1},
	}, f.StringStats.TopValues)
	assert.Equal(t, []*statistics.RankHistogramBucket{
		{LowRank: 0, HighRank: 0, Label: "a", SampleCount: 2},
		{LowRank: 1, HighRank: 1, Label: "b", SampleCount: 1},
		{LowRank: 2, HighRank: 2, Label: "c", SampleCount: 1},
	}, f.StringStats.RankHistogram.Buckets)
	assert.Nil(t, f.StringStats.WeightedStringStats)
	assert.Empty(t, f.CustomStats)
}

func TestStatsCombinerWeightedFeature(t *testing.T) {
	mem := newAllocator(t)
	cfg := DefaultConfig()
	cfg.Weights = ExampleWeightMap{Weight: "w"}
	c := newTestCombiner(t, WithConfig(cfg))

	out := runCombiner(t, c, weightedStringRecord(t, mem, "s", []string{"x", "y"}, []float64{10, 1}))
	// the float weight column is not a top-k feature
	require.Len(t, out.Features, 1)
	f := out.Feature("s")
	require.NotNil(t, f)
	assert.Equal(t, uint64(2), f.StringStats.Unique)
	assert.Equal(t, []string{"x", "y"}, topValueLabels(f.StringStats.TopValues))
	require.NotNil(t, f.StringStats.WeightedStringStats)
	assert.Equal(t, []*statistics.FreqAndValue{
		{Value: "x", Frequency: 10},
		{Value: "y", Frequency: 1},
	}, f.StringStats.WeightedStringStats.TopValues)
}

func TestStatsCombinerCustomStats(t *testing.T) {
	mem := newAllocator(t)
	cfg := DefaultConfig()
	cfg.StoreOutputInCustomStats = true
	cfg.Weights = ExampleWeightMap{Weight: "w"}
	c := newTestCombiner(t, WithConfig(cfg))

	out := runCombiner(t, c, weightedStringRecord(t, mem, "s", []string{"x", "x", "y"}, []float64{1, 2, 4}))
	f := out.Feature("s")
	require.NotNil(t, f)
	assert.Nil(t, f.StringStats)

	uniques := f.CustomStat(statistics.NumUniquesName)
	require.NotNil(t, uniques)
	assert.Equal(t, 2.0, uniques.Num)

	topk := f.CustomStat(statistics.TopKRankHistogramName)
	require.NotNil(t, topk)
	assert.Equal(t, "x", topk.RankHistogram.Buckets[0].Label)
	assert.Equal(t, 2.0, topk.RankHistogram.Buckets[0].SampleCount)

	weighted := f.CustomStat(statistics.WeightedTopKRankHistogramName)
	require.NotNil(t, weighted)
	assert.Equal(t, "y", weighted.RankHistogram.Buckets[0].Label)
	assert.Equal(t, 4.0, weighted.RankHistogram.Buckets[0].SampleCount)
}

func TestStatsCombinerEligibility(t *testing.T) {
	mem := newAllocator(t)
	fields := []arrow.Field{
		{Name: "cat", Type: arrow.PrimitiveTypes.Int64},
		{Name: "num", Type: arrow.PrimitiveTypes.Int64},
		{Name: "f", Type: arrow.PrimitiveTypes.Float64},
		{Name: "img", Type: arrow.BinaryTypes.Binary},
		{Name: "n", Type: arrow.Null, Nullable: true},
	}
	rec := buildRecord(t, mem, fields, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int64Builder).AppendValues([]int64{7, 7, -1}, nil)
		b.Field(1).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
		b.Field(2).(*array.Float64Builder).AppendValues([]float64{1, 2, 3}, nil)
		b.Field(3).(*array.BinaryBuilder).AppendValues([][]byte{{0xff}, {0xfe}, {0xfd}}, nil)
		b.Field(4).(*array.NullBuilder).AppendNulls(3)
	})

	c := newTestCombiner(t,
		WithCategoricalFeatures(FeaturePath{"cat"}),
		WithBytesFeatures(FeaturePath{"img"}))
	out := runCombiner(t, c, rec)

	require.Len(t, out.Features, 1)
	f := out.Feature("cat")
	require.NotNil(t, f)
	assert.Equal(t, statistics.FeatureTypeINT, f.Type)
	assert.Equal(t, uint64(2), f.StringStats.Unique)
	assert.Equal(t, []string{"7", "-1"}, topValueLabels(f.StringStats.TopValues))
}

func TestStatsCombinerWithSchema(t *testing.T) {
	mem := newAllocator(t)
	s, err := schema.Load(strings.NewReader(`
feature:
  - name: cat
    type: INT
    int_domain:
      is_categorical: true
  - name: img
    type: BYTES
    image_domain: {}
`))
	require.NoError(t, err)

	rec := buildRecord(t, mem, []arrow.Field{
		{Name: "cat", Type: arrow.PrimitiveTypes.Int32},
		{Name: "img", Type: arrow.BinaryTypes.String},
	}, func(b *array.RecordBuilder) {
		b.Field(0).(*array.Int32Builder).Append(4)
		b.Field(1).(*array.StringBuilder).Append("jpeg")
	})

	out := runCombiner(t, newTestCombiner(t, WithSchema(s)), rec)
	require.Len(t, out.Features, 1)
	assert.NotNil(t, out.Feature("cat"))
}

func TestStatsCombinerNestedFeatures(t *testing.T) {
	mem := newAllocator(t)
	out := runCombiner(t, newTestCombiner(t, WithCategoricalFeatures(FeaturePath{"st", "i"})), nestedRecord(t, mem))

	paths := make([]string, len(out.Features))
	for i, f := range out.Features {
		paths[i] = f.Path.String()
	}
	assert.Equal(t, []string{"s", "st.i", "st.l"}, paths)

	l := out.Feature("st", "l")
	require.NotNil(t, l)
	assert.Equal(t, uint64(3), l.StringStats.Unique)
	for _, b := range l.StringStats.RankHistogram.Buckets {
		assert.NotEqual(t, "hidden", b.Label)
	}
}

func TestStatsCombinerMergeAccumulators(t *testing.T) {
	mem := newAllocator(t)
	c := newTestCombiner(t)

	acc1 := c.CreateAccumulator()
	require.NoError(t, c.AddInput(acc1, stringRecord(t, mem, "s", "p", "p", "p")))
	acc2 := c.CreateAccumulator()
	require.NoError(t, c.AddInput(acc2, stringRecord(t, mem, "s", "q", "q", "q", "q", "q")))
	acc3 := c.CreateAccumulator()
	require.NoError(t, c.AddInput(acc3, stringRecord(t, mem, "other", "z")))

	merged, err := c.MergeAccumulators(acc1, nil, acc2, acc3)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Len())
	assert.Equal(t, []FeaturePath{{"other"}, {"s"}}, merged.Paths())

	out, err := c.ExtractOutput(merged)
	require.NoError(t, err)
	f := out.Feature("s")
	require.NotNil(t, f)
	assert.Equal(t, uint64(2), f.StringStats.Unique)
	assert.Equal(t, []*statistics.FreqAndValue{
		{Value: "q", Frequency: 5},
		{Value: "p", Frequency: 3},
	}, f.StringStats.TopValues)

	t.Run("Sources Are Consumed", func(t *testing.T) {
		assert.ErrorIs(t, c.AddInput(acc1, stringRecord(t, mem, "s", "a")), ErrAccumulatorClosed)
		_, err := c.MergeAccumulators(acc2)
		assert.ErrorIs(t, err, ErrAccumulatorClosed)
		_, err = c.ExtractOutput(acc3)
		assert.ErrorIs(t, err, ErrAccumulatorClosed)
	})

	t.Run("Finalized Accumulator", func(t *testing.T) {
		assert.ErrorIs(t, c.AddInput(merged, stringRecord(t, mem, "s", "a")), ErrAccumulatorClosed)
		_, err := c.MergeAccumulators(merged)
		assert.ErrorIs(t, err, ErrAccumulatorClosed)
		again, err := c.ExtractOutput(merged)
		require.NoError(t, err)
		assert.Equal(t, out, again)
	})
}

func TestStatsCombinerMergeOrderIndependence(t *testing.T) {
	mem := newAllocator(t)
	c := newTestCombiner(t)
	batches := [][]string{{"a", "b", "a"}, {"c", "a"}, {"b", "d", "d", "d"}}

	build := func(order ...int) *statistics.DatasetFeatureStatistics {
		accs := make([]*Accumulator, 0, len(order))
		for _, i := range order {
			acc := c.CreateAccumulator()
			require.NoError(t, c.AddInput(acc, stringRecord(t, mem, "s", batches[i]...)))
			accs = append(accs, acc)
		}
		merged, err := c.MergeAccumulators(accs...)
		require.NoError(t, err)
		out, err := c.ExtractOutput(merged)
		require.NoError(t, err)
		return out
	}

	want := runCombiner(t, c,
		stringRecord(t, mem, "s", batches[0]...),
		stringRecord(t, mem, "s", batches[1]...),
		stringRecord(t, mem, "s", batches[2]...))
	assert.Equal(t, want, build(0, 1, 2))
	assert.Equal(t, want, build(2, 0, 1))

	// merging merged accumulators
	left := c.CreateAccumulator()
	require.NoError(t, c.AddInput(left, stringRecord(t, mem, "s", batches[2]...)))
	inner1 := c.CreateAccumulator()
	require.NoError(t, c.AddInput(inner1, stringRecord(t, mem, "s", batches[0]...)))
	inner2 := c.CreateAccumulator()
	require.NoError(t, c.AddInput(inner2, stringRecord(t, mem, "s", batches[1]...)))
	inner, err := c.MergeAccumulators(inner1, inner2)
	require.NoError(t, err)
	merged, err := c.MergeAccumulators(left, inner)
	require.NoError(t, err)
	out, err := c.ExtractOutput(merged)
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestStatsCombinerEmptyInputs(t *testing.T) {
	mem := newAllocator(t)
	c := newTestCombiner(t)

	t.Run("No Input", func(t *testing.T) {
		out, err := c.ExtractOutput(c.CreateAccumulator())
		require.NoError(t, err)
		assert.Empty(t, out.Features)
	})

	t.Run("Only Nulls", func(t *testing.T) {
		rec := buildRecord(t, mem, []arrow.Field{{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true}},
			func(b *array.RecordBuilder) {
				b.Field(0).(*array.StringBuilder).AppendNulls(3)
			})
		acc := c.CreateAccumulator()
		require.NoError(t, c.AddInput(acc, rec))
		// the summary exists but has nothing to report
		assert.Equal(t, 1, acc.Len())
		out, err := c.ExtractOutput(acc)
		require.NoError(t, err)
		assert.Empty(t, out.Features)
	})

	t.Run("Below Threshold", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FrequencyThreshold = 5
		out := runCombiner(t, newTestCombiner(t, WithConfig(cfg)), stringRecord(t, mem, "s", "a"))
		f := out.Feature("s")
		require.NotNil(t, f)
		assert.Equal(t, uint64(1), f.StringStats.Unique)
		assert.Empty(t, f.StringStats.TopValues)
		assert.Empty(t, f.StringStats.RankHistogram.Buckets)
	})
}

func TestStatsCombinerBoundedMemory(t *testing.T) {
	mem := newAllocator(t)
	cfg := DefaultConfig()
	cfg.NumMisraGriesBuckets = 16
	cfg.NumRankHistogramBuckets = 8
	c := newTestCombiner(t, WithConfig(cfg))

	acc := c.CreateAccumulator()
	for batch := 0; batch < 10; batch++ {
		values := make([]string, 0, 2000)
		for i := 0; i < 1000; i++ {
			values = append(values, fmt.Sprintf("v%d", batch*1000+i))
		}
		for i := 0; i < 1000; i++ {
			values = append(values, "hot")
		}
		require.NoError(t, c.AddInput(acc, stringRecord(t, mem, "s", values...)))
	}

	est, err := acc.Summary(FeaturePath{"s"}).Estimate()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(est.TopKUnweighted), cfg.MisraGriesBuckets())
	assert.Equal(t, "hot", est.TopKUnweighted[0].Value)
	assert.GreaterOrEqual(t, est.TopKUnweighted[0].Count, 10000.0)
	assert.InEpsilon(t, 10001, float64(est.Distinct), 0.3)
}

type fixedWeights []float64

func (w fixedWeights) IsWeighted(FeaturePath) bool { return true }

func (w fixedWeights) Weights(arrow.Record, FeaturePath) ([]float64, error) { return w, nil }

func TestStatsCombinerWeightErrors(t *testing.T) {
	mem := newAllocator(t)

	t.Run("Length Mismatch", func(t *testing.T) {
		c := newTestCombiner(t, WithWeightResolver(fixedWeights{1}))
		err := c.AddInput(c.CreateAccumulator(), stringRecord(t, mem, "s", "a", "b"))
		assert.ErrorIs(t, err, ErrWeightsLengthMismatch)
	})

	t.Run("Missing Column", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Weights = ExampleWeightMap{Weight: "w"}
		c := newTestCombiner(t, WithConfig(cfg))
		err := c.AddInput(c.CreateAccumulator(), stringRecord(t, mem, "s", "a"))
		assert.ErrorIs(t, err, ErrMissingWeightColumn)
	})

	t.Run("Nil Resolver", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Weights = ExampleWeightMap{Weight: "w"}
		c := newTestCombiner(t, WithConfig(cfg), WithWeightResolver(nil))
		acc := c.CreateAccumulator()
		require.NoError(t, c.AddInput(acc, stringRecord(t, mem, "s", "a")))
		assert.False(t, acc.Summary(FeaturePath{"s"}).Weighted())
	})
}

func TestStatsCombinerUnsupportedType(t *testing.T) {
	mem := newAllocator(t)
	rec := buildRecord(t, mem, []arrow.Field{{Name: "b", Type: arrow.FixedWidthTypes.Boolean}},
		func(b *array.RecordBuilder) {
			b.Field(0).(*array.BooleanBuilder).Append(true)
		})
	c := newTestCombiner(t)
	err := c.AddInput(c.CreateAccumulator(), rec)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestStatsCombinerInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumKMVBuckets = 0
	_, err := NewStatsCombiner(WithConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStatsCombinerObserver(t *testing.T) {
	mem := newAllocator(t)
	core, logs := observer.New(zapcore.DebugLevel)

	var created []SummaryInfo
	cfg := DefaultConfig()
	cfg.Weights = ExampleWeightMap{Weight: "w"}
	c := newTestCombiner(t,
		WithConfig(cfg),
		WithLogger(zap.New(core)),
		WithObserver(ObserverFunc(func(info SummaryInfo) {
			created = append(created, info)
		})))

	acc := c.CreateAccumulator()
	rec := weightedStringRecord(t, mem, "s", []string{"a"}, []float64{1})
	require.NoError(t, c.AddInput(acc, rec))
	require.NoError(t, c.AddInput(acc, rec))

	require.Len(t, created, 1)
	assert.Equal(t, SummaryInfo{
		Path:                    FeaturePath{"s"},
		Weighted:                true,
		NumTopValues:            2,
		NumRankHistogramBuckets: 128,
		NumMisraGriesBuckets:    128,
		NumKMVBuckets:           128,
	}, created[0])

	entries := logs.FilterMessage("created feature summary").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "s", entries[0].ContextMap()["feature"])
	assert.Equal(t, true, entries[0].ContextMap()["weighted"])
}

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

package metrics

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apache/datasketches-featurestats-go/featurestats"
)

func histogram(t *testing.T, reg *prometheus.Registry, name string) *dto.Histogram {
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetHistogram()
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewObserver(reg)

	o.SummaryCreated(featurestats.SummaryInfo{
		Path:                    featurestats.FeaturePath{"a"},
		NumTopValues:            2,
		NumRankHistogramBuckets: 128,
		NumMisraGriesBuckets:    128,
		NumKMVBuckets:           64,
	})
	o.SummaryCreated(featurestats.SummaryInfo{
		Path:                    featurestats.FeaturePath{"b"},
		Weighted:                true,
		NumTopValues:            2,
		NumRankHistogramBuckets: 128,
		NumMisraGriesBuckets:    128,
		NumKMVBuckets:           64,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.created.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.created.WithLabelValues("true")))

	h := histogram(t, reg, "featurestats_topk_uniques_num_kmv_buckets")
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.Equal(t, 128.0, h.GetSampleSum())

	h = histogram(t, reg, "featurestats_topk_uniques_num_top_values")
	assert.Equal(t, 4.0, h.GetSampleSum())
}

func TestObserverWiredIntoCombiner(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	reg := prometheus.NewRegistry()
	c, err := featurestats.NewStatsCombiner(featurestats.WithObserver(NewObserver(reg)))
	require.NoError(t, err)

	b := array.NewRecordBuilder(mem, arrow.NewSchema([]arrow.Field{
		{Name: "s1", Type: arrow.BinaryTypes.String},
		{Name: "s2", Type: arrow.BinaryTypes.String},
	}, nil))
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"a", "b"}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"c", "d"}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	acc := c.CreateAccumulator()
	require.NoError(t, c.AddInput(acc, rec))
	require.NoError(t, c.AddInput(acc, rec))

	count, err := testutil.GatherAndCount(reg, "featurestats_topk_uniques_summaries_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(2), histogram(t, reg, "featurestats_topk_uniques_num_mg_buckets").GetSampleCount())
}

func TestNewObserverNilRegisterer(t *testing.T) {
	assert.NotPanics(t, func() {
		NewObserver(nil)
		NewObserver(nil)
	})
}

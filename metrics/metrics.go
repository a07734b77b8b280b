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

// Package metrics exports the sketch sizes of the summaries created by a
// featurestats.StatsCombiner as prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/apache/datasketches-featurestats-go/featurestats"
)

const (
	namespace = "featurestats"
	subsystem = "topk_uniques"
)

// Observer records every summary created by a combiner.
type Observer struct {
	created                 *prometheus.CounterVec
	numTopValues            prometheus.Histogram
	numRankHistogramBuckets prometheus.Histogram
	numMisraGriesBuckets    prometheus.Histogram
	numKMVBuckets           prometheus.Histogram
}

var _ featurestats.Observer = (*Observer)(nil)

// NewObserver registers the metrics with registerer. A nil registerer gets a
// private registry.
func NewObserver(registerer prometheus.Registerer) *Observer {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	sizeHistogram := func(name, help string) prometheus.Histogram {
		return factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.ExponentialBuckets(1, 2, 25),
		})
	}
	return &Observer{
		created: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "summaries_created_total",
				Help:      "Number of feature summaries created.",
			},
			[]string{"weighted"},
		),
		numTopValues: sizeHistogram("num_top_values",
			"Number of top values reported per feature."),
		numRankHistogramBuckets: sizeHistogram("num_rank_histogram_buckets",
			"Number of rank histogram buckets reported per feature."),
		numMisraGriesBuckets: sizeHistogram("num_mg_buckets",
			"Number of items tracked by each frequency sketch."),
		numKMVBuckets: sizeHistogram("num_kmv_buckets",
			"Number of hashes kept by each distinct count sketch."),
	}
}

func (o *Observer) SummaryCreated(info featurestats.SummaryInfo) {
	o.created.WithLabelValues(strconv.FormatBool(info.Weighted)).Inc()
	o.numTopValues.Observe(float64(info.NumTopValues))
	o.numRankHistogramBuckets.Observe(float64(info.NumRankHistogramBuckets))
	o.numMisraGriesBuckets.Observe(float64(info.NumMisraGriesBuckets))
	o.numKMVBuckets.Observe(float64(info.NumKMVBuckets))
}

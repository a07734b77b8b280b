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

package statistics

const (
	TopKRankHistogramName         = "topk_sketch_rank_histogram"
	WeightedTopKRankHistogramName = "weighted_topk_sketch_rank_histogram"
	NumUniquesName                = "uniques_sketch_num_uniques"
)

// TopKUniquesParams controls how sketch estimates are turned into a report record.
type TopKUniquesParams struct {
	Path          []string
	IsCategorical bool
	// NumTopValues is the number of values listed as top values.
	NumTopValues int
	// NumRankHistogramBuckets is the number of values listed in the rank histogram.
	NumRankHistogramBuckets int
	// Values with a smaller count are left out of the unweighted lists.
	FrequencyThreshold float64
	// Values with a smaller weighted count are left out of the weighted lists.
	WeightedFrequencyThreshold float64
}

// MakeFeatureStatsTopKUniques builds a record that stores the number of uniques
// and the top values in the string statistics of the feature. valueCounts and
// weightedValueCounts must be ordered by count, largest first. The weighted view
// is only added when weightedValueCounts is not empty.
func MakeFeatureStatsTopKUniques(params TopKUniquesParams, numUnique uint64, valueCounts, weightedValueCounts []ValueCount) *FeatureNameStatistics {
	result := newFeatureNameStatistics(params)
	unweighted := filterByThreshold(valueCounts, params.FrequencyThreshold)
	result.StringStats = &StringStatistics{
		Unique:        numUnique,
		TopValues:     makeTopValues(unweighted, params.NumTopValues),
		RankHistogram: makeRankHistogram(unweighted, params.NumRankHistogramBuckets),
	}
	if len(weightedValueCounts) > 0 {
		weighted := filterByThreshold(weightedValueCounts, params.WeightedFrequencyThreshold)
		result.StringStats.WeightedStringStats = &WeightedStringStatistics{
			TopValues:     makeTopValues(weighted, params.NumTopValues),
			RankHistogram: makeRankHistogram(weighted, params.NumRankHistogramBuckets),
		}
	}
	return result
}

// MakeFeatureStatsTopKUniquesCustomStats builds a record that stores the same
// estimates as custom statistics: the rank histograms and the number of uniques.
func MakeFeatureStatsTopKUniquesCustomStats(params TopKUniquesParams, numUnique uint64, valueCounts, weightedValueCounts []ValueCount) *FeatureNameStatistics {
	result := newFeatureNameStatistics(params)
	result.CustomStats = append(result.CustomStats, &CustomStatistic{
		Name: TopKRankHistogramName,
		RankHistogram: makeRankHistogram(
			filterByThreshold(valueCounts, params.FrequencyThreshold), params.NumRankHistogramBuckets),
	})
	if len(weightedValueCounts) > 0 {
		result.CustomStats = append(result.CustomStats, &CustomStatistic{
			Name: WeightedTopKRankHistogramName,
			RankHistogram: makeRankHistogram(
				filterByThreshold(weightedValueCounts, params.WeightedFrequencyThreshold), params.NumRankHistogramBuckets),
		})
	}
	result.CustomStats = append(result.CustomStats, &CustomStatistic{
		Name: NumUniquesName,
		Num:  float64(numUnique),
	})
	return result
}

func newFeatureNameStatistics(params TopKUniquesParams) *FeatureNameStatistics {
	featureType := FeatureTypeSTRING
	if params.IsCategorical {
		featureType = FeatureTypeINT
	}
	return &FeatureNameStatistics{
		Path: &Path{Step: append([]string(nil), params.Path...)},
		Type: featureType,
	}
}

func filterByThreshold(valueCounts []ValueCount, threshold float64) []ValueCount {
	out := make([]ValueCount, 0, len(valueCounts))
	for _, vc := range valueCounts {
		if vc.Count >= threshold {
			out = append(out, vc)
		}
	}
	return out
}

func makeTopValues(valueCounts []ValueCount, n int) []*FreqAndValue {
	n = max(0, min(n, len(valueCounts)))
	out := make([]*FreqAndValue, 0, n)
	for _, vc := range valueCounts[:n] {
		out = append(out, &FreqAndValue{Value: vc.Value, Frequency: vc.Count})
	}
	return out
}

func makeRankHistogram(valueCounts []ValueCount, n int) *RankHistogram {
	n = max(0, min(n, len(valueCounts)))
	h := &RankHistogram{Buckets: make([]*RankHistogramBucket, 0, n)}
	for rank, vc := range valueCounts[:n] {
		h.Buckets = append(h.Buckets, &RankHistogramBucket{
			LowRank:     uint64(rank),
			HighRank:    uint64(rank),
			Label:       vc.Value,
			SampleCount: vc.Count,
		})
	}
	return h
}

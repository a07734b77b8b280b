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

// Package statistics holds the per-feature report records produced from
// top-k and uniques sketches. The types mirror the shape of the dataset
// statistics protocol buffers and marshal to the same JSON field names.
package statistics

import (
	"fmt"
	"slices"
	"strings"
)

type FeatureType int32

const (
	FeatureTypeINT FeatureType = iota
	FeatureTypeFLOAT
	FeatureTypeSTRING
	FeatureTypeBYTES
	FeatureTypeSTRUCT
)

var featureTypeNames = [...]string{"INT", "FLOAT", "STRING", "BYTES", "STRUCT"}

func (t FeatureType) String() string {
	if t < 0 || int(t) >= len(featureTypeNames) {
		return fmt.Sprintf("FeatureType(%d)", int32(t))
	}
	return featureTypeNames[t]
}

func (t FeatureType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(featureTypeNames) {
		return nil, fmt.Errorf("unknown feature type %d", int32(t))
	}
	return []byte(t.String()), nil
}

func (t *FeatureType) UnmarshalText(text []byte) error {
	for i, name := range featureTypeNames {
		if strings.EqualFold(name, string(text)) {
			*t = FeatureType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown feature type %q", text)
}

// Path is the sequence of field names leading to a (possibly nested) feature.
type Path struct {
	Step []string `json:"step"`
}

func (p *Path) String() string {
	return strings.Join(p.Step, ".")
}

// ValueCount is a feature value and its (possibly weighted) estimated count.
type ValueCount struct {
	Value string  `json:"value"`
	Count float64 `json:"count"`
}

type DatasetFeatureStatistics struct {
	Features []*FeatureNameStatistics `json:"features,omitempty"`
}

type FeatureNameStatistics struct {
	Path        *Path              `json:"path"`
	Type        FeatureType        `json:"type"`
	StringStats *StringStatistics  `json:"string_stats,omitempty"`
	CustomStats []*CustomStatistic `json:"custom_stats,omitempty"`
}

type StringStatistics struct {
	Unique              uint64                    `json:"unique"`
	TopValues           []*FreqAndValue           `json:"top_values,omitempty"`
	RankHistogram       *RankHistogram            `json:"rank_histogram,omitempty"`
	WeightedStringStats *WeightedStringStatistics `json:"weighted_string_stats,omitempty"`
}

type WeightedStringStatistics struct {
	TopValues     []*FreqAndValue `json:"top_values,omitempty"`
	RankHistogram *RankHistogram  `json:"rank_histogram,omitempty"`
}

type FreqAndValue struct {
	Value     string  `json:"value"`
	Frequency float64 `json:"frequency"`
}

type RankHistogram struct {
	Buckets []*RankHistogramBucket `json:"buckets,omitempty"`
}

type RankHistogramBucket struct {
	LowRank     uint64  `json:"low_rank"`
	HighRank    uint64  `json:"high_rank"`
	Label       string  `json:"label"`
	SampleCount float64 `json:"sample_count"`
}

// CustomStatistic is a named statistic carrying either a number or a rank
// histogram.
type CustomStatistic struct {
	Name          string         `json:"name"`
	Num           float64        `json:"num,omitempty"`
	RankHistogram *RankHistogram `json:"rank_histogram,omitempty"`
}

// Feature returns the record of the feature with the given path, or nil.
func (d *DatasetFeatureStatistics) Feature(steps ...string) *FeatureNameStatistics {
	for _, f := range d.Features {
		if f.Path != nil && slices.Equal(f.Path.Step, steps) {
			return f
		}
	}
	return nil
}

// CustomStat returns the custom statistic with the given name, or nil.
func (f *FeatureNameStatistics) CustomStat(name string) *CustomStatistic {
	for _, c := range f.CustomStats {
		if c.Name == name {
			return c
		}
	}
	return nil
}

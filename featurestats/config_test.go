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
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"Negative Top Values", func(c *Config) { c.NumTopValues = -1 }},
		{"Negative Histogram Buckets", func(c *Config) { c.NumRankHistogramBuckets = -1 }},
		{"Zero Misra-Gries Buckets", func(c *Config) { c.NumMisraGriesBuckets = 0 }},
		{"KMV Buckets Too Small", func(c *Config) { c.NumKMVBuckets = 1 }},
		{"NaN Threshold", func(c *Config) { c.FrequencyThreshold = math.NaN() }},
		{"Unknown Distinct Sketch", func(c *Config) { c.DistinctSketch = "exact" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestMisraGriesBuckets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumMisraGriesBuckets = 4
	cfg.NumRankHistogramBuckets = 10
	cfg.NumTopValues = 20
	assert.Equal(t, 20, cfg.MisraGriesBuckets())
}

func TestLoadConfig(t *testing.T) {
	t.Run("Overrides Defaults", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(`
num_top_values: 5
distinct_sketch: hll
store_output_in_custom_stats: true
weights:
  weight: w
  per_feature_override:
    st.a: w2
`))
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.NumTopValues)
		assert.Equal(t, DistinctSketchHLL, cfg.DistinctSketch)
		assert.True(t, cfg.StoreOutputInCustomStats)
		assert.Equal(t, 128, cfg.NumKMVBuckets)
		assert.Equal(t, "w2", cfg.Weights.WeightColumn(FeaturePath{"st", "a"}))
	})

	t.Run("Empty Document", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("Unknown Field", func(t *testing.T) {
		_, err := LoadConfig(strings.NewReader("num_top_value: 5\n"))
		assert.Error(t, err)
	})

	t.Run("Invalid Value", func(t *testing.T) {
		_, err := LoadConfig(strings.NewReader("num_kmv_buckets: 0\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("num_rank_histogram_buckets: 7\n"), 0o644))
		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.NumRankHistogramBuckets)

		_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

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
	"github.com/apache/datasketches-featurestats-go/statistics"
)

// IsEligible reports whether top-k and uniques statistics are computed for a
// feature: integer features declared categorical, and string features that
// are not declared as raw bytes.
func IsEligible(path FeaturePath, featureType statistics.FeatureType, categoricalInts, bytesFeatures PathSet) bool {
	switch featureType {
	case statistics.FeatureTypeINT:
		return categoricalInts.Contains(path)
	case statistics.FeatureTypeSTRING:
		return !bytesFeatures.Contains(path)
	}
	return false
}

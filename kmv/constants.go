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

package kmv

import (
	"math"

	"github.com/apache/datasketches-featurestats-go/internal"
)

// MaxTheta is the max theta - signed max for compatibility with Java
const MaxTheta uint64 = math.MaxInt64

// MinK is the smallest number of minimum values a sketch may keep
const MinK = 2

// MaxK is the largest number of minimum values a sketch may keep
const MaxK = 1 << 24

// DefaultK is the default number of minimum values
const DefaultK = 128

// DefaultSeed is the default seed for hashing
const DefaultSeed uint64 = internal.DEFAULT_UPDATE_SEED

const (
	// A full table is rebuilt down to k entries once it holds more than this fraction of its slots.
	rebuildThreshold = 15.0 / 16.0

	strideHashBits = 7
	strideMask     = (1 << strideHashBits) - 1
)

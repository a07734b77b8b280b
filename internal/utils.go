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

package internal

import (
	"errors"
	"fmt"
	"math/bits"
)

const (
	InverseGolden = float64(0.6180339887498949025)
)

const (
	DEFAULT_UPDATE_SEED = uint64(9001)
)

// CeilPowerOf2 returns the smallest power of 2 greater than or equal to n.
func CeilPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	topIntPwrOf2 := 1 << 30
	if n >= topIntPwrOf2 {
		return topIntPwrOf2
	}
	return 1 << bits.Len(uint(n-1))
}

// ExactLog2 returns log2 of powerOf2, which must be a positive power of 2.
func ExactLog2(powerOf2 int) (int, error) {
	if !IsPowerOf2(powerOf2) {
		return 0, fmt.Errorf("argument 'powerOf2' must be a positive power of 2")
	}
	return bits.TrailingZeros64(uint64(powerOf2)), nil
}

// IsPowerOf2 returns true if the given number is a power of 2.
func IsPowerOf2(powerOf2 int) bool {
	return powerOf2 > 0 && (powerOf2&(powerOf2-1)) == 0
}

// ComputeSeedHash returns the 16 bit hash of the update seed that is stored in
// serialized sketches, so that sketches built with different seeds are never mixed.
func ComputeSeedHash(seed uint64) (uint16, error) {
	h, _ := HashUint64Murmur3(seed, 0)
	seedHash := uint16(h & 0xFFFF)
	if seedHash == 0 {
		return 0, errors.New("the given seed produced a seed hash of zero, choose another seed")
	}
	return seedHash, nil
}

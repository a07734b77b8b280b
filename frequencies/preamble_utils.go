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

package frequencies

import (
	"encoding/binary"
	"errors"
)

const (
	// Preamble byte addresses
	_PREAMBLE_LONGS_BYTE  = 0
	_SER_VER_BYTE         = 1
	_FAMILY_BYTE          = 2
	_LG_MAX_MAP_SIZE_BYTE = 3
	_LG_CUR_MAP_SIZE_BYTE = 4
	_FLAGS_BYTE           = 5

	_EMPTY_FLAG_MASK = 1

	_SER_VER = 1

	// Preamble longs of an empty sketch: pre0 and the active items / buckets long.
	_EMPTY_PRE_LONGS = 2
)

var errPreambleTooSmall = errors.New("preamble is too small")

func checkPreambleSize(preamble []byte) (int64, error) {
	if len(preamble) < 8 {
		return 0, errPreambleTooSmall
	}
	pre0 := int64(binary.LittleEndian.Uint64(preamble))
	preLongs := int(pre0 & 0x3F)
	required := max(preLongs<<3, 8)
	if len(preamble) < required {
		return 0, errPreambleTooSmall
	}
	return pre0, nil
}

func insertPreLongs(preLongs, pre0 int64) int64 {
	mask := int64(0x3F)
	return (preLongs & mask) | (^mask & pre0)
}

func insertByte(byteAddr int, v, pre0 int64) int64 {
	shift := byteAddr << 3
	mask := int64(0xFF)
	return ((v & mask) << shift) | (^(mask << shift) & pre0)
}

func extractPreLongs(pre0 int64) int {
	return int(pre0 & 0x3F)
}

func extractByte(byteAddr int, pre0 int64) int {
	shift := byteAddr << 3
	return int((pre0 >> shift) & 0xFF)
}

// The second preamble long holds the number of active items in its low half
// and the configured number of buckets in its high half.
func insertActiveItems(activeItems, pre1 int64) int64 {
	mask := int64(0xFFFFFFFF)
	return (activeItems & mask) | (^mask & pre1)
}

func insertNumBuckets(numBuckets, pre1 int64) int64 {
	mask := int64(0xFFFFFFFF)
	return ((numBuckets & mask) << 32) | (mask & pre1)
}

func extractActiveItems(pre1 int64) int {
	return int(pre1 & 0xFFFFFFFF)
}

func extractNumBuckets(pre1 int64) int {
	return int(uint64(pre1) >> 32)
}

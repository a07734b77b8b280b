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
	"errors"
	"math"

	"github.com/apache/datasketches-featurestats-go/internal"
)

var (
	ErrKeyNotFound                = errors.New("key not found")
	ErrKeyNotFoundAndNoEmptySlots = errors.New("key not found and no empty slots")
)

// hashtable holds the retained hash values below theta. Zero marks an empty slot.
// The slice length is fixed when the table is created, which bounds the memory
// of a sketch regardless of how many values it sees.
type hashtable struct {
	entries    []uint64
	theta      uint64
	numEntries uint32
	lgSize     uint8
	k          uint32
}

func newHashtable(k uint32) *hashtable {
	lgSize, _ := internal.ExactLog2(internal.CeilPowerOf2(int(2 * k)))
	return &hashtable{
		entries: make([]uint64, 1<<lgSize),
		theta:   MaxTheta,
		lgSize:  uint8(lgSize),
		k:       k,
	}
}

func (t *hashtable) copy() *hashtable {
	c := *t
	c.entries = make([]uint64, len(t.entries))
	copy(c.entries, t.entries)
	return &c
}

func (t *hashtable) capacity() uint32 {
	return uint32(math.Floor(rebuildThreshold * float64(uint32(1)<<t.lgSize)))
}

// insert adds hash if it is below theta and not yet retained.
// It reports whether the hash was added.
func (t *hashtable) insert(hash uint64) bool {
	if hash == 0 || hash >= t.theta {
		return false
	}
	index, err := find(t.entries, t.lgSize, hash)
	if err != ErrKeyNotFound {
		// duplicate, or a full table which capacity() rules out
		return false
	}
	t.entries[index] = hash
	t.numEntries++
	if t.numEntries > t.capacity() {
		t.rebuild()
	}
	return true
}

func find(entries []uint64, lgSize uint8, key uint64) (int, error) {
	size := uint32(1 << lgSize)
	mask := size - 1
	stride := computeStride(key, lgSize)
	index := uint32(key) & mask

	loopIndex := index
	for {
		probe := entries[index]
		if probe == 0 {
			return int(index), ErrKeyNotFound
		} else if probe == key {
			return int(index), nil
		}

		index = (index + stride) & mask
		if index == loopIndex {
			return 0, ErrKeyNotFoundAndNoEmptySlots
		}
	}
}

// computeStride computes the stride for probing
func computeStride(key uint64, lgSize uint8) uint32 {
	// odd and independent of the index assuming lgSize lowest bits of the key were used for the index
	return (2 * uint32((key>>lgSize)&strideMask)) + 1
}

// rebuild keeps the k smallest retained hashes and lowers theta to the next one.
func (t *hashtable) rebuild() {
	if t.numEntries <= t.k {
		return
	}
	retained := t.retained()
	theta := internal.QuickSelect(retained, 0, len(retained)-1, int(t.k))
	t.reinsert(retained[:t.k], theta)
}

// lowerTheta drops every retained hash at or above theta.
func (t *hashtable) lowerTheta(theta uint64) {
	if theta >= t.theta {
		return
	}
	retained := t.retained()
	kept := retained[:0]
	for _, h := range retained {
		if h < theta {
			kept = append(kept, h)
		}
	}
	t.reinsert(kept, theta)
}

func (t *hashtable) reinsert(hashes []uint64, theta uint64) {
	entries := make([]uint64, len(t.entries))
	for _, h := range hashes {
		// always finds an empty slot, hashes never fill the whole table
		index, _ := find(entries, t.lgSize, h)
		entries[index] = h
	}
	t.entries = entries
	t.numEntries = uint32(len(hashes))
	t.theta = theta
}

// retained returns a fresh slice with all non empty entries.
func (t *hashtable) retained() []uint64 {
	out := make([]uint64, 0, t.numEntries)
	for _, e := range t.entries {
		if e != 0 {
			out = append(out, e)
		}
	}
	return out
}

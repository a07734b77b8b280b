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
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/apache/datasketches-featurestats-go/common"
	"github.com/apache/datasketches-featurestats-go/internal"
)

// reversePurgeItemHashMap is a linear probing map from string items to float64
// counts. states[i] holds the probe distance of the entry stored at i plus one,
// zero marks an empty slot.
type reversePurgeItemHashMap struct {
	lgLength      int
	loadThreshold int
	keys          []string
	values        []float64
	states        []int16
	numActive     int
	hasher        common.ItemSketchHasher[string]
}

type iteratorItemHashMap struct {
	keys      []string
	values    []float64
	states    []int16
	numActive int
	stride    int
	mask      int
	i         int
	count     int
}

const (
	reversePurgeItemHashMapLoadFactor = float64(0.75)
	reversePurgeItemHashMapDriftLimit = 1024
)

var (
	errDriftLimit    = errors.New("drift >= driftLimit")
	errLoadThreshold = errors.New("numActive >= loadThreshold")
)

// newReversePurgeItemHashMap creates arrays of length mapSize, which must be a
// power of two. loadThreshold is the largest number of entries that does not
// overload the table.
func newReversePurgeItemHashMap(mapSize int, hasher common.ItemSketchHasher[string]) (*reversePurgeItemHashMap, error) {
	lgLength, err := internal.ExactLog2(mapSize)
	if err != nil {
		return nil, fmt.Errorf("mapSize: %w", err)
	}
	return &reversePurgeItemHashMap{
		lgLength:      lgLength,
		loadThreshold: int(float64(mapSize) * reversePurgeItemHashMapLoadFactor),
		keys:          make([]string, mapSize),
		values:        make([]float64, mapSize),
		states:        make([]int16, mapSize),
		hasher:        hasher,
	}, nil
}

// getCapacity returns the max number of keys that can be stored at the current size.
func (r *reversePurgeItemHashMap) getCapacity() int {
	return r.loadThreshold
}

// get returns the count of key, or 0 when key is not tracked.
func (r *reversePurgeItemHashMap) get(key string) float64 {
	probe := r.hashProbe(key)
	if r.states[probe] > 0 {
		return r.values[probe]
	}
	return 0
}

func (r *reversePurgeItemHashMap) contains(key string) bool {
	return r.states[r.hashProbe(key)] > 0
}

// adjustOrPutValue increments the count of key by adjustAmount, inserting key
// with adjustAmount when it is not present.
func (r *reversePurgeItemHashMap) adjustOrPutValue(key string, adjustAmount float64) error {
	var (
		arrayMask = uint64(len(r.keys) - 1)
		probe     = r.hasher.Hash(key) & arrayMask
		drift     = 1
	)
	for r.states[probe] != 0 && r.keys[probe] != key {
		probe = (probe + 1) & arrayMask
		drift++
		if drift >= reversePurgeItemHashMapDriftLimit {
			return errDriftLimit
		}
	}
	if r.states[probe] == 0 {
		if r.numActive >= r.loadThreshold {
			return errLoadThreshold
		}
		r.keys[probe] = key
		r.values[probe] = adjustAmount
		r.states[probe] = int16(drift)
		r.numActive++
		return nil
	}
	r.values[probe] += adjustAmount
	return nil
}

// resize rehashes every active entry into fresh arrays of length newSize.
func (r *reversePurgeItemHashMap) resize(newSize int) error {
	oldKeys := r.keys
	oldValues := r.values
	oldStates := r.states
	r.keys = make([]string, newSize)
	r.values = make([]float64, newSize)
	r.states = make([]int16, newSize)
	r.loadThreshold = int(float64(newSize) * reversePurgeItemHashMapLoadFactor)
	r.lgLength = bits.TrailingZeros(uint(newSize))
	r.numActive = 0
	for i := range oldKeys {
		if oldStates[i] > 0 {
			if err := r.adjustOrPutValue(oldKeys[i], oldValues[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// reset empties the map keeping its current length.
func (r *reversePurgeItemHashMap) reset() {
	clear(r.keys)
	clear(r.values)
	clear(r.states)
	r.numActive = 0
}

func (r *reversePurgeItemHashMap) hashProbe(key string) int {
	arrayMask := uint64(len(r.keys) - 1)
	probe := r.hasher.Hash(key) & arrayMask
	for r.states[probe] > 0 && r.keys[probe] != key {
		probe = (probe + 1) & arrayMask
	}
	return int(probe)
}

// getActiveKeys and getActiveValues return the entries in slot order, so the
// i-th key belongs to the i-th value.
func (r *reversePurgeItemHashMap) getActiveKeys() []string {
	if r.numActive == 0 {
		return nil
	}
	out := make([]string, 0, r.numActive)
	for i := range r.keys {
		if r.states[i] > 0 {
			out = append(out, r.keys[i])
		}
	}
	return out
}

func (r *reversePurgeItemHashMap) getActiveValues() []float64 {
	if r.numActive == 0 {
		return nil
	}
	out := make([]float64, 0, r.numActive)
	for i := range r.values {
		if r.states[i] > 0 {
			out = append(out, r.values[i])
		}
	}
	return out
}

func (r *reversePurgeItemHashMap) iterator() *iteratorItemHashMap {
	stride := int(uint64(float64(len(r.keys))*internal.InverseGolden) | 1)
	return &iteratorItemHashMap{
		keys:      r.keys,
		values:    r.values,
		states:    r.states,
		numActive: r.numActive,
		stride:    stride,
		mask:      len(r.keys) - 1,
		i:         -stride,
	}
}

func (r *reversePurgeItemHashMap) String() string {
	var sb strings.Builder
	sb.WriteString("ReversePurgeItemHashMap:\n")
	sb.WriteString(fmt.Sprintf("  %12s:%11s%20s %s\n", "Index", "States", "Values", "Keys"))
	for i := range r.keys {
		if r.states[i] <= 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %12d:%11d%20g %s\n", i, r.states[i], r.values[i], r.keys[i]))
	}
	return sb.String()
}

// next advances to the next active entry. The stride is odd and the length a
// power of two, so the walk visits every slot.
func (it *iteratorItemHashMap) next() bool {
	for it.count < it.numActive {
		it.i = (it.i + it.stride) & it.mask
		if it.states[it.i] > 0 {
			it.count++
			return true
		}
	}
	return false
}

func (it *iteratorItemHashMap) getKey() string {
	return it.keys[it.i]
}

func (it *iteratorItemHashMap) getValue() float64 {
	return it.values[it.i]
}

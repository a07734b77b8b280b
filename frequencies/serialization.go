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
	"fmt"
	"math"

	"github.com/apache/datasketches-featurestats-go/common"
	"github.com/apache/datasketches-featurestats-go/internal"
)

// ToSlice serializes the sketch. The layout is a preamble of 2 longs when empty
// and 4 otherwise, followed by the active counts as float64 and the active items.
//
//	Long || Start Byte Adr:
//	Adr:
//	     ||    7     |    6    |    5   |    4   |    3   |    2   |    1   |     0      |
//	 0   ||----------|---------| Flags  | LgCur  | LgMax  | FamID  | SerVer | PreLongs   |
//	     ||   15     |   14    |   13   |   12   |   11   |   10   |    9   |     8      |
//	 1   ||---------- NumBuckets ----------------|---------- ActiveItems --------------|
//	 2   ||---------------------------- StreamWeight (float64) ---------------------------|
//	 3   ||---------------------------- Offset (float64) ---------------------------------|
func (s *ItemsSketch) ToSlice() []byte {
	empty := s.IsEmpty()
	activeItems := s.GetNumActiveItems()
	preLongs := _EMPTY_PRE_LONGS
	var itemBytes []byte
	var values []float64
	if !empty {
		preLongs = internal.FamilyEnum.MisraGries.MaxPreLongs
		itemBytes = common.ItemSketchStringSerDe{}.SerializeManyToSlice(s.hashMap.getActiveKeys())
		values = s.hashMap.getActiveValues()
	}
	preBytes := preLongs << 3
	out := make([]byte, preBytes+(activeItems<<3)+len(itemBytes))

	pre0 := int64(0)
	pre0 = insertPreLongs(int64(preLongs), pre0)
	pre0 = insertByte(_SER_VER_BYTE, _SER_VER, pre0)
	pre0 = insertByte(_FAMILY_BYTE, int64(internal.FamilyEnum.MisraGries.Id), pre0)
	pre0 = insertByte(_LG_MAX_MAP_SIZE_BYTE, int64(s.lgMaxMapSize), pre0)
	pre0 = insertByte(_LG_CUR_MAP_SIZE_BYTE, int64(s.hashMap.lgLength), pre0)
	if empty {
		pre0 = insertByte(_FLAGS_BYTE, _EMPTY_FLAG_MASK, pre0)
	}
	pre1 := insertNumBuckets(int64(s.numBuckets), insertActiveItems(int64(activeItems), 0))
	binary.LittleEndian.PutUint64(out, uint64(pre0))
	binary.LittleEndian.PutUint64(out[8:], uint64(pre1))
	if empty {
		return out
	}
	binary.LittleEndian.PutUint64(out[16:], math.Float64bits(s.streamWeight))
	binary.LittleEndian.PutUint64(out[24:], math.Float64bits(s.offset))
	for j, v := range values {
		binary.LittleEndian.PutUint64(out[preBytes+j<<3:], math.Float64bits(v))
	}
	copy(out[preBytes+(activeItems<<3):], itemBytes)
	return out
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *ItemsSketch) MarshalBinary() ([]byte, error) {
	return s.ToSlice(), nil
}

// NewItemsSketchFromSlice decodes a sketch written by ToSlice.
func NewItemsSketchFromSlice(slc []byte) (*ItemsSketch, error) {
	pre0, err := checkPreambleSize(slc)
	if err != nil {
		return nil, err
	}
	maxPreLongs := internal.FamilyEnum.MisraGries.MaxPreLongs

	preLongs := extractPreLongs(pre0)
	serVer := extractByte(_SER_VER_BYTE, pre0)
	familyID := extractByte(_FAMILY_BYTE, pre0)
	lgMaxMapSize := extractByte(_LG_MAX_MAP_SIZE_BYTE, pre0)
	lgCurMapSize := extractByte(_LG_CUR_MAP_SIZE_BYTE, pre0)
	empty := (extractByte(_FLAGS_BYTE, pre0) & _EMPTY_FLAG_MASK) != 0

	if preLongs != _EMPTY_PRE_LONGS && preLongs != maxPreLongs {
		return nil, fmt.Errorf("possible corruption: preLongs must be %d or %d: %d", _EMPTY_PRE_LONGS, maxPreLongs, preLongs)
	}
	if serVer != _SER_VER {
		return nil, fmt.Errorf("possible corruption: ser ver must be %d: %d", _SER_VER, serVer)
	}
	if actFamID := internal.FamilyEnum.MisraGries.Id; familyID != actFamID {
		return nil, fmt.Errorf("possible corruption: familyID must be %d: %d", actFamID, familyID)
	}
	if empty != (preLongs == _EMPTY_PRE_LONGS) {
		return nil, fmt.Errorf("possible corruption: (preLongs == %d) ^ empty == true", _EMPTY_PRE_LONGS)
	}
	pre1 := int64(binary.LittleEndian.Uint64(slc[8:]))
	numBuckets := extractNumBuckets(pre1)
	activeItems := extractActiveItems(pre1)

	sk, err := NewItemsSketch(numBuckets)
	if err != nil {
		return nil, fmt.Errorf("possible corruption: %w", err)
	}
	if lgMaxMapSize != sk.lgMaxMapSize || lgCurMapSize < _LG_MIN_MAP_SIZE || lgCurMapSize > lgMaxMapSize {
		return nil, fmt.Errorf("possible corruption: map sizes %d, %d", lgMaxMapSize, lgCurMapSize)
	}
	if empty {
		if activeItems != 0 {
			return nil, fmt.Errorf("possible corruption: empty sketch with %d active items", activeItems)
		}
		return sk, nil
	}
	if activeItems == 0 || activeItems > numBuckets {
		return nil, fmt.Errorf("possible corruption: active items %d, num buckets %d", activeItems, numBuckets)
	}

	preBytes := preLongs << 3
	reqBytes := preBytes + activeItems<<3
	if len(slc) < reqBytes {
		return nil, fmt.Errorf("possible corruption: insufficient bytes in array: %d, %d", len(slc), reqBytes)
	}
	streamWeight := math.Float64frombits(binary.LittleEndian.Uint64(slc[16:]))
	offset := math.Float64frombits(binary.LittleEndian.Uint64(slc[24:]))
	if checkWeight(streamWeight) != nil || checkWeight(offset) != nil {
		return nil, fmt.Errorf("possible corruption: stream weight %g, offset %g", streamWeight, offset)
	}
	items, err := common.ItemSketchStringSerDe{}.DeserializeManyFromSlice(slc, reqBytes, activeItems)
	if err != nil {
		return nil, err
	}

	if lgCurMapSize > _LG_MIN_MAP_SIZE {
		if err := sk.hashMap.resize(1 << lgCurMapSize); err != nil {
			return nil, err
		}
		sk.curMapCap = sk.hashMap.getCapacity()
	}
	if activeItems >= sk.curMapCap {
		return nil, fmt.Errorf("possible corruption: %d active items exceed map capacity %d", activeItems, sk.curMapCap)
	}
	for j, item := range items {
		v := math.Float64frombits(binary.LittleEndian.Uint64(slc[preBytes+j<<3:]))
		if checkWeight(v) != nil {
			return nil, fmt.Errorf("possible corruption: count %g", v)
		}
		if sk.hashMap.contains(item) {
			return nil, fmt.Errorf("possible corruption: duplicate item %q", item)
		}
		if err := sk.hashMap.adjustOrPutValue(item, v); err != nil {
			return nil, err
		}
	}
	sk.streamWeight = streamWeight
	sk.offset = offset
	return sk, nil
}

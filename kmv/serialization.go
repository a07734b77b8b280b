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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/apache/datasketches-featurestats-go/internal"
)

const (
	// Preamble byte addresses
	preambleLongsByte = 0
	serVerByte        = 1
	familyByte        = 2
	flagsByte         = 3
	seedHashShort     = 4

	emptyFlagMask = 1

	serVer = 1

	preLongsEmpty    = 2
	preLongsNonEmpty = 3
)

// ToSlice serializes the sketch. The image keeps k, theta and every retained hash,
// so a deserialized sketch merges exactly like the sketch it came from.
func (s *Sketch) ToSlice() ([]byte, error) {
	seedHash, err := internal.ComputeSeedHash(s.seed)
	if err != nil {
		return nil, err
	}
	preLongs := preLongsNonEmpty
	if s.isEmpty {
		preLongs = preLongsEmpty
	}
	retained := s.table.retained()
	out := make([]byte, (preLongs+len(retained))<<3)

	out[preambleLongsByte] = byte(preLongs)
	out[serVerByte] = serVer
	out[familyByte] = byte(internal.FamilyEnum.KMV.Id)
	if s.isEmpty {
		out[flagsByte] = emptyFlagMask
	}
	binary.LittleEndian.PutUint16(out[seedHashShort:], seedHash)
	binary.LittleEndian.PutUint32(out[8:], s.table.k)
	binary.LittleEndian.PutUint32(out[12:], uint32(len(retained)))
	if s.isEmpty {
		return out, nil
	}
	binary.LittleEndian.PutUint64(out[16:], s.table.theta)
	offset := preLongs << 3
	for _, h := range retained {
		binary.LittleEndian.PutUint64(out[offset:], h)
		offset += 8
	}
	return out, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Sketch) MarshalBinary() ([]byte, error) {
	return s.ToSlice()
}

// NewSketchFromSlice deserializes a sketch written by ToSlice. seed must be the seed the
// sketch was built with.
func NewSketchFromSlice(slc []byte, seed uint64) (*Sketch, error) {
	if len(slc) < preLongsEmpty<<3 {
		return nil, errors.New("preamble is too small")
	}
	preLongs := int(slc[preambleLongsByte])
	if slc[serVerByte] != serVer {
		return nil, fmt.Errorf("possible corruption: ser ver must be %d: %d", serVer, slc[serVerByte])
	}
	if famID := int(slc[familyByte]); famID != internal.FamilyEnum.KMV.Id {
		return nil, fmt.Errorf("possible corruption: familyID must be %d: %d", internal.FamilyEnum.KMV.Id, famID)
	}
	empty := slc[flagsByte]&emptyFlagMask != 0
	if empty && preLongs != preLongsEmpty || !empty && preLongs != preLongsNonEmpty {
		return nil, fmt.Errorf("possible corruption: preLongs %d does not match empty flag %t", preLongs, empty)
	}
	expectedSeedHash, err := internal.ComputeSeedHash(seed)
	if err != nil {
		return nil, err
	}
	if seedHash := binary.LittleEndian.Uint16(slc[seedHashShort:]); seedHash != expectedSeedHash {
		return nil, fmt.Errorf("%w: seed hash %d != %d", ErrIncompatibleSeed, seedHash, expectedSeedHash)
	}

	k := int(binary.LittleEndian.Uint32(slc[8:]))
	numEntries := int(binary.LittleEndian.Uint32(slc[12:]))
	sk, err := NewSketch(WithK(k), WithSeed(seed))
	if err != nil {
		return nil, err
	}
	if empty {
		return sk, nil
	}
	reqBytes := (preLongs + numEntries) << 3
	if len(slc) < reqBytes {
		return nil, fmt.Errorf("possible corruption: insufficient bytes in array: %d, %d", len(slc), reqBytes)
	}
	if numEntries > sk.Capacity() {
		return nil, fmt.Errorf("possible corruption: %d entries exceed capacity %d", numEntries, sk.Capacity())
	}
	theta := binary.LittleEndian.Uint64(slc[16:])
	hashes := make([]uint64, numEntries)
	offset := preLongs << 3
	for i := range hashes {
		hashes[i] = binary.LittleEndian.Uint64(slc[offset:])
		if hashes[i] == 0 || hashes[i] >= theta {
			return nil, fmt.Errorf("possible corruption: hash %d outside (0, theta)", hashes[i])
		}
		offset += 8
	}
	sk.isEmpty = false
	sk.table.reinsert(hashes, theta)
	return sk, nil
}

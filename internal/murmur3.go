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
	"encoding/binary"
	"unsafe"

	"github.com/twmb/murmur3"
)

// HashBytesMurmur3 returns the 128 bit MurmurHash3 of data as two 64 bit halves.
func HashBytesMurmur3(data []byte, seed uint64) (uint64, uint64) {
	return murmur3.SeedSum128(seed, seed, data)
}

// HashStringMurmur3 hashes the UTF-8 bytes of s without copying them.
func HashStringMurmur3(s string, seed uint64) (uint64, uint64) {
	datum := unsafe.Slice(unsafe.StringData(s), len(s))
	return murmur3.SeedSum128(seed, seed, datum)
}

// HashUint64Murmur3 hashes the little endian encoding of v.
func HashUint64Murmur3(v uint64, seed uint64) (uint64, uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return murmur3.SeedSum128(seed, seed, buf[:])
}

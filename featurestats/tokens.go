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
	"strconv"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
)

const (
	// LargeBytesPlaceholder replaces values longer than LargeStringThreshold bytes.
	LargeBytesPlaceholder = "__LARGE_BYTES__"
	// NonUTF8Placeholder replaces values that are not valid UTF-8.
	NonUTF8Placeholder = "__BYTES_VALUE__"
	// LargeStringThreshold is the largest value length, in bytes, kept as is.
	LargeStringThreshold = 32
)

// NormalizeString maps a value to the token presented to the sketches.
// Invalid UTF-8 takes precedence over length.
func NormalizeString(s string) string {
	if !utf8.ValidString(s) {
		return NonUTF8Placeholder
	}
	if len(s) > LargeStringThreshold {
		return LargeBytesPlaceholder
	}
	return s
}

// NormalizeBytes is NormalizeString for byte values. The returned token never
// aliases b.
func NormalizeBytes(b []byte) string {
	if !utf8.Valid(b) {
		return NonUTF8Placeholder
	}
	if len(b) > LargeStringThreshold {
		return LargeBytesPlaceholder
	}
	return string(b)
}

// IntToken returns the base-10 text of v.
func IntToken[T constraints.Integer](v T) string {
	if v < 0 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatUint(uint64(v), 10)
}

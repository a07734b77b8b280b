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
	"strings"
)

// FeaturePath identifies a possibly nested feature by the field names leading
// to it.
type FeaturePath []string

// Key returns a string that identifies the path. Distinct paths have distinct
// keys, even when their steps contain dots.
func (p FeaturePath) Key() string {
	var sb strings.Builder
	for _, step := range p {
		sb.WriteString(strconv.Itoa(len(step)))
		sb.WriteByte(':')
		sb.WriteString(step)
	}
	return sb.String()
}

func (p FeaturePath) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path with step appended.
func (p FeaturePath) Child(step string) FeaturePath {
	out := make(FeaturePath, len(p), len(p)+1)
	copy(out, p)
	return append(out, step)
}

// PathSet is a set of feature paths.
type PathSet map[string]struct{}

func NewPathSet(paths ...FeaturePath) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

func (s PathSet) Add(p FeaturePath) {
	s[p.Key()] = struct{}{}
}

// Contains reports whether p is in the set. A nil set contains nothing.
func (s PathSet) Contains(p FeaturePath) bool {
	_, ok := s[p.Key()]
	return ok
}

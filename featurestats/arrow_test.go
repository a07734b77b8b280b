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
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apache/datasketches-featurestats-go/statistics"
)

type leafResult struct {
	tokens []string
	rows   []int
}

func collectLeaves(t *testing.T, rec arrow.Record) map[string]leafResult {
	out := make(map[string]leafResult)
	err := enumerateLeaves(rec, func(l leafArray) error {
		tokens, rows, err := leafTokens(l)
		if err != nil {
			return err
		}
		out[l.path.String()] = leafResult{tokens: tokens, rows: rows}
		return nil
	})
	require.NoError(t, err)
	return out
}

// nestedRecord has four examples:
//
//	s:  ["a", "b"], null, [], ["c"]
//	st: {i: 1, l: ["x"]}, null, {i: 3, l: ["y", "z"]}, {i: null, l: null}
//
// The children of the null struct row hold values that must not be seen.
func nestedRecord(t *testing.T, mem memory.Allocator) arrow.Record {
	lb := array.NewListBuilder(mem, arrow.BinaryTypes.String)
	defer lb.Release()
	vb := lb.ValueBuilder().(*array.StringBuilder)
	lb.Append(true)
	vb.AppendValues([]string{"a", "b"}, nil)
	lb.AppendNull()
	lb.Append(true)
	lb.Append(true)
	vb.Append("c")
	s := lb.NewArray()
	defer s.Release()

	ib := array.NewInt64Builder(mem)
	defer ib.Release()
	ib.AppendValues([]int64{1, 99, 3, 0}, []bool{true, true, true, false})
	i := ib.NewArray()
	defer i.Release()

	lb.Append(true)
	vb.Append("x")
	lb.Append(true)
	vb.Append("hidden")
	lb.Append(true)
	vb.AppendValues([]string{"y", "z"}, nil)
	lb.AppendNull()
	l := lb.NewArray()
	defer l.Release()

	validity := memory.NewBufferBytes([]byte{0b1101})
	st, err := array.NewStructArrayWithNulls([]arrow.Array{i, l}, []string{"i", "l"}, validity, 1, 0)
	require.NoError(t, err)
	defer st.Release()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "s", Type: s.DataType(), Nullable: true},
		{Name: "st", Type: st.DataType(), Nullable: true},
	}, nil)
	rec := array.NewRecord(schema, []arrow.Array{s, st}, 4)
	t.Cleanup(rec.Release)
	return rec
}

func TestEnumerateLeaves(t *testing.T) {
	mem := newAllocator(t)
	leaves := collectLeaves(t, nestedRecord(t, mem))

	require.Len(t, leaves, 3)
	assert.Equal(t, leafResult{tokens: []string{"a", "b", "c"}, rows: []int{0, 0, 3}}, leaves["s"])
	assert.Equal(t, leafResult{tokens: []string{"1", "3"}, rows: []int{0, 2}}, leaves["st.i"])
	assert.Equal(t, leafResult{tokens: []string{"x", "y", "z"}, rows: []int{0, 2, 2}}, leaves["st.l"])
}

func TestEnumerateLeavesStopsOnError(t *testing.T) {
	mem := newAllocator(t)
	rec := nestedRecord(t, mem)

	calls := 0
	err := enumerateLeaves(rec, func(leafArray) error {
		calls++
		return ErrUnsupportedType
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Equal(t, 1, calls)
}

func TestLeafTokensBinary(t *testing.T) {
	mem := newAllocator(t)

	bb := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer bb.Release()
	bb.AppendValues([][]byte{[]byte("ok"), {0xff, 0xfe}, make([]byte, 40)}, nil)
	bb.AppendNull()
	arr := bb.NewArray()
	defer arr.Release()

	tokens, rows, err := leafTokens(leafArray{path: FeaturePath{"b"}, array: arr})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", NonUTF8Placeholder, LargeBytesPlaceholder}, tokens)
	assert.Equal(t, []int{0, 1, 2}, rows)
}

func TestLeafTokensUnsupported(t *testing.T) {
	mem := newAllocator(t)

	fb := array.NewFloat64Builder(mem)
	defer fb.Release()
	fb.Append(1.5)
	arr := fb.NewArray()
	defer arr.Release()

	_, _, err := leafTokens(leafArray{path: FeaturePath{"f"}, array: arr})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFeatureTypeOf(t *testing.T) {
	tests := []struct {
		name string
		dt   arrow.DataType
		want statistics.FeatureType
	}{
		{"Int8", arrow.PrimitiveTypes.Int8, statistics.FeatureTypeINT},
		{"Uint64", arrow.PrimitiveTypes.Uint64, statistics.FeatureTypeINT},
		{"Float16", arrow.FixedWidthTypes.Float16, statistics.FeatureTypeFLOAT},
		{"Float64", arrow.PrimitiveTypes.Float64, statistics.FeatureTypeFLOAT},
		{"String", arrow.BinaryTypes.String, statistics.FeatureTypeSTRING},
		{"Large Binary", arrow.BinaryTypes.LargeBinary, statistics.FeatureTypeSTRING},
		{"Fixed Size Binary", &arrow.FixedSizeBinaryType{ByteWidth: 4}, statistics.FeatureTypeSTRING},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := featureTypeOf(tt.dt)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Null", func(t *testing.T) {
		_, ok, err := featureTypeOf(arrow.Null)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, _, err := featureTypeOf(arrow.FixedWidthTypes.Boolean)
		assert.ErrorIs(t, err, ErrUnsupportedType)
		_, _, err = featureTypeOf(arrow.FixedWidthTypes.Date32)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

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
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/apache/datasketches-featurestats-go/statistics"
)

var ErrUnsupportedType = errors.New("unsupported arrow type")

// leafArray is a non-nested array of a record together with the example row
// of each of its elements. rows is nil when element i belongs to example i;
// a row of -1 marks an element that belongs to no example, such as a child
// of a null struct.
type leafArray struct {
	path  FeaturePath
	array arrow.Array
	rows  []int
}

func rowOf(rows []int, i int) int {
	if rows == nil {
		return i
	}
	return rows[i]
}

// enumerateLeaves calls fn for every leaf of rec. Struct columns are recursed
// with the field name appended to the path, list levels are flattened.
func enumerateLeaves(rec arrow.Record, fn func(leafArray) error) error {
	schema := rec.Schema()
	for i, col := range rec.Columns() {
		if err := walkArray(FeaturePath{schema.Field(i).Name}, col, nil, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkArray(path FeaturePath, arr arrow.Array, rows []int, fn func(leafArray) error) error {
	switch a := arr.(type) {
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		fieldRows := rows
		if a.NullN() > 0 {
			fieldRows = make([]int, a.Len())
			for i := range fieldRows {
				fieldRows[i] = -1
				if a.IsValid(i) {
					fieldRows[i] = rowOf(rows, i)
				}
			}
		}
		for j := 0; j < a.NumField(); j++ {
			if err := walkArray(path.Child(st.Field(j).Name), a.Field(j), fieldRows, fn); err != nil {
				return err
			}
		}
		return nil
	case array.ListLike:
		values, valueRows := flattenList(a, rows)
		return walkArray(path, values, valueRows, fn)
	}
	return fn(leafArray{path: path, array: arr, rows: rows})
}

// flattenList returns the child values of a and the example row of each of them.
func flattenList(a array.ListLike, rows []int) (arrow.Array, []int) {
	values := a.ListValues()
	valueRows := make([]int, values.Len())
	for i := range valueRows {
		valueRows[i] = -1
	}
	for i := 0; i < a.Len(); i++ {
		row := rowOf(rows, i)
		if row < 0 || a.IsNull(i) {
			continue
		}
		start, end := a.ValueOffsets(i)
		for j := start; j < end; j++ {
			valueRows[j] = row
		}
	}
	return values, valueRows
}

// featureTypeOf maps the type of a leaf array to a feature type. ok is false
// for the null type, whose arrays carry no values.
func featureTypeOf(dt arrow.DataType) (featureType statistics.FeatureType, ok bool, err error) {
	switch dt.ID() {
	case arrow.NULL:
		return 0, false, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return statistics.FeatureTypeINT, true, nil
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return statistics.FeatureTypeFLOAT, true, nil
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW,
		arrow.BINARY, arrow.LARGE_BINARY, arrow.BINARY_VIEW, arrow.FIXED_SIZE_BINARY:
		return statistics.FeatureTypeSTRING, true, nil
	case arrow.STRUCT:
		return statistics.FeatureTypeSTRUCT, true, nil
	}
	return 0, false, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
}

type valuer[T any] interface {
	arrow.Array
	Value(i int) T
}

// leafTokens returns the normalized token of every non-null element of the
// leaf that belongs to an example, and that example's row.
func leafTokens(l leafArray) (tokens []string, rows []int, err error) {
	switch a := l.array.(type) {
	case *array.Int8:
		tokens, rows = collectTokens(a, l.rows, IntToken[int8])
	case *array.Int16:
		tokens, rows = collectTokens(a, l.rows, IntToken[int16])
	case *array.Int32:
		tokens, rows = collectTokens(a, l.rows, IntToken[int32])
	case *array.Int64:
		tokens, rows = collectTokens(a, l.rows, IntToken[int64])
	case *array.Uint8:
		tokens, rows = collectTokens(a, l.rows, IntToken[uint8])
	case *array.Uint16:
		tokens, rows = collectTokens(a, l.rows, IntToken[uint16])
	case *array.Uint32:
		tokens, rows = collectTokens(a, l.rows, IntToken[uint32])
	case *array.Uint64:
		tokens, rows = collectTokens(a, l.rows, IntToken[uint64])
	case *array.String:
		tokens, rows = collectTokens(a, l.rows, stringToken)
	case *array.LargeString:
		tokens, rows = collectTokens(a, l.rows, stringToken)
	case *array.StringView:
		tokens, rows = collectTokens(a, l.rows, stringToken)
	case *array.Binary:
		tokens, rows = collectTokens(a, l.rows, NormalizeBytes)
	case *array.LargeBinary:
		tokens, rows = collectTokens(a, l.rows, NormalizeBytes)
	case *array.BinaryView:
		tokens, rows = collectTokens(a, l.rows, NormalizeBytes)
	case *array.FixedSizeBinary:
		tokens, rows = collectTokens(a, l.rows, NormalizeBytes)
	default:
		return nil, nil, fmt.Errorf("feature %s: %w: %s", l.path, ErrUnsupportedType, l.array.DataType())
	}
	return tokens, rows, nil
}

// stringToken copies the token out of the arrow buffer, which the record
// owner may release.
func stringToken(s string) string {
	return strings.Clone(NormalizeString(s))
}

func collectTokens[T any](a valuer[T], rows []int, token func(T) string) ([]string, []int) {
	n := a.Len() - a.NullN()
	tokens := make([]string, 0, n)
	tokenRows := make([]int, 0, n)
	for i := 0; i < a.Len(); i++ {
		row := rowOf(rows, i)
		if row < 0 || a.IsNull(i) {
			continue
		}
		tokens = append(tokens, token(a.Value(i)))
		tokenRows = append(tokenRows, row)
	}
	return tokens, tokenRows
}

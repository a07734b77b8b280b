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

	"github.com/apache/datasketches-featurestats-go/statistics"
)

// newAllocator returns an allocator that fails the test when a buffer is leaked.
func newAllocator(t *testing.T) *memory.CheckedAllocator {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	return mem
}

func buildRecord(t *testing.T, mem memory.Allocator, fields []arrow.Field, fill func(b *array.RecordBuilder)) arrow.Record {
	b := array.NewRecordBuilder(mem, arrow.NewSchema(fields, nil))
	defer b.Release()
	fill(b)
	rec := b.NewRecord()
	t.Cleanup(rec.Release)
	return rec
}

func stringRecord(t *testing.T, mem memory.Allocator, name string, values ...string) arrow.Record {
	return buildRecord(t, mem, []arrow.Field{{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}},
		func(b *array.RecordBuilder) {
			b.Field(0).(*array.StringBuilder).AppendValues(values, nil)
		})
}

// weightedStringRecord builds a record with a string feature and a float64
// weight column "w".
func weightedStringRecord(t *testing.T, mem memory.Allocator, name string, values []string, weights []float64) arrow.Record {
	return buildRecord(t, mem, []arrow.Field{
		{Name: name, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "w", Type: arrow.PrimitiveTypes.Float64},
	}, func(b *array.RecordBuilder) {
		b.Field(0).(*array.StringBuilder).AppendValues(values, nil)
		b.Field(1).(*array.Float64Builder).AppendValues(weights, nil)
	})
}

func topValueLabels(vcs []*statistics.FreqAndValue) []string {
	out := make([]string, len(vcs))
	for i, vc := range vcs {
		out[i] = vc.Value
	}
	return out
}

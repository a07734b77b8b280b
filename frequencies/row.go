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
	"fmt"
)

// Row is one tracked item with its frequency estimate and bounds.
type Row struct {
	item string
	est  float64
	ub   float64
	lb   float64
}

func newRow(item string, estimate float64, ub float64, lb float64) *Row {
	return &Row{
		item: item,
		est:  estimate,
		ub:   ub,
		lb:   lb,
	}
}

func (r *Row) String() string {
	return fmt.Sprintf("  %20g%20g%20g %s", r.est, r.ub, r.lb, r.item)
}

func (r *Row) GetItem() string {
	return r.item
}

func (r *Row) GetEstimate() float64 {
	return r.est
}

func (r *Row) GetUpperBound() float64 {
	return r.ub
}

func (r *Row) GetLowerBound() float64 {
	return r.lb
}

// compareRows orders rows by estimate, largest first, then by item.
func compareRows(a, b *Row) int {
	switch {
	case a.est > b.est:
		return -1
	case a.est < b.est:
		return 1
	case a.item < b.item:
		return -1
	case a.item > b.item:
		return 1
	}
	return 0
}

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

type Family struct {
	Id          int
	MaxPreLongs int
}

type families struct {
	KMV        Family
	MisraGries Family
	Summary    Family
}

// FamilyEnum lists the serialized sketch families of this module. The ids
// are written into byte 2 of every preamble.
var FamilyEnum = &families{
	KMV: Family{
		Id:          3,
		MaxPreLongs: 3,
	},
	MisraGries: Family{
		Id:          10,
		MaxPreLongs: 4,
	},
	Summary: Family{
		Id:          21,
		MaxPreLongs: 1,
	},
}

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

// SummaryInfo describes a newly created summary and the sizes of its sketches.
type SummaryInfo struct {
	Path                    FeaturePath
	Weighted                bool
	NumTopValues            int
	NumRankHistogramBuckets int
	NumMisraGriesBuckets    int
	NumKMVBuckets           int
}

// Observer is notified once for every summary a combiner creates.
type Observer interface {
	SummaryCreated(info SummaryInfo)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(info SummaryInfo)

func (f ObserverFunc) SummaryCreated(info SummaryInfo) {
	f(info)
}

type nopObserver struct{}

func (nopObserver) SummaryCreated(SummaryInfo) {}

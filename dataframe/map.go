// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataframe

import (
	"math"
	"sort"
	"time"
)

// Map is a collection of single or multi-column dataframes keyed by name
type Map[T comparable] map[string]*DataFrame[T]

// Keys returns the map keys in sorted order
func (dfMap Map[T]) Keys() []string {
	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge outer joins every single-column dataframe in the map into one dataframe with a column per key.
// Rows missing from a member are filled with NaN. Columns are ordered by key and the index is sorted ascending.
// NOTE: the index must be time.Time
func (dfMap Map[T]) Merge() *DataFrame[T] {
	keys := dfMap.Keys()

	rowSet := make(map[T]time.Time)
	for _, k := range keys {
		for _, idx := range dfMap[k].Index {
			rowSet[idx] = any(idx).(time.Time)
		}
	}

	index := make([]T, 0, len(rowSet))
	for idx := range rowSet {
		index = append(index, idx)
	}
	sort.Slice(index, func(i, j int) bool {
		return rowSet[index[i]].Before(rowSet[index[j]])
	})

	rowPos := make(map[T]int, len(index))
	for pos, idx := range index {
		rowPos[idx] = pos
	}

	merged := &DataFrame[T]{
		Index:    index,
		ColNames: make([]string, 0, len(keys)),
		Vals:     make([][]float64, 0, len(keys)),
	}

	for _, k := range keys {
		df := dfMap[k]
		col := make([]float64, len(index))
		for ii := range col {
			col[ii] = math.NaN()
		}
		if df.ColCount() > 0 {
			for rowIdx, idx := range df.Index {
				col[rowPos[idx]] = df.Vals[0][rowIdx]
			}
		}
		merged.ColNames = append(merged.ColNames, k)
		merged.Vals = append(merged.Vals, col)
	}

	return merged
}

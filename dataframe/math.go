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

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// CumSum computes the cumulative sum of each column and returns a new dataframe. NaN values are
// skipped: they remain NaN in the output and do not reset the running total
func (df *DataFrame[T]) CumSum() *DataFrame[T] {
	df = df.Copy()
	for colIdx := range df.ColNames {
		sum := 0.0
		for rowIdx, val := range df.Vals[colIdx] {
			if math.IsNaN(val) {
				continue
			}
			sum += val
			df.Vals[colIdx][rowIdx] = sum
		}
	}
	return df
}

// Diff computes the first discrete difference of each column (x[i] - x[i-1]) and returns a new dataframe.
// The first row is NaN
func (df *DataFrame[T]) Diff() *DataFrame[T] {
	lagged := df.Lag(1)
	df = df.Copy()
	for colIdx := range df.ColNames {
		floats.Sub(df.Vals[colIdx], lagged.Vals[colIdx])
	}
	return df
}

// Exp computes e**x for every value and returns a new dataframe
func (df *DataFrame[T]) Exp() *DataFrame[T] {
	df = df.Copy()
	for colIdx := range df.ColNames {
		for rowIdx, val := range df.Vals[colIdx] {
			df.Vals[colIdx][rowIdx] = math.Exp(val)
		}
	}
	return df
}

// Log computes the natural logarithm of every value and returns a new dataframe
func (df *DataFrame[T]) Log() *DataFrame[T] {
	df = df.Copy()
	for colIdx := range df.ColNames {
		for rowIdx, val := range df.Vals[colIdx] {
			df.Vals[colIdx][rowIdx] = math.Log(val)
		}
	}
	return df
}

// Mul multiplies all columns in dataframe df by the corresponding column in dataframe other and returns a new dataframe.
// If other has a single column it is broadcast against every column of df. Panics if rows are not equal
func (df *DataFrame[T]) Mul(other *DataFrame[T]) *DataFrame[T] {
	if df.Len() != other.Len() {
		log.Panic().Int("DfLen", df.Len()).Int("OtherLen", other.Len()).Msg("cannot multiply dataframes of different length")
	}

	df = df.Copy()

	if other.ColCount() == 1 {
		for idx := range df.ColNames {
			floats.Mul(df.Vals[idx], other.Vals[0])
		}
		return df
	}

	otherMap := make(map[string]int, len(other.ColNames))
	for idx, val := range other.ColNames {
		otherMap[val] = idx
	}

	for idx, colName := range df.ColNames {
		if otherIdx, ok := otherMap[colName]; ok {
			floats.Mul(df.Vals[idx], other.Vals[otherIdx])
		}
	}
	return df
}

// Rename sets the column names of a copy of df
func (df *DataFrame[T]) Rename(names ...string) *DataFrame[T] {
	if len(names) != len(df.ColNames) {
		log.Panic().Int("NumNames", len(names)).Int("NumColumns", len(df.ColNames)).Msg("number of names must equal number of columns")
	}
	df = df.Copy()
	copy(df.ColNames, names)
	return df
}

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
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/positions/tradecron"
	"github.com/rs/zerolog/log"
)

// AsMap creates a map with the index as the key and the specified column as the value
func (df *DataFrame[T]) AsMap(colName string) map[T]float64 {
	res := make(map[T]float64, df.Len())
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return res
	}

	for idx, rowKey := range df.Index {
		res[rowKey] = df.Vals[colIdx][idx]
	}

	return res
}

// ColIndex returns the index of the specified column; returns -1 if column doesn't exist
func (df *DataFrame[T]) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame[T]) ColCount() int {
	return len(df.ColNames)
}

// Column returns the values stored in the named column
func (df *DataFrame[T]) Column(colName string) ([]float64, error) {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
	}
	return df.Vals[colIdx], nil
}

// Copy creates a copy of the dataframe
func (df *DataFrame[T]) Copy() *DataFrame[T] {
	df2 := &DataFrame[T]{
		ColNames: make([]string, len(df.ColNames)),
		Index:    make([]T, len(df.Index)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Index, df.Index)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// End returns the last time in the DataFrame
func (df *DataFrame[T]) End() time.Time {
	if len(df.Index) == 0 {
		return time.Time{}
	}

	if lastDate, ok := any(df.Index[len(df.Index)-1]).(time.Time); ok {
		return lastDate
	}

	return time.Time{}
}

// Frequency returns a data frame filtered to the requested frequency; note this is not
// an in-place function but creates a copy of the data
//
// NOTE: If the dataframe's index is not time.Time then the function will panic
func (df *DataFrame[T]) Frequency(frequency Frequency) *DataFrame[T] {
	var spec string

	switch frequency {
	case Daily:
		spec = "* * *"
	case WeekBegin:
		spec = tradecron.AtWeekBegin
	case WeekEnd:
		spec = tradecron.AtWeekEnd
	case MonthBegin:
		spec = tradecron.AtMonthBegin
	case MonthEnd:
		spec = tradecron.AtMonthEnd
	case YearBegin:
		spec = "@monthbegin * 1 *"
	case YearEnd:
		spec = "@monthend * 12 *"
	default:
		log.Panic().Str("Frequency", string(frequency)).Msg("Unknown frequency provided to dataframe frequency function")
	}

	schedule, err := tradecron.New(spec)
	if err != nil {
		log.Panic().Err(err).Str("Schedule", spec).Msg("could not build tradecron schedule")
	}

	newIndex := make([]T, 0, len(df.Index))
	newVals := make([][]float64, len(df.ColNames))
	for idx, rowIdx := range df.Index {
		dt := any(rowIdx).(time.Time)
		if schedule.IsTradeDay(dt) {
			newIndex = append(newIndex, rowIdx)
			for colIdx := range newVals {
				newVals[colIdx] = append(newVals[colIdx], df.Vals[colIdx][idx])
			}
		}
	}

	return &DataFrame[T]{
		Index:    newIndex,
		ColNames: df.ColNames,
		Vals:     newVals,
	}
}

// Insert a new column to the end of the dataframe. Panics if the column length does not match the index
func (df *DataFrame[T]) Insert(name string, col []float64) *DataFrame[T] {
	if len(col) != len(df.Index) {
		log.Panic().Int("ColLen", len(col)).Int("IndexLen", len(df.Index)).Str("ColName", name).Msg("column length must equal index length")
	}
	df.ColNames = append(df.ColNames, name)
	df.Vals = append(df.Vals, col)
	return df
}

// InsertRow adds a new row to the dataframe. Date must be after the last date in the dataframe and vals must equal the number
// of columns. If either of these conditions are not met then panic
func (df *DataFrame[T]) InsertRow(idx T, vals ...float64) *DataFrame[T] {
	if len(df.Index) != 0 {
		if last, ok := any(df.Index[len(df.Index)-1]).(time.Time); ok {
			newDate := any(idx).(time.Time)
			if !last.Before(newDate) {
				log.Panic().Time("lastDate", last).Time("newDate", newDate).Msg("newDate must be after lastDate")
			}
		}
	}

	if len(vals) != len(df.ColNames) {
		log.Panic().Int("NumValsPassed", len(vals)).Int("NumColumns", len(df.ColNames)).Msg("number of vals passed must equal number of columns")
	}

	df.Index = append(df.Index, idx)
	for colIdx := range df.ColNames {
		df.Vals[colIdx] = append(df.Vals[colIdx], vals[colIdx])
	}

	return df
}

// Lag shifts the dataframe by the specified number of rows, replacing shifted values by math.NaN() and returns a new dataframe
func (df *DataFrame[T]) Lag(n int) *DataFrame[T] {
	df = df.Copy()
	for idx, col := range df.Vals {
		shifted := make([]float64, len(col))
		for ii := range shifted {
			if ii < n {
				shifted[ii] = math.NaN()
			} else {
				shifted[ii] = col[ii-n]
			}
		}
		df.Vals[idx] = shifted
	}
	return df
}

// Len returns the number of rows in the dataframe
func (df *DataFrame[T]) Len() int {
	return len(df.Index)
}

// Start returns the first date of the dataframe
func (df *DataFrame[T]) Start() time.Time {
	if len(df.Index) == 0 {
		return time.Time{}
	}

	if firstDate, ok := any(df.Index[0]).(time.Time); ok {
		return firstDate
	}

	return time.Time{}
}

// Table renders an ASCII formatted table
func (df *DataFrame[T]) Table() string {
	if len(df.Index) == 0 {
		return "<NO DATA>"
	}

	tableCols := append([]string{"Index"}, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for idx, rowIdx := range df.Index {
		row := make([]string, 0, len(df.Vals)+1)

		if date, ok := any(rowIdx).(time.Time); ok {
			row = append(row, date.Format("2006-01-02"))
		} else {
			row = append(row, fmt.Sprintf("%v", rowIdx))
		}

		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[idx]))
		}

		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Trim the dataframe to the specified date range (inclusive)
// NOTE: If T is not time.Time then the dataframe is returned unchanged
func (df *DataFrame[T]) Trim(begin, end time.Time) *DataFrame[T] {
	df2 := &DataFrame[T]{
		ColNames: df.ColNames,
		Index:    df.Index,
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(df2.Vals, df.Vals)

	// special case 0: requested range is invalid
	if end.Before(begin) {
		df2.Index = []T{}
		for colIdx := range df2.Vals {
			df2.Vals[colIdx] = []float64{}
		}
		return df2
	}

	// special case 1: data frame is empty
	if df.Len() == 0 {
		return df2
	}

	// ensure that index is a date index
	if _, ok := any(df.Index[0]).(time.Time); !ok {
		return df2
	}

	// use binary search to find the index corresponding to the start and end times
	beginIdx := sort.Search(len(df.Index), func(i int) bool {
		return !any(df.Index[i]).(time.Time).Before(begin)
	})

	endIdx := sort.Search(len(df.Index), func(i int) bool {
		return any(df.Index[i]).(time.Time).After(end)
	})

	if endIdx < beginIdx {
		endIdx = beginIdx
	}

	df2.Index = df.Index[beginIdx:endIdx]
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[beginIdx:endIdx]
	}

	return df2
}

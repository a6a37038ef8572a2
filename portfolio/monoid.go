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

package portfolio

import (
	"sort"
	"time"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/dataframe"
)

const (
	ColSignal = "Signal"
	ColNet    = "Net"
)

// Monoid lifts values of type A into T and folds them with an associative operation that has
// Null as its identity
type Monoid[A any, T any] struct {
	Null func() T
	Lift func(A) (T, error)
	Op   func(T, T) (T, error)
}

// Fold lifts each arg and combines them left to right starting from Null
func (m Monoid[A, T]) Fold(args ...A) (T, error) {
	acc := m.Null()
	for _, arg := range args {
		val, err := m.Lift(arg)
		if err != nil {
			return acc, err
		}
		if acc, err = m.Op(acc, val); err != nil {
			return acc, err
		}
	}
	return acc, nil
}

// Update is a change in shares on a date. Price is optional and marks the trade recorded
// in the ledger
type Update struct {
	Shares float64
	Date   time.Time
	Price  float64
}

// Null returns the identity position: it holds no shares, has no ledger entries and combining it
// with any position returns that position
func Null() *Position {
	return &Position{
		null:   true,
		ledger: &Ledger{},
	}
}

// NewPositionMonoid builds the monoid that folds updates in ticker into a net position. When
// signals is not nil every combine records the share change it applied on the resulting
// effective date
func NewPositionMonoid(ticker string, signals *SignalSeries, opts ...PositionOption) Monoid[Update, *Position] {
	return Monoid[Update, *Position]{
		Null: Null,
		Lift: func(u Update) (*Position, error) {
			return NewPosition(ticker, u.Date, u.Price, u.Shares, opts...)
		},
		Op: func(a, b *Position) (*Position, error) {
			res, err := Combine(a, b)
			if err != nil {
				return nil, err
			}
			if signals != nil && !b.IsNull() {
				signals.Record(res.EffectiveDate(), b.Quantity())
			}
			return res, nil
		},
	}
}

// SignalSeries collects the share changes applied by a fold keyed by date
type SignalSeries struct {
	dates  []time.Time
	deltas []float64
}

// Record appends a share change on date
func (s *SignalSeries) Record(date time.Time, delta float64) {
	s.dates = append(s.dates, common.Day(date))
	s.deltas = append(s.deltas, delta)
}

func (s *SignalSeries) Len() int {
	return len(s.dates)
}

// Dates returns the recorded dates in the order they were recorded
func (s *SignalSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.dates))
	copy(dates, s.dates)
	return dates
}

// Deltas returns the recorded share changes in the order they were recorded
func (s *SignalSeries) Deltas() []float64 {
	deltas := make([]float64, len(s.deltas))
	copy(deltas, s.deltas)
	return deltas
}

// DataFrame returns the signals ordered by date with one row per date. Signal holds the share
// change on that date and Net the running total
func (s *SignalSeries) DataFrame() *dataframe.DataFrame[time.Time] {
	order := make([]int, len(s.dates))
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(i, j int) bool {
		return s.dates[order[i]].Before(s.dates[order[j]])
	})

	df := &dataframe.DataFrame[time.Time]{
		Index:    []time.Time{},
		ColNames: []string{ColSignal, ColNet},
		Vals:     [][]float64{{}, {}},
	}

	net := 0.0
	for _, idx := range order {
		net += s.deltas[idx]
		last := df.Len() - 1
		if last >= 0 && df.Index[last].Equal(s.dates[idx]) {
			df.Vals[0][last] += s.deltas[idx]
			df.Vals[1][last] = net
			continue
		}
		df.InsertRow(s.dates[idx], s.deltas[idx], net)
	}

	return df
}

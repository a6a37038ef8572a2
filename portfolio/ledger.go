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
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// Trade is a single ledger entry. Shares is signed: positive for shares acquired, negative for
// shares disposed of
type Trade struct {
	ID     uuid.UUID
	Date   time.Time
	Price  float64
	Shares float64
	Sign   int
}

// Ledger is the append-only record of every trade made against a position
type Ledger struct {
	trades    []*Trade
	closed    bool
	closeDate time.Time
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Append records a new trade. Trades must be appended in date order and a closed ledger
// accepts nothing after its close date
func (l *Ledger) Append(date time.Time, price, shares float64) (*Trade, error) {
	if l.closed && date.After(l.closeDate) {
		return nil, fmt.Errorf("%w: ledger closed on %s", ErrInvalidState, l.closeDate.Format("2006-01-02"))
	}

	if last := l.Last(); last != nil && date.Before(last.Date) {
		return nil, fmt.Errorf("%w: %s is before last trade on %s", ErrTemporalOrder,
			date.Format("2006-01-02"), last.Date.Format("2006-01-02"))
	}

	trade := &Trade{
		ID:     uuid.New(),
		Date:   date,
		Price:  price,
		Shares: shares,
		Sign:   sign(shares),
	}
	l.trades = append(l.trades, trade)

	return trade, nil
}

// Close marks the ledger as closed on date
func (l *Ledger) Close(date time.Time) {
	l.closed = true
	l.closeDate = date
}

// Closed returns true once Close has been called
func (l *Ledger) Closed() bool {
	return l.closed
}

// Len returns the number of trades
func (l *Ledger) Len() int {
	return len(l.trades)
}

// Trades returns a copy of the trade list
func (l *Ledger) Trades() []*Trade {
	trades := make([]*Trade, len(l.trades))
	for idx, trade := range l.trades {
		t := *trade
		trades[idx] = &t
	}
	return trades
}

// First returns the opening trade or nil if the ledger is empty
func (l *Ledger) First() *Trade {
	if len(l.trades) == 0 {
		return nil
	}
	return l.trades[0]
}

// Last returns the most recent trade or nil if the ledger is empty
func (l *Ledger) Last() *Trade {
	if len(l.trades) == 0 {
		return nil
	}
	return l.trades[len(l.trades)-1]
}

// NetShares is the signed sum of every trade
func (l *Ledger) NetShares() float64 {
	return floats.Sum(l.Shares())
}

func (l *Ledger) Dates() []time.Time {
	dates := make([]time.Time, len(l.trades))
	for idx, trade := range l.trades {
		dates[idx] = trade.Date
	}
	return dates
}

func (l *Ledger) Prices() []float64 {
	prices := make([]float64, len(l.trades))
	for idx, trade := range l.trades {
		prices[idx] = trade.Price
	}
	return prices
}

func (l *Ledger) Shares() []float64 {
	shares := make([]float64, len(l.trades))
	for idx, trade := range l.trades {
		shares[idx] = trade.Shares
	}
	return shares
}

// CashInvested is the dot product of trade prices and share deltas. When excludeLast is set the
// final trade is left out of the sum
func (l *Ledger) CashInvested(excludeLast bool) float64 {
	n := len(l.trades)
	if excludeLast {
		n--
	}
	if n <= 0 {
		return 0
	}
	return floats.Dot(l.Prices()[:n], l.Shares()[:n])
}

// Remark replaces the price of every trade whose date is found in prices. NaN prices are ignored
func (l *Ledger) Remark(prices map[time.Time]float64) int {
	cnt := 0
	for _, trade := range l.trades {
		if price, ok := prices[trade.Date]; ok && !math.IsNaN(price) {
			trade.Price = price
			cnt++
		}
	}
	return cnt
}

// Clone returns a deep copy of the ledger
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		trades:    l.Trades(),
		closed:    l.closed,
		closeDate: l.closeDate,
	}
}

// Merge returns a new open ledger holding the trades of l and other in date order. Trades on the
// same date keep l's entries first
func (l *Ledger) Merge(other *Ledger) *Ledger {
	left := l.Trades()
	right := other.Trades()
	merged := make([]*Trade, 0, len(left)+len(right))

	ii, jj := 0, 0
	for ii < len(left) && jj < len(right) {
		if right[jj].Date.Before(left[ii].Date) {
			merged = append(merged, right[jj])
			jj++
		} else {
			merged = append(merged, left[ii])
			ii++
		}
	}
	merged = append(merged, left[ii:]...)
	merged = append(merged, right[jj:]...)

	return &Ledger{trades: merged}
}

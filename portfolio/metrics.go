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

	"gonum.org/v1/gonum/stat"
)

const (
	tradingDaysPerYear = 252
)

// DrawDown is a period in which the position value fell from its previous peak
type DrawDown struct {
	Begin       time.Time
	End         time.Time
	Recovery    time.Time
	LossPercent float64
}

type cashflow struct {
	date  time.Time
	value float64
}

func (p *Position) historyColumn(name string) ([]float64, error) {
	if p.history == nil {
		return nil, fmt.Errorf("%w: no price history attached to %s", ErrPrecondition, p.ticker)
	}
	return p.history.Column(name)
}

// DrawDowns lists every draw down of the position value series. A draw down that has not
// recovered by the end of the history has a zero Recovery date
func (p *Position) DrawDowns() ([]*DrawDown, error) {
	values, err := p.historyColumn(ColPositionValue)
	if err != nil {
		return nil, err
	}
	return drawDowns(p.history.Index, values), nil
}

// MaxDrawDown returns the draw down with the largest loss or nil if the value never fell
func (p *Position) MaxDrawDown() (*DrawDown, error) {
	all, err := p.DrawDowns()
	if err != nil {
		return nil, err
	}

	var max *DrawDown
	for _, dd := range all {
		if max == nil || dd.LossPercent < max.LossPercent {
			max = dd
		}
	}
	return max, nil
}

// Volatility is the annualized standard deviation of the daily position returns
func (p *Position) Volatility() (float64, error) {
	returns, err := p.historyColumn(ColPositionReturn)
	if err != nil {
		return 0, err
	}

	clean := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) {
			clean = append(clean, r)
		}
	}

	if len(clean) < 2 {
		return 0, fmt.Errorf("%w: need at least two returns to compute volatility", ErrPrecondition)
	}

	return stat.StdDev(clean, nil) * math.Sqrt(tradingDaysPerYear), nil
}

// MoneyWeightedReturn is the annualized internal rate of return of the position's trades. An open
// position is valued at the last adjusted close of its history
func (p *Position) MoneyWeightedReturn() (float64, error) {
	closes, err := p.historyColumn(ColAdjustedClose)
	if err != nil {
		return 0, err
	}

	flows := make([]cashflow, 0, p.ledger.Len()+1)
	for _, trade := range p.ledger.trades {
		flows = append(flows, cashflow{date: trade.Date, value: -trade.Price * trade.Shares})
	}

	if p.IsOpen() {
		last := len(closes) - 1
		for last >= 0 && math.IsNaN(closes[last]) {
			last--
		}
		if last < 0 {
			return 0, fmt.Errorf("%w: history of %s has no closing prices", ErrPrecondition, p.ticker)
		}
		flows = append(flows, cashflow{date: p.history.Index[last], value: p.quantity * closes[last]})
	}

	var in, out bool
	for _, cf := range flows {
		in = in || cf.value > 0
		out = out || cf.value < 0
	}

	if !in || !out || !flows[len(flows)-1].date.After(flows[0].date) {
		return 0, fmt.Errorf("%w: cash flows of %s do not span an investment", ErrPrecondition, p.ticker)
	}

	return xirr(flows), nil
}

func drawDowns(index []time.Time, values []float64) []*DrawDown {
	all := []*DrawDown{}

	var drawDown *DrawDown
	var prev time.Time
	peak := math.NaN()
	for idx, value := range values {
		if math.IsNaN(value) {
			continue
		}

		if math.IsNaN(peak) {
			peak = value
		}

		peak = math.Max(peak, value)
		if value < peak {
			loss := value/peak - 1.0
			if drawDown == nil {
				drawDown = &DrawDown{
					Begin:       prev,
					End:         index[idx],
					LossPercent: loss,
				}
			}

			if loss < drawDown.LossPercent {
				drawDown.End = index[idx]
				drawDown.LossPercent = loss
			}
		} else if drawDown != nil {
			drawDown.Recovery = index[idx]
			all = append(all, drawDown)
			drawDown = nil
		}
		prev = index[idx]
	}

	if drawDown != nil {
		all = append(all, drawDown)
	}

	return all
}

// xirr returns the annualized internal rate of return for an irregular series of cash flows
func xirr(cashflows []cashflow) float64 {
	years := make([]float64, len(cashflows))
	for idx, cf := range cashflows {
		years[idx] = (cf.date.Sub(cashflows[0].date).Hours() / 24) / 365
	}

	// guess is the growth factor 1 + rate
	residual := 1.0
	step := 0.05
	guess := 0.1
	epsilon := 0.0001
	limit := 10000

	for math.Abs(residual) > epsilon && limit > 0 {
		limit--

		residual = 0.0
		for idx, cf := range cashflows {
			residual += cf.value / math.Pow(guess, years[idx])
		}

		if math.Abs(residual) > epsilon {
			if residual > 0 {
				guess += step
			} else {
				guess -= step
				step /= 2.0
			}
		}
	}

	return guess - 1
}

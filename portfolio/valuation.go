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
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/data"
	"github.com/penny-vault/positions/dataframe"
	"github.com/penny-vault/positions/observability/opentelemetry"
)

const (
	ColAdjustedClose   = data.MetricAdjustedClose
	ColLogReturn       = "LogRet"
	ColPosition        = "Position"
	ColPositionReturn  = "PositionReturn"
	ColPositionValue   = "PositionValue"
	ColUnderlyingValue = "UnderlyingValue"
)

// Valuation computes value series for positions from the price history supplied by its provider.
// It is owned by the caller and holds no state between calls besides the provider and clock
type Valuation struct {
	provider data.HistoryProvider
	now      func() time.Time
}

// NewValuation creates a valuation backed by provider. now defaults to time.Now
func NewValuation(provider data.HistoryProvider, now func() time.Time) *Valuation {
	if now == nil {
		now = time.Now
	}
	return &Valuation{
		provider: provider,
		now:      now,
	}
}

func asUnavailable(symbol string, err error) error {
	if errors.Is(err, data.ErrDataUnavailable) {
		return err
	}
	return &data.UnavailableError{Symbol: symbol, Err: err}
}

// Attach fetches the price history of pos from the day before its first trade through today,
// stores the value series on pos and re-marks its trades at the adjusted close of their dates
func (v *Valuation) Attach(ctx context.Context, pos *Position) error {
	if pos == nil || pos.IsNull() || pos.ledger.Len() == 0 {
		return fmt.Errorf("%w: cannot value a position without trades", ErrPrecondition)
	}

	hist, err := v.series(ctx, pos.ticker, pos.ledger.Dates(), pos.ledger.Shares())
	if err != nil {
		return err
	}

	adjClose, err := hist.Column(ColAdjustedClose)
	if err != nil {
		return err
	}

	prices := make(map[time.Time]float64, len(adjClose))
	for idx, dt := range hist.Index {
		prices[dt] = adjClose[idx]
	}

	remarked := pos.ledger.Remark(prices)
	if pos.exited {
		pos.exitPrice = pos.ledger.Last().Price
	}
	pos.history = hist

	log.Debug().Object("Position", pos).Int("NumRemarked", remarked).Int("NumRows", hist.Len()).Msg("attached valuation")

	return nil
}

// AttachPortfolio attaches a valuation to every position held by p
func (v *Valuation) AttachPortfolio(ctx context.Context, p *Portfolio) error {
	for _, ticker := range p.order {
		if err := v.Attach(ctx, p.entries[ticker].Position); err != nil {
			return err
		}
	}
	return nil
}

// AttachSignals values the share changes recorded while folding updates in ticker
func (v *Valuation) AttachSignals(ctx context.Context, ticker string, signals *SignalSeries) (*dataframe.DataFrame[time.Time], error) {
	if signals == nil || signals.Len() == 0 {
		return nil, fmt.Errorf("%w: no signals recorded", ErrPrecondition)
	}

	return v.series(ctx, ticker, signals.Dates(), signals.Deltas())
}

// Summary attaches a valuation to pos if it does not have one and returns its headline metrics
func (v *Valuation) Summary(ctx context.Context, pos *Position) (*Summary, error) {
	if !pos.HasHistory() {
		if err := v.Attach(ctx, pos); err != nil {
			return nil, err
		}
	}
	return pos.Summary(v.now())
}

// series builds the value frame for a sequence of share changes:
//
//	LogRet          = log(AdjustedClose).diff()
//	Position        = shares held at the close of each day
//	PositionReturn  = Position.lag(1) * LogRet
//	PositionValue   = exp(cumsum(PositionReturn))
//	UnderlyingValue = exp(cumsum(LogRet))
func (v *Valuation) series(ctx context.Context, ticker string, dates []time.Time, deltas []float64) (*dataframe.DataFrame[time.Time], error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "valuation.series")
	defer span.End()

	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no trades to value", ErrPrecondition)
	}

	order := make([]int, len(dates))
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(i, j int) bool {
		return dates[order[i]].Before(dates[order[j]])
	})

	begin := common.Day(dates[order[0]]).AddDate(0, 0, -1)
	end := common.Day(v.now())
	span.SetAttributes(
		attribute.String("Ticker", ticker),
		attribute.String("Begin", begin.Format(common.DateFormat)),
		attribute.String("End", end.Format(common.DateFormat)),
	)

	if v.provider == nil {
		return nil, fmt.Errorf("%w: valuation has no price history provider", ErrPrecondition)
	}

	hist, err := v.provider.FetchHistory(ctx, ticker, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch history failed")
		return nil, asUnavailable(ticker, err)
	}
	hist = hist.Trim(begin, end)

	adjClose, err := hist.Column(ColAdjustedClose)
	if err != nil {
		return nil, asUnavailable(ticker, err)
	}

	base := &dataframe.DataFrame[time.Time]{
		Index:    append([]time.Time{}, hist.Index...),
		ColNames: []string{ColAdjustedClose},
		Vals:     [][]float64{append([]float64{}, adjClose...)},
	}

	// shares held at the close of each day; NaN before the first trade
	held := make([]float64, base.Len())
	next := 0
	net := math.NaN()
	for rowIdx, dt := range base.Index {
		for next < len(order) && !dates[order[next]].After(dt) {
			if math.IsNaN(net) {
				net = 0
			}
			net += deltas[order[next]]
			next++
		}
		held[rowIdx] = net
	}

	logRet := base.Log().Diff().Rename(ColLogReturn)
	position := &dataframe.DataFrame[time.Time]{
		Index:    base.Index,
		ColNames: []string{ColPosition},
		Vals:     [][]float64{held},
	}
	positionReturn := position.Lag(1).Mul(logRet).Rename(ColPositionReturn)
	positionValue := positionReturn.CumSum().Exp().Rename(ColPositionValue)
	underlyingValue := logRet.CumSum().Exp().Rename(ColUnderlyingValue)

	frame := base.Copy()
	frame.Insert(ColLogReturn, logRet.Vals[0])
	frame.Insert(ColPosition, held)
	frame.Insert(ColPositionReturn, positionReturn.Vals[0])
	frame.Insert(ColPositionValue, positionValue.Vals[0])
	frame.Insert(ColUnderlyingValue, underlyingValue.Vals[0])

	span.SetAttributes(attribute.Int("NumRows", frame.Len()))

	return frame, nil
}

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
	"github.com/rs/zerolog"
)

func (t *Trade) MarshalZerologObject(e *zerolog.Event) {
	e.Str("TradeID", t.ID.String()).
		Time("Date", t.Date).
		Float64("Price", t.Price).
		Float64("Shares", t.Shares).
		Int("Sign", t.Sign)
}

func (p *Position) MarshalZerologObject(e *zerolog.Event) {
	if p.null {
		e.Bool("Null", true)
		return
	}
	e.Uint64("PositionID", p.ID()).
		Str("Ticker", p.ticker).
		Time("InitDate", p.initDate).
		Float64("Quantity", p.quantity).
		Bool("IsOpen", p.IsOpen()).
		Int("NumTrades", p.ledger.Len())
	if !p.rollDate.IsZero() {
		e.Time("RollDate", p.rollDate)
	}
	if !p.exitDate.IsZero() {
		e.Time("ExitDate", p.exitDate).Float64("ExitPrice", p.exitPrice)
	}
}

func (s *Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", s.Ticker).
		Int("DaysOpen", s.DaysOpen).
		Float64("Return", s.Return).
		Float64("CashInvested", s.CashInvested)
}

func (o *DrawDown) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Begin", o.Begin).Time("End", o.End).Time("RecoveryDate", o.Recovery).Float64("LossPercent", o.LossPercent)
}

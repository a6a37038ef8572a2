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

	"github.com/rs/zerolog/log"
)

// Holding is the result of adding two positions: a rolled *Position when the tickers match or a
// two-entry *Portfolio when they do not
type Holding interface {
	holding()
}

func (*Position) holding()  {}
func (*Portfolio) holding() {}

// Combine rolls b into a. The result carries a's ticker and initial date, the trades of both
// ledgers in date order, the summed quantity and b's effective date as its roll date. Null is the
// identity on either side.
//
// A result with zero net quantity is flat: it is no longer open but, unlike an exited position,
// may still be combined with later positions.
func Combine(a, b *Position) (*Position, error) {
	if a == nil || a.IsNull() {
		if b == nil {
			return Null(), nil
		}
		return b.Clone(), nil
	}

	if b == nil || b.IsNull() {
		return a.Clone(), nil
	}

	if a.ticker != b.ticker {
		return nil, fmt.Errorf("%w: %s and %s", ErrTickerMismatch, a.ticker, b.ticker)
	}

	if a.exited || b.exited {
		return nil, fmt.Errorf("%w: cannot combine an exited position in %s", ErrInvalidState, a.ticker)
	}

	if a.EffectiveDate().After(b.EffectiveDate()) {
		return nil, fmt.Errorf("%w: left operand effective %s is after right operand effective %s", ErrTemporalOrder,
			a.EffectiveDate().Format("2006-01-02"), b.EffectiveDate().Format("2006-01-02"))
	}

	res := a.Clone()
	res.ledger = a.ledger.Merge(b.ledger)
	res.history = nil
	res.rollDate = b.EffectiveDate()
	res.quantity = a.quantity + b.quantity
	res.exitDate = time.Time{}
	res.exitPrice = 0

	if math.Abs(res.quantity) < shareEpsilon {
		res.quantity = 0
		res.exitDate = res.rollDate
		if last := res.ledger.Last(); last != nil {
			res.exitPrice = last.Price
		}
	}

	log.Debug().Object("Left", a).Object("Right", b).Object("Result", res).Msg("combined positions")

	return res, nil
}

// Add combines two positions. Same-ticker positions are rolled with Combine; positions in
// different tickers produce a portfolio holding both
func Add(a, b *Position) (Holding, error) {
	if a == nil || a.IsNull() || b == nil || b.IsNull() || a.ticker == b.ticker {
		pos, err := Combine(a, b)
		if err != nil {
			return nil, err
		}
		return pos, nil
	}

	port, err := FromPositions(a, b)
	if err != nil {
		return nil, err
	}
	return port, nil
}

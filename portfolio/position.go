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
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/dataframe"
	"github.com/penny-vault/positions/tradecron"
)

const (
	// share quantities closer to zero than this are treated as flat
	shareEpsilon = 1e-9
)

// Position is a holding in a single ticker. Quantity is signed: positive for long and negative
// for short positions. Every change in quantity is backed by an entry in the position's ledger.
//
// A position is open until it is explicitly exited or until it is rolled (combined) into a
// net quantity of zero. After it is closed only derived metrics may be read.
type Position struct {
	ticker    string
	initDate  time.Time
	quantity  float64
	rollDate  time.Time
	exitDate  time.Time
	exitPrice float64

	ledger  *Ledger
	exited  bool
	null    bool
	history *dataframe.DataFrame[time.Time]
	audit   AuditSink
}

type PositionOption func(*Position)

// WithAuditSink sends the position's mutation events to sink
func WithAuditSink(sink AuditSink) PositionOption {
	return func(p *Position) {
		p.audit = sink
	}
}

func checkDate(date time.Time) error {
	if !tradecron.IsWeekday(date) {
		return fmt.Errorf("%w: %s is a %s", ErrInvalidDate, date.Format("2006-01-02"), date.Weekday())
	}
	return nil
}

func checkShares(shares float64) error {
	if shares == 0 || math.IsNaN(shares) || math.IsInf(shares, 0) {
		return fmt.Errorf("%w: share quantity must be finite and non-zero, got %f", ErrPrecondition, shares)
	}
	return nil
}

// NewPosition opens a position in ticker and records the opening trade. A negative quantity opens
// a short position
func NewPosition(ticker string, initDate time.Time, initPrice, initQuantity float64, opts ...PositionOption) (*Position, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is empty", ErrPrecondition)
	}

	if err := checkDate(initDate); err != nil {
		return nil, err
	}

	if err := checkShares(initQuantity); err != nil {
		return nil, err
	}

	initDate = common.Day(initDate)
	p := &Position{
		ticker:   ticker,
		initDate: initDate,
		ledger:   &Ledger{},
		audit:    LogSink{},
	}

	for _, opt := range opts {
		opt(p)
	}

	if _, err := p.ledger.Append(initDate, initPrice, initQuantity); err != nil {
		return nil, err
	}
	p.quantity = initQuantity

	verb := "BTO"
	if initQuantity < 0 {
		verb = "STO"
	}
	p.record(fmt.Sprintf("%s %g shares of %s at %.2f on %s", verb, math.Abs(initQuantity), ticker, initPrice, initDate.Format("2006-01-02")))

	return p, nil
}

// Buy adds shares to the position. Buying on a closed position is a no-op. Buying at least as
// many shares as a short position holds, to within shareEpsilon, closes it
func (p *Position) Buy(date time.Time, price, shares float64) (*Position, error) {
	if err := checkDate(date); err != nil {
		return p, err
	}

	if !p.IsOpen() {
		log.Debug().Str("Ticker", p.ticker).Time("Date", date).Msg("ignoring buy on closed position")
		return p, nil
	}

	if err := checkShares(shares); err != nil {
		return p, err
	}

	shares = math.Abs(shares)
	if p.quantity < 0 && shares >= math.Abs(p.quantity)-shareEpsilon {
		return p.Exit(date, price)
	}

	date = common.Day(date)
	if _, err := p.ledger.Append(date, price, shares); err != nil {
		return p, err
	}
	p.quantity += shares

	p.record(fmt.Sprintf("BUY %g shares of %s at %.2f on %s", shares, p.ticker, price, date.Format("2006-01-02")))
	return p, nil
}

// Sell removes shares from the position. Selling at least as many shares as a long position
// holds, to within shareEpsilon, closes it. Selling a closed position fails with ErrInvalidState
func (p *Position) Sell(date time.Time, price, shares float64) (*Position, error) {
	if err := checkDate(date); err != nil {
		return p, err
	}

	if !p.IsOpen() {
		return p, fmt.Errorf("%w: cannot sell closed position in %s", ErrInvalidState, p.ticker)
	}

	if err := checkShares(shares); err != nil {
		return p, err
	}

	shares = math.Abs(shares)
	if p.quantity > 0 && shares >= p.quantity-shareEpsilon {
		return p.Exit(date, price)
	}

	date = common.Day(date)
	if _, err := p.ledger.Append(date, price, -shares); err != nil {
		return p, err
	}
	p.quantity -= shares

	p.record(fmt.Sprintf("SELL %g shares of %s at %.2f on %s", shares, p.ticker, price, date.Format("2006-01-02")))
	return p, nil
}

// Exit closes the position by appending a trade that brings its quantity to zero
func (p *Position) Exit(date time.Time, price float64) (*Position, error) {
	if err := checkDate(date); err != nil {
		return p, err
	}

	if p.exited {
		return p, fmt.Errorf("%w: %s already exited on %s", ErrInvalidState, p.ticker, p.exitDate.Format("2006-01-02"))
	}

	if !p.IsOpen() {
		return p, fmt.Errorf("%w: %s has no open quantity", ErrInvalidState, p.ticker)
	}

	date = common.Day(date)
	closing := -p.quantity
	if _, err := p.ledger.Append(date, price, closing); err != nil {
		return p, err
	}
	p.ledger.Close(date)

	verb := "STC"
	if closing > 0 {
		verb = "BTC"
	}
	p.record(fmt.Sprintf("%s %g shares of %s at %.2f on %s", verb, math.Abs(closing), p.ticker, price, date.Format("2006-01-02")))

	p.exited = true
	p.exitDate = date
	p.exitPrice = price
	p.quantity = 0

	return p, nil
}

// ID is a stable hash of the ticker and initial date
func (p *Position) ID() uint64 {
	if p.null {
		return 0
	}

	h := blake3.New()
	if _, err := h.Write([]byte(p.ticker)); err != nil {
		log.Panic().Err(err).Msg("could not write ticker to blake3 hasher")
	}
	if _, err := h.Write([]byte(p.initDate.Format("2006-01-02"))); err != nil {
		log.Panic().Err(err).Msg("could not write date to blake3 hasher")
	}

	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

func (p *Position) Ticker() string {
	return p.ticker
}

func (p *Position) InitDate() time.Time {
	return p.initDate
}

// Quantity is the signed number of shares currently held
func (p *Position) Quantity() float64 {
	return p.quantity
}

// RollDate is the effective date of the last position combined into this one; zero if never rolled
func (p *Position) RollDate() time.Time {
	return p.rollDate
}

func (p *Position) ExitDate() time.Time {
	return p.exitDate
}

func (p *Position) ExitPrice() float64 {
	return p.exitPrice
}

// EffectiveDate is the roll date if set, otherwise the initial date
func (p *Position) EffectiveDate() time.Time {
	if !p.rollDate.IsZero() {
		return p.rollDate
	}
	return p.initDate
}

// IsNull returns true for the identity position created by Null
func (p *Position) IsNull() bool {
	return p.null
}

// IsOpen returns true while the position holds shares and has not been exited
func (p *Position) IsOpen() bool {
	return !p.null && !p.exited && p.quantity != 0
}

// Exited returns true if Exit was called on the position
func (p *Position) Exited() bool {
	return p.exited
}

// Ledger returns a copy of the position's trade ledger
func (p *Position) Ledger() *Ledger {
	return p.ledger.Clone()
}

// CashInvested is the dot product of trade prices and shares. The closing trade is excluded once
// the position is closed
func (p *Position) CashInvested() float64 {
	return p.ledger.CashInvested(!p.IsOpen())
}

// DaysOpen is the number of calendar days from the first trade to now while the position is open
// or to the last trade once it is closed
func (p *Position) DaysOpen(now time.Time) int {
	first := p.ledger.First()
	if first == nil {
		return 0
	}

	end := common.Day(now)
	if !p.IsOpen() {
		end = p.ledger.Last().Date
	}

	return int(math.Round(end.Sub(first.Date).Hours() / 24))
}

// HasHistory returns true once a valuation has been attached
func (p *Position) HasHistory() bool {
	return p.history != nil
}

// History returns a copy of the attached valuation series
func (p *Position) History() (*dataframe.DataFrame[time.Time], error) {
	if p.history == nil {
		return nil, fmt.Errorf("%w: no price history attached to %s", ErrPrecondition, p.ticker)
	}
	return p.history.Copy(), nil
}

// Returns is the total return of the position over its attached history
func (p *Position) Returns() (float64, error) {
	if p.history == nil {
		return 0, fmt.Errorf("%w: no price history attached to %s", ErrPrecondition, p.ticker)
	}

	values, err := p.history.Column(ColPositionValue)
	if err != nil {
		return 0, err
	}

	for idx := len(values) - 1; idx >= 0; idx-- {
		if !math.IsNaN(values[idx]) {
			return values[idx] - 1, nil
		}
	}

	return 0, fmt.Errorf("%w: history of %s holds no position values", ErrPrecondition, p.ticker)
}

// Summary reports the headline metrics of a position with attached history
func (p *Position) Summary(now time.Time) (*Summary, error) {
	ret, err := p.Returns()
	if err != nil {
		return nil, err
	}

	return &Summary{
		Ticker:       p.ticker,
		DaysOpen:     p.DaysOpen(now),
		Return:       ret,
		CashInvested: p.CashInvested(),
	}, nil
}

// Clone returns a deep copy of the position
func (p *Position) Clone() *Position {
	clone := *p
	clone.ledger = p.ledger.Clone()
	if p.history != nil {
		clone.history = p.history.Copy()
	}
	return &clone
}

func (p *Position) String() string {
	if p.null {
		return "Position(null)"
	}

	if p.IsOpen() {
		roll := "-"
		if !p.rollDate.IsZero() {
			roll = p.rollDate.Format("2006-01-02")
		}
		return fmt.Sprintf("Position(Ticker: %s, Shares: %g, InitDate: %s, RollDate: %s)", p.ticker, p.quantity,
			p.initDate.Format("2006-01-02"), roll)
	}

	return fmt.Sprintf("Position(Ticker: %s, ExitDate: %s)", p.ticker, p.exitDate.Format("2006-01-02"))
}

// Summary holds the headline metrics of a position
type Summary struct {
	Ticker       string
	DaysOpen     int
	Return       float64
	CashInvested float64
}

func (s *Summary) String() string {
	return fmt.Sprintf("Ticker symbol: %s\nReturn over %d days: %.3f%%\nTotal cash invested: %.2f",
		s.Ticker, s.DaysOpen, s.Return*100, s.CashInvested)
}

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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/data"
	"github.com/penny-vault/positions/dataframe"
)

const (
	DefaultCash = 10000.0
)

// Normalization selects how explicit weights passed to FromSpecification are scaled
type Normalization string

const (
	NormalizeSum   Normalization = "sum"
	NormalizeCount Normalization = "count"
)

// ParseNormalization converts a configuration value into a Normalization
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(strings.ToLower(strings.TrimSpace(s))) {
	case NormalizeSum, "":
		return NormalizeSum, nil
	case NormalizeCount:
		return NormalizeCount, nil
	default:
		return "", fmt.Errorf("%w: unknown weight normalization %q", ErrPrecondition, s)
	}
}

// Entry is a position held by a portfolio together with its relative size
type Entry struct {
	Position *Position
	Weight   float64
}

// Portfolio holds at most one open position per ticker. Positions are copied on the way in and on
// the way out so the portfolio is the only owner of the positions it holds
type Portfolio struct {
	cash          float64
	invested      float64
	normalization Normalization
	provider      data.HistoryProvider

	order   []string
	entries map[string]*Entry
	ids     map[uint64]string
}

type Option func(*Portfolio)

// WithCash sets the cash used to size positions created by FromSpecification
func WithCash(cash float64) Option {
	return func(p *Portfolio) {
		p.cash = cash
	}
}

// WithNormalization sets how explicit weights are normalized
func WithNormalization(n Normalization) Option {
	return func(p *Portfolio) {
		p.normalization = n
	}
}

// WithProvider sets the price history provider used to look up opening prices
func WithProvider(provider data.HistoryProvider) Option {
	return func(p *Portfolio) {
		p.provider = provider
	}
}

// NewPortfolio creates an empty portfolio
func NewPortfolio(opts ...Option) *Portfolio {
	p := &Portfolio{
		cash:          DefaultCash,
		normalization: NormalizeSum,
		order:         []string{},
		entries:       make(map[string]*Entry),
		ids:           make(map[uint64]string),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// FromPositions creates a portfolio holding positions. Positions in the same ticker are rolled
// together and every entry is weighted by its share of the invested dollars
func FromPositions(positions ...*Position) (*Portfolio, error) {
	p := NewPortfolio()
	if err := p.AddPositions(positions...); err != nil {
		return nil, err
	}
	return p, nil
}

func exposure(pos *Position) float64 {
	first := pos.ledger.First()
	if first == nil {
		return 0
	}
	return math.Abs(pos.quantity * first.Price)
}

// AddPosition adds an open position with the given weight. A position whose id is already present
// fails with ErrDuplicateID and one whose ticker is held under another id fails with
// ErrDuplicateSymbol
func (p *Portfolio) AddPosition(pos *Position, weight float64) error {
	if pos == nil || !pos.IsOpen() {
		return fmt.Errorf("%w: only open positions can be added to a portfolio", ErrPrecondition)
	}

	id := pos.ID()
	if _, ok := p.ids[id]; ok {
		return fmt.Errorf("%w: %s (%d)", ErrDuplicateID, pos.ticker, id)
	}

	if _, ok := p.entries[pos.ticker]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, pos.ticker)
	}

	p.entries[pos.ticker] = &Entry{
		Position: pos.Clone(),
		Weight:   weight,
	}
	p.ids[id] = pos.ticker
	p.order = append(p.order, pos.ticker)
	p.invested += exposure(pos)

	log.Debug().Object("Position", pos).Float64("Weight", weight).Float64("Invested", p.invested).Msg("added position to portfolio")

	return nil
}

// AddPositions adds each position, rolling it into any position already held in the same ticker,
// then reweights every entry by its share of the invested dollars
func (p *Portfolio) AddPositions(positions ...*Position) error {
	for _, pos := range positions {
		if pos == nil || !pos.IsOpen() {
			return fmt.Errorf("%w: only open positions can be added to a portfolio", ErrPrecondition)
		}

		if _, ok := p.ids[pos.ID()]; ok {
			return fmt.Errorf("%w: %s (%d)", ErrDuplicateID, pos.ticker, pos.ID())
		}

		if _, ok := p.entries[pos.ticker]; !ok {
			if err := p.AddPosition(pos, 0); err != nil {
				return err
			}
			continue
		}

		if err := p.roll(pos, 0); err != nil {
			return err
		}
	}

	p.reweight()
	return nil
}

// roll combines pos into the entry already held in the same ticker
func (p *Portfolio) roll(pos *Position, weight float64) error {
	entry := p.entries[pos.ticker]
	held := entry.Position

	var merged *Position
	var err error
	if pos.EffectiveDate().Before(held.EffectiveDate()) {
		merged, err = Combine(pos, held)
	} else {
		merged, err = Combine(held, pos)
	}
	if err != nil {
		return err
	}

	p.invested -= exposure(held)
	p.ids[pos.ID()] = pos.ticker

	if !merged.IsOpen() {
		log.Debug().Str("Ticker", pos.ticker).Msg("rolled position is flat; removing from portfolio")
		p.remove(pos.ticker)
		return nil
	}

	entry.Position = merged
	entry.Weight += weight
	p.ids[merged.ID()] = merged.ticker
	p.invested += exposure(merged)

	return nil
}

func (p *Portfolio) remove(ticker string) {
	delete(p.entries, ticker)
	for id, t := range p.ids {
		if t == ticker {
			delete(p.ids, id)
		}
	}
	for idx, t := range p.order {
		if t == ticker {
			p.order = append(p.order[:idx], p.order[idx+1:]...)
			break
		}
	}
}

func (p *Portfolio) reweight() {
	if p.invested == 0 {
		return
	}
	for _, entry := range p.entries {
		entry.Weight = exposure(entry.Position) / p.invested
	}
}

// normalize returns the weight of each of n symbols
func (p *Portfolio) normalize(n int, weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		res := make([]float64, n)
		for idx := range res {
			res[idx] = 1.0 / float64(n)
		}
		return res, nil
	}

	if len(weights) != n {
		return nil, fmt.Errorf("%w: %d symbols but %d weights", ErrLengthMismatch, n, len(weights))
	}

	divisor := float64(len(weights))
	if p.normalization == NormalizeSum {
		divisor = 0
		for _, w := range weights {
			divisor += w
		}
	}

	if divisor == 0 || math.IsNaN(divisor) {
		return nil, fmt.Errorf("%w: weights sum to %f", ErrPrecondition, divisor)
	}

	res := make([]float64, n)
	for idx, w := range weights {
		res[idx] = w / divisor
	}
	return res, nil
}

// FromSpecification opens one position per symbol sized as weight * cash / opening price, where
// the opening price is the adjusted close on the position's date. A single date is shared by every
// symbol; no weights means equal weights. Nothing is added unless every position can be opened
func (p *Portfolio) FromSpecification(ctx context.Context, symbols []string, dates []time.Time, weights []float64) error {
	n := len(symbols)
	if n == 0 {
		return fmt.Errorf("%w: no symbols given", ErrLengthMismatch)
	}

	switch len(dates) {
	case n:
	case 1:
		shared := dates[0]
		dates = make([]time.Time, n)
		for idx := range dates {
			dates[idx] = shared
		}
	default:
		return fmt.Errorf("%w: %d symbols but %d dates", ErrLengthMismatch, n, len(dates))
	}

	normalized, err := p.normalize(n, weights)
	if err != nil {
		return err
	}

	if p.provider == nil {
		return fmt.Errorf("%w: portfolio has no price history provider", ErrPrecondition)
	}

	symbols = append([]string{}, symbols...)
	common.ArrToUpper(symbols)

	seen := make(map[string]bool, n)
	for idx, symbol := range symbols {
		if seen[symbol] {
			return fmt.Errorf("%w: %s given twice", ErrDuplicateSymbol, symbol)
		}
		if _, ok := p.entries[symbol]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol)
		}
		seen[symbol] = true

		if err := checkDate(dates[idx]); err != nil {
			return err
		}
	}

	positions := make([]*Position, n)
	for idx, symbol := range symbols {
		price, err := p.openingPrice(ctx, symbol, dates[idx])
		if err != nil {
			return err
		}

		shares := normalized[idx] * p.cash / price
		pos, err := NewPosition(symbol, dates[idx], price, shares)
		if err != nil {
			return err
		}
		positions[idx] = pos
	}

	for idx, pos := range positions {
		if err := p.AddPosition(pos, normalized[idx]); err != nil {
			return err
		}
	}

	return nil
}

func (p *Portfolio) openingPrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	date = common.Day(date)
	hist, err := p.provider.FetchHistory(ctx, symbol, date, date)
	if err != nil {
		return 0, asUnavailable(symbol, err)
	}

	prices := hist.AsMap(data.MetricAdjustedClose)
	price, ok := prices[date]
	if !ok || math.IsNaN(price) || price <= 0 {
		return 0, &data.UnavailableError{Symbol: symbol, Err: fmt.Errorf("%w: no adjusted close on %s", data.ErrEmptyResponse, date.Format("2006-01-02"))}
	}

	return price, nil
}

// Combine returns a new portfolio holding the positions of p and other. Positions in the same
// ticker are rolled together and their weights summed
func (p *Portfolio) Combine(other *Portfolio) (*Portfolio, error) {
	res := NewPortfolio(WithCash(p.cash), WithNormalization(p.normalization), WithProvider(p.provider))

	for _, ticker := range p.order {
		entry := p.entries[ticker]
		if err := res.AddPosition(entry.Position, entry.Weight); err != nil {
			return nil, err
		}
	}

	for _, ticker := range other.order {
		entry := other.entries[ticker]
		if _, ok := res.ids[entry.Position.ID()]; ok {
			return nil, fmt.Errorf("%w: %s (%d)", ErrDuplicateID, ticker, entry.Position.ID())
		}
		if _, ok := res.entries[ticker]; ok {
			if err := res.roll(entry.Position, entry.Weight); err != nil {
				return nil, err
			}
			continue
		}
		if err := res.AddPosition(entry.Position, entry.Weight); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// Get returns a copy of the position held in ticker
func (p *Portfolio) Get(ticker string) (*Position, bool) {
	entry, ok := p.entries[strings.ToUpper(ticker)]
	if !ok {
		return nil, false
	}
	return entry.Position.Clone(), true
}

// Weight returns the weight of ticker
func (p *Portfolio) Weight(ticker string) (float64, bool) {
	entry, ok := p.entries[strings.ToUpper(ticker)]
	if !ok {
		return 0, false
	}
	return entry.Weight, true
}

func (p *Portfolio) Len() int {
	return len(p.order)
}

func (p *Portfolio) Cash() float64 {
	return p.cash
}

// Invested is the total dollar exposure of the positions at their opening prices
func (p *Portfolio) Invested() float64 {
	return p.invested
}

// Tickers returns the held tickers in the order they were added
func (p *Portfolio) Tickers() []string {
	tickers := make([]string, len(p.order))
	copy(tickers, p.order)
	return tickers
}

// Positions returns a copy of every held position in the order they were added
func (p *Portfolio) Positions() []*Position {
	positions := make([]*Position, len(p.order))
	for idx, ticker := range p.order {
		positions[idx] = p.entries[ticker].Position.Clone()
	}
	return positions
}

// Weights returns the weight of every held position in the order they were added
func (p *Portfolio) Weights() []float64 {
	weights := make([]float64, len(p.order))
	for idx, ticker := range p.order {
		weights[idx] = p.entries[ticker].Weight
	}
	return weights
}

// Vectorized returns a (quantity, weight) pair for every held position in the order they were added
func (p *Portfolio) Vectorized() [][2]float64 {
	vec := make([][2]float64, len(p.order))
	for idx, ticker := range p.order {
		entry := p.entries[ticker]
		vec[idx] = [2]float64{entry.Position.quantity, entry.Weight}
	}
	return vec
}

// Table returns the position value of every held position with one column per ticker and one row
// per date. Every position must have a valuation attached
func (p *Portfolio) Table() (*dataframe.DataFrame[time.Time], error) {
	dfMap := make(dataframe.Map[time.Time], len(p.order))
	for _, ticker := range p.order {
		pos := p.entries[ticker].Position
		if pos.history == nil {
			return nil, fmt.Errorf("%w: no price history attached to %s", ErrPrecondition, ticker)
		}

		values, err := pos.history.Column(ColPositionValue)
		if err != nil {
			return nil, err
		}

		dfMap[ticker] = &dataframe.DataFrame[time.Time]{
			Index:    pos.history.Index,
			ColNames: []string{ticker},
			Vals:     [][]float64{values},
		}
	}

	merged := dfMap.Merge()

	// keep the columns in the order positions were added
	ordered := &dataframe.DataFrame[time.Time]{
		Index:    merged.Index,
		ColNames: make([]string, 0, len(p.order)),
		Vals:     make([][]float64, 0, len(p.order)),
	}
	for _, ticker := range p.order {
		ordered.ColNames = append(ordered.ColNames, ticker)
		ordered.Vals = append(ordered.Vals, merged.Vals[merged.ColIndex(ticker)])
	}

	return ordered, nil
}

func (p *Portfolio) String() string {
	parts := make([]string, len(p.order))
	for idx, ticker := range p.order {
		entry := p.entries[ticker]
		parts[idx] = fmt.Sprintf("%s: %.4f @ %.4f", ticker, entry.Position.quantity, entry.Weight)
	}
	return fmt.Sprintf("Portfolio(%s)", strings.Join(parts, ", "))
}

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

package portfolio_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/positions/portfolio"
)

func mustPosition(ticker, date string, price, shares float64) *portfolio.Position {
	pos, err := portfolio.NewPosition(ticker, day(date), price, shares)
	Expect(err).To(BeNil())
	return pos
}

func mustCombine(a, b *portfolio.Position) *portfolio.Position {
	res, err := portfolio.Combine(a, b)
	Expect(err).To(BeNil())
	return res
}

var _ = Describe("Monoid", func() {
	var (
		a, b, c *portfolio.Position
	)

	BeforeEach(func() {
		a = mustPosition("SPY", "2020-02-05", 300, 1)
		b = mustPosition("SPY", "2020-02-06", 301, 2)
		c = mustPosition("SPY", "2020-02-10", 310, -1)
	})

	Describe("Combine", func() {
		It("treats null as the identity on both sides", func() {
			left := mustCombine(portfolio.Null(), a)
			right := mustCombine(a, portfolio.Null())

			for _, res := range []*portfolio.Position{left, right} {
				Expect(res).ToNot(BeIdenticalTo(a))
				Expect(res.Ticker()).To(Equal(a.Ticker()))
				Expect(res.Quantity()).To(Equal(a.Quantity()))
				Expect(res.InitDate()).To(Equal(a.InitDate()))
				Expect(res.RollDate().IsZero()).To(BeTrue())
				Expect(res.Ledger().Shares()).To(Equal(a.Ledger().Shares()))
			}

			null := mustCombine(portfolio.Null(), portfolio.Null())
			Expect(null.IsNull()).To(BeTrue())
			Expect(null.ID()).To(Equal(uint64(0)))
			Expect(null.IsOpen()).To(BeFalse())
		})

		It("sums quantities and merges ledgers", func() {
			res := mustCombine(a, b)
			Expect(res.Quantity()).To(Equal(3.0))
			Expect(res.InitDate()).To(Equal(day("2020-02-05")))
			Expect(res.RollDate()).To(Equal(day("2020-02-06")))
			Expect(res.EffectiveDate()).To(Equal(day("2020-02-06")))
			Expect(res.Ledger().Dates()).To(Equal([]time.Time{day("2020-02-05"), day("2020-02-06")}))
			Expect(res.ID()).To(Equal(a.ID()))

			Expect(a.Quantity()).To(Equal(1.0))
			Expect(b.Ledger().Len()).To(Equal(1))
		})

		It("is associative", func() {
			left := mustCombine(mustCombine(a, b), c)
			right := mustCombine(a, mustCombine(b, c))

			Expect(left.Quantity()).To(Equal(right.Quantity()))
			Expect(left.InitDate()).To(Equal(right.InitDate()))
			Expect(left.RollDate()).To(Equal(right.RollDate()))
			Expect(left.Ledger().Dates()).To(Equal(right.Ledger().Dates()))
			Expect(left.Ledger().Shares()).To(Equal(right.Ledger().Shares()))
			Expect(left.Ledger().Prices()).To(Equal(right.Ledger().Prices()))
		})

		It("requires the left operand to come first", func() {
			_, err := portfolio.Combine(b, a)
			Expect(err).To(MatchError(portfolio.ErrTemporalOrder))
		})

		It("allows equal effective dates", func() {
			same := mustPosition("SPY", "2020-02-05", 299, 4)
			res := mustCombine(a, same)
			Expect(res.Quantity()).To(Equal(5.0))
			Expect(res.Ledger().Prices()).To(Equal([]float64{300, 299}))
		})

		It("refuses to combine different tickers", func() {
			other := mustPosition("IWM", "2020-02-06", 150, 1)
			_, err := portfolio.Combine(a, other)
			Expect(err).To(MatchError(portfolio.ErrTickerMismatch))
		})

		It("refuses to combine an exited position", func() {
			_, err := a.Exit(day("2020-02-05"), 300)
			Expect(err).To(BeNil())
			_, err = portfolio.Combine(a, b)
			Expect(err).To(MatchError(portfolio.ErrInvalidState))
		})

		It("goes flat when quantities cancel and can be rolled again", func() {
			short := mustPosition("SPY", "2020-02-06", 305, -1)
			flat := mustCombine(a, short)
			Expect(flat.Quantity()).To(Equal(0.0))
			Expect(flat.IsOpen()).To(BeFalse())
			Expect(flat.Exited()).To(BeFalse())
			Expect(flat.ExitDate()).To(Equal(day("2020-02-06")))
			Expect(flat.ExitPrice()).To(Equal(305.0))

			reopened := mustCombine(flat, c)
			Expect(reopened.Quantity()).To(Equal(-1.0))
			Expect(reopened.IsOpen()).To(BeTrue())
			Expect(reopened.ExitDate().IsZero()).To(BeTrue())
			Expect(reopened.Ledger().Len()).To(Equal(3))
		})
	})

	Describe("Fold", func() {
		It("nets updates and records signals in date order", func() {
			signals := &portfolio.SignalSeries{}
			monoid := portfolio.NewPositionMonoid("spy", signals)

			res, err := monoid.Fold(
				portfolio.Update{Shares: 1, Date: day("2020-02-05"), Price: 300},
				portfolio.Update{Shares: -3, Date: day("2020-02-06"), Price: 301},
				portfolio.Update{Shares: 2, Date: day("2020-02-10"), Price: 305},
				portfolio.Update{Shares: -6, Date: day("2020-02-14"), Price: 310},
				portfolio.Update{Shares: 3, Date: day("2020-02-24"), Price: 320},
			)
			Expect(err).To(BeNil())
			Expect(res.Ticker()).To(Equal("SPY"))
			Expect(res.Quantity()).To(Equal(-3.0))
			Expect(res.InitDate()).To(Equal(day("2020-02-05")))
			Expect(res.RollDate()).To(Equal(day("2020-02-24")))
			Expect(res.Ledger().Len()).To(Equal(5))

			Expect(signals.Dates()).To(Equal([]time.Time{
				day("2020-02-05"), day("2020-02-06"), day("2020-02-10"), day("2020-02-14"), day("2020-02-24"),
			}))
			Expect(signals.Deltas()).To(Equal([]float64{1, -3, 2, -6, 3}))

			df := signals.DataFrame()
			Expect(df.ColNames).To(Equal([]string{portfolio.ColSignal, portfolio.ColNet}))
			Expect(df.Vals[1]).To(Equal([]float64{1, -2, 0, -6, -3}))
		})

		It("returns null for an empty fold", func() {
			res, err := portfolio.NewPositionMonoid("SPY", nil).Fold()
			Expect(err).To(BeNil())
			Expect(res.IsNull()).To(BeTrue())
		})

		It("stops on the first out-of-order update", func() {
			signals := &portfolio.SignalSeries{}
			_, err := portfolio.NewPositionMonoid("SPY", signals).Fold(
				portfolio.Update{Shares: 1, Date: day("2020-02-10")},
				portfolio.Update{Shares: 1, Date: day("2020-02-05")},
			)
			Expect(err).To(MatchError(portfolio.ErrTemporalOrder))
			Expect(signals.Len()).To(Equal(1))
		})

		It("rejects weekend updates", func() {
			_, err := portfolio.NewPositionMonoid("SPY", nil).Fold(
				portfolio.Update{Shares: 1, Date: day("2020-02-08")},
			)
			Expect(err).To(MatchError(portfolio.ErrInvalidDate))
		})
	})

	Describe("SignalSeries", func() {
		It("sums changes recorded on the same date", func() {
			signals := &portfolio.SignalSeries{}
			signals.Record(day("2020-02-06"), 2)
			signals.Record(day("2020-02-05"), 1)
			signals.Record(day("2020-02-06"), -1)

			df := signals.DataFrame()
			Expect(df.Index).To(Equal([]time.Time{day("2020-02-05"), day("2020-02-06")}))
			Expect(df.Vals[0]).To(Equal([]float64{1, 1}))
			Expect(df.Vals[1]).To(Equal([]float64{1, 2}))
		})
	})

	Describe("Add", func() {
		It("rolls positions in the same ticker", func() {
			res, err := portfolio.Add(a, b)
			Expect(err).To(BeNil())
			pos, ok := res.(*portfolio.Position)
			Expect(ok).To(BeTrue())
			Expect(pos.Quantity()).To(Equal(3.0))
		})

		It("returns the other operand when one side is null", func() {
			res, err := portfolio.Add(portfolio.Null(), a)
			Expect(err).To(BeNil())
			pos, ok := res.(*portfolio.Position)
			Expect(ok).To(BeTrue())
			Expect(pos.Ticker()).To(Equal("SPY"))
		})

		It("builds a portfolio from different tickers", func() {
			iwm := mustPosition("IWM", "2020-02-05", 150, 2)
			res, err := portfolio.Add(a, iwm)
			Expect(err).To(BeNil())
			port, ok := res.(*portfolio.Portfolio)
			Expect(ok).To(BeTrue())
			Expect(port.Tickers()).To(Equal([]string{"SPY", "IWM"}))
			Expect(port.Weights()).To(Equal([]float64{0.5, 0.5}))
		})

		It("propagates combine errors", func() {
			res, err := portfolio.Add(b, a)
			Expect(err).To(MatchError(portfolio.ErrTemporalOrder))
			Expect(res).To(BeNil())
		})
	})
})

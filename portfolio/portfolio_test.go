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
	"context"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/positions/data"
	"github.com/penny-vault/positions/portfolio"
)

var _ = Describe("Portfolio", func() {
	var (
		ctx      context.Context
		provider *fakeProvider
		port     *portfolio.Portfolio
	)

	BeforeEach(func() {
		ctx = context.Background()
		provider = newFakeProvider()
		port = portfolio.NewPortfolio(portfolio.WithProvider(provider))
	})

	Describe("AddPosition", func() {
		It("rejects the same position twice", func() {
			spy := mustPosition("SPY", "2020-02-05", 300, 1)
			Expect(port.AddPosition(spy, 1)).To(Succeed())
			Expect(port.AddPosition(spy, 1)).To(MatchError(portfolio.ErrDuplicateID))
			Expect(port.Len()).To(Equal(1))
		})

		It("rejects a second position in a held ticker", func() {
			Expect(port.AddPosition(mustPosition("SPY", "2020-02-05", 300, 1), 0.5)).To(Succeed())
			err := port.AddPosition(mustPosition("SPY", "2020-02-06", 301, 1), 0.5)
			Expect(err).To(MatchError(portfolio.ErrDuplicateSymbol))
			Expect(port.Len()).To(Equal(1))
		})

		It("only accepts open positions", func() {
			spy := mustPosition("SPY", "2020-02-05", 300, 1)
			_, err := spy.Exit(day("2020-02-06"), 301)
			Expect(err).To(BeNil())
			Expect(port.AddPosition(spy, 1)).To(MatchError(portfolio.ErrPrecondition))
			Expect(port.AddPosition(portfolio.Null(), 1)).To(MatchError(portfolio.ErrPrecondition))
		})

		It("copies positions in and out", func() {
			spy := mustPosition("SPY", "2020-02-05", 300, 1)
			Expect(port.AddPosition(spy, 1)).To(Succeed())

			_, err := spy.Buy(day("2020-02-06"), 301, 5)
			Expect(err).To(BeNil())

			held, ok := port.Get("spy")
			Expect(ok).To(BeTrue())
			Expect(held.Quantity()).To(Equal(1.0))

			_, err = held.Buy(day("2020-02-06"), 301, 5)
			Expect(err).To(BeNil())
			again, _ := port.Get("SPY")
			Expect(again.Quantity()).To(Equal(1.0))
		})
	})

	Describe("AddPositions", func() {
		It("rolls positions in the same ticker and weights by exposure", func() {
			err := port.AddPositions(
				mustPosition("SPY", "2020-02-05", 100, 3),
				mustPosition("IWM", "2020-02-05", 50, 2),
				mustPosition("SPY", "2020-02-06", 110, 1),
			)
			Expect(err).To(BeNil())
			Expect(port.Tickers()).To(Equal([]string{"SPY", "IWM"}))

			spy, ok := port.Get("SPY")
			Expect(ok).To(BeTrue())
			Expect(spy.Quantity()).To(Equal(4.0))
			Expect(spy.RollDate()).To(Equal(day("2020-02-06")))

			Expect(port.Invested()).To(BeNumerically("~", 500, 1e-9))
			Expect(port.Weights()[0]).To(BeNumerically("~", 0.8, 1e-9))
			Expect(port.Weights()[1]).To(BeNumerically("~", 0.2, 1e-9))
		})

		It("drops a ticker that rolls flat", func() {
			err := port.AddPositions(
				mustPosition("SPY", "2020-02-05", 100, 3),
				mustPosition("IWM", "2020-02-05", 50, 2),
				mustPosition("SPY", "2020-02-06", 110, -3),
			)
			Expect(err).To(BeNil())
			Expect(port.Tickers()).To(Equal([]string{"IWM"}))
			Expect(port.Weights()).To(Equal([]float64{1.0}))
		})

		It("rejects duplicate ids", func() {
			spy := mustPosition("SPY", "2020-02-05", 100, 3)
			Expect(port.AddPositions(spy, spy)).To(MatchError(portfolio.ErrDuplicateID))
		})
	})

	Describe("FromSpecification", func() {
		It("splits cash equally when no weights are given", func() {
			err := port.FromSpecification(ctx, []string{"SPY", "IWM"}, []time.Time{day("2020-02-05")}, nil)
			Expect(err).To(BeNil())
			Expect(port.Tickers()).To(Equal([]string{"SPY", "IWM"}))
			Expect(port.Weights()).To(Equal([]float64{0.5, 0.5}))

			price := generatedPrice(day("2020-02-05"))
			for _, pos := range port.Positions() {
				Expect(pos.IsOpen()).To(BeTrue())
				Expect(pos.InitDate()).To(Equal(day("2020-02-05")))
				Expect(pos.Quantity()).To(BeNumerically("~", 0.5*portfolio.DefaultCash/price, 1e-9))
				Expect(pos.Ledger().Prices()).To(Equal([]float64{price}))
			}
		})

		It("normalizes explicit weights by their sum", func() {
			err := port.FromSpecification(ctx, []string{"SPY", "IWM"}, []time.Time{day("2020-02-05")}, []float64{3, 1})
			Expect(err).To(BeNil())
			Expect(port.Weights()).To(Equal([]float64{0.75, 0.25}))
		})

		It("normalizes explicit weights by their count when configured", func() {
			port = portfolio.NewPortfolio(portfolio.WithProvider(provider), portfolio.WithNormalization(portfolio.NormalizeCount),
				portfolio.WithCash(1000))
			err := port.FromSpecification(ctx, []string{"SPY", "IWM"}, []time.Time{day("2020-02-05")}, []float64{1, 1})
			Expect(err).To(BeNil())
			Expect(port.Weights()).To(Equal([]float64{0.5, 0.5}))

			spy, _ := port.Get("SPY")
			Expect(spy.Quantity()).To(BeNumerically("~", 500/generatedPrice(day("2020-02-05")), 1e-9))
		})

		It("accepts one date per symbol", func() {
			provider.fixed["SPY"] = map[string]float64{"2020-02-05": 320}
			provider.fixed["IWM"] = map[string]float64{"2020-02-06": 160}
			err := port.FromSpecification(ctx, []string{"spy", "iwm"}, []time.Time{day("2020-02-05"), day("2020-02-06")}, []float64{1, 1})
			Expect(err).To(BeNil())

			spy, _ := port.Get("SPY")
			Expect(spy.Quantity()).To(BeNumerically("~", 5000.0/320, 1e-9))
			iwm, _ := port.Get("IWM")
			Expect(iwm.InitDate()).To(Equal(day("2020-02-06")))
			Expect(iwm.Quantity()).To(BeNumerically("~", 5000.0/160, 1e-9))
		})

		DescribeTable("rejects malformed requests",
			func(symbols []string, dates []string, weights []float64, expected error) {
				parsed := make([]time.Time, len(dates))
				for idx, dt := range dates {
					parsed[idx] = day(dt)
				}
				err := port.FromSpecification(ctx, symbols, parsed, weights)
				Expect(err).To(MatchError(expected))
				Expect(port.Len()).To(Equal(0))
				Expect(provider.calls).To(Equal(0))
			},
			Entry("no symbols", []string{}, []string{"2020-02-05"}, nil, portfolio.ErrLengthMismatch),
			Entry("too few weights", []string{"SPY", "IWM"}, []string{"2020-02-05"}, []float64{1}, portfolio.ErrLengthMismatch),
			Entry("too few dates", []string{"SPY", "IWM", "QQQ"}, []string{"2020-02-05", "2020-02-06"}, nil, portfolio.ErrLengthMismatch),
			Entry("zero weights", []string{"SPY", "IWM"}, []string{"2020-02-05"}, []float64{0, 0}, portfolio.ErrPrecondition),
			Entry("repeated symbol", []string{"SPY", "spy"}, []string{"2020-02-05"}, nil, portfolio.ErrDuplicateSymbol),
			Entry("weekend", []string{"SPY"}, []string{"2020-02-08"}, nil, portfolio.ErrInvalidDate),
		)

		It("requires a provider", func() {
			port = portfolio.NewPortfolio()
			err := port.FromSpecification(ctx, []string{"SPY"}, []time.Time{day("2020-02-05")}, nil)
			Expect(err).To(MatchError(portfolio.ErrPrecondition))
		})

		It("adds nothing when a price is unavailable", func() {
			provider.failing["IWM"] = true
			err := port.FromSpecification(ctx, []string{"SPY", "IWM"}, []time.Time{day("2020-02-05")}, nil)
			Expect(err).To(MatchError(data.ErrDataUnavailable))
			Expect(err).To(MatchError(errFakeOutage))

			var unavailable *data.UnavailableError
			Expect(err).To(BeAssignableToTypeOf(unavailable))
			Expect(port.Len()).To(Equal(0))
		})

		It("reports a missing close as unavailable", func() {
			provider.fixed["SPY"] = map[string]float64{"2020-02-04": 300}
			err := port.FromSpecification(ctx, []string{"SPY"}, []time.Time{day("2020-02-05")}, nil)
			Expect(err).To(MatchError(data.ErrDataUnavailable))
		})
	})

	Describe("Combine", func() {
		It("rolls shared tickers and sums their weights", func() {
			left := portfolio.NewPortfolio()
			Expect(left.AddPosition(mustPosition("SPY", "2020-02-05", 100, 1), 0.5)).To(Succeed())
			Expect(left.AddPosition(mustPosition("IWM", "2020-02-05", 50, 1), 0.5)).To(Succeed())

			right := portfolio.NewPortfolio()
			Expect(right.AddPosition(mustPosition("SPY", "2020-02-06", 101, 2), 0.25)).To(Succeed())
			Expect(right.AddPosition(mustPosition("QQQ", "2020-02-06", 200, 1), 0.75)).To(Succeed())

			res, err := left.Combine(right)
			Expect(err).To(BeNil())
			Expect(res.Tickers()).To(Equal([]string{"SPY", "IWM", "QQQ"}))
			Expect(res.Vectorized()).To(Equal([][2]float64{{3, 0.75}, {1, 0.5}, {1, 0.75}}))

			Expect(left.Len()).To(Equal(2))
			Expect(right.Len()).To(Equal(2))
		})

		It("rejects a position held by both portfolios", func() {
			left, err := portfolio.FromPositions(mustPosition("SPY", "2020-02-05", 100, 1))
			Expect(err).To(BeNil())

			res, err := left.Combine(left)
			Expect(err).To(MatchError(portfolio.ErrDuplicateID))
			Expect(res).To(BeNil())

			spy, ok := left.Get("SPY")
			Expect(ok).To(BeTrue())
			Expect(spy.Quantity()).To(Equal(1.0))
			Expect(spy.Ledger().Len()).To(Equal(1))
		})
	})

	Describe("Table", func() {
		It("requires a valuation on every position", func() {
			Expect(port.AddPosition(mustPosition("SPY", "2020-02-05", 100, 1), 1)).To(Succeed())
			_, err := port.Table()
			Expect(err).To(MatchError(portfolio.ErrPrecondition))
		})

		It("lists position values by ticker", func() {
			err := port.FromSpecification(ctx, []string{"SPY", "IWM"}, []time.Time{day("2020-02-05")}, nil)
			Expect(err).To(BeNil())

			valuation := portfolio.NewValuation(provider, clock("2020-02-07"))
			Expect(valuation.AttachPortfolio(ctx, port)).To(Succeed())

			table, err := port.Table()
			Expect(err).To(BeNil())
			Expect(table.ColNames).To(Equal([]string{"SPY", "IWM"}))
			Expect(table.Index).To(Equal([]time.Time{day("2020-02-04"), day("2020-02-05"), day("2020-02-06"), day("2020-02-07")}))
			Expect(math.IsNaN(table.Vals[0][1])).To(BeTrue())

			// two days of 1% growth compounded once per share held
			for idx, pos := range port.Positions() {
				Expect(table.Vals[idx][3]).To(BeNumerically("~", math.Pow(1.01, 2*pos.Quantity()), 1e-9))
			}
		})
	})

	It("parses normalization names", func() {
		n, err := portfolio.ParseNormalization("COUNT")
		Expect(err).To(BeNil())
		Expect(n).To(Equal(portfolio.NormalizeCount))

		n, err = portfolio.ParseNormalization("")
		Expect(err).To(BeNil())
		Expect(n).To(Equal(portfolio.NormalizeSum))

		_, err = portfolio.ParseNormalization("median")
		Expect(err).To(MatchError(portfolio.ErrPrecondition))
	})
})

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

package data_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/data"
)

const spyPrices = `[
	{"date":"2020-02-04T00:00:00.000Z","close":329.06,"adjClose":315.10,"open":325.0,"high":330.0,"low":324.0,"volume":10},
	{"date":"2020-02-05T00:00:00.000Z","close":332.86,"adjClose":318.74,"open":330.0,"high":333.0,"low":329.0,"volume":10},
	{"date":"2020-02-06T00:00:00.000Z","close":333.98,"adjClose":319.81,"open":333.0,"high":334.0,"low":332.0,"volume":10}
]`

const spyURL = "https://api.tiingo.com/tiingo/daily/SPY/prices?startDate=2020-02-04&endDate=2020-02-06&token=TEST"

var _ = Describe("Tiingo", func() {
	var (
		tiingo *data.Tiingo
		begin  time.Time
		end    time.Time
	)

	BeforeEach(func() {
		httpmock.Activate()
		tiingo = data.NewTiingo("TEST",
			data.WithMaxRetries(2),
			data.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		)
		begin = common.MustParseDate("2020-02-04")
		end = common.MustParseDate("2020-02-06")
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Context("when the request succeeds", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", spyURL, httpmock.NewStringResponder(200, spyPrices))
		})

		It("returns adjusted and unadjusted closes indexed by date", func() {
			df, err := tiingo.FetchHistory(context.Background(), "spy", begin, end)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(3))
			Expect(df.ColNames).To(Equal([]string{data.MetricAdjustedClose, data.MetricClose}))
			Expect(df.Index[0]).To(Equal(common.MustParseDate("2020-02-04")))
			Expect(df.Index[2]).To(Equal(common.MustParseDate("2020-02-06")))
			Expect(df.Vals[0]).To(Equal([]float64{315.10, 318.74, 319.81}))
			Expect(df.Vals[1][1]).To(Equal(332.86))
		})
	})

	Context("when the server fails transiently", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", spyURL, httpmock.ResponderFromMultipleResponses([]*http.Response{
				httpmock.NewStringResponse(503, "unavailable"),
				httpmock.NewStringResponse(200, spyPrices),
			}))
		})

		It("retries until the request succeeds", func() {
			df, err := tiingo.FetchHistory(context.Background(), "SPY", begin, end)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(3))
			Expect(httpmock.GetTotalCallCount()).To(Equal(2))
		})
	})

	Context("when the server keeps failing", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", spyURL, httpmock.NewStringResponder(500, "error"))
		})

		It("gives up after the configured number of retries", func() {
			_, err := tiingo.FetchHistory(context.Background(), "SPY", begin, end)
			Expect(errors.Is(err, data.ErrDataUnavailable)).To(BeTrue())
			Expect(httpmock.GetTotalCallCount()).To(Equal(3))
		})
	})

	Context("when the symbol is unknown", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", spyURL, httpmock.NewStringResponder(404, `{"detail":"Not found."}`))
		})

		It("does not retry", func() {
			_, err := tiingo.FetchHistory(context.Background(), "SPY", begin, end)
			Expect(err).To(MatchError(data.ErrDataUnavailable))
			Expect(err).To(MatchError(data.ErrNotFound))
			Expect(httpmock.GetTotalCallCount()).To(Equal(1))
		})
	})

	Context("when the range holds no prices", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", spyURL, httpmock.NewStringResponder(200, `[]`))
		})

		It("reports an empty response", func() {
			_, err := tiingo.FetchHistory(context.Background(), "SPY", begin, end)
			Expect(err).To(MatchError(data.ErrDataUnavailable))
			Expect(err).To(MatchError(data.ErrEmptyResponse))

			var unavailable *data.UnavailableError
			Expect(errors.As(err, &unavailable)).To(BeTrue())
			Expect(unavailable.Symbol).To(Equal("SPY"))
		})
	})

	It("rejects an inverted range without a request", func() {
		_, err := tiingo.FetchHistory(context.Background(), "SPY", end, begin)
		Expect(err).To(MatchError(data.ErrInvalidTimeRange))
		Expect(err).To(MatchError(data.ErrDataUnavailable))
		Expect(httpmock.GetTotalCallCount()).To(Equal(0))
	})
})

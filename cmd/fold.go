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

package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/positions/dataframe"
	"github.com/penny-vault/positions/portfolio"
)

var (
	foldTicker    string
	foldValue     bool
	foldFrequency string
)

func init() {
	foldCmd.Flags().StringVar(&foldTicker, "ticker", "", "Ticker every update applies to")
	foldCmd.Flags().BoolVar(&foldValue, "value", false, "Value the recorded signals against end-of-day prices")
	foldCmd.Flags().StringVar(&foldFrequency, "frequency", "daily", "Rows of the valuation printed by --value: daily, weekbegin, weekend, monthbegin, monthend, yearbegin or yearend")
	foldCmd.MarkFlagRequired("ticker")
	rootCmd.AddCommand(foldCmd)
}

var foldCmd = &cobra.Command{
	Use:   "fold --ticker TICKER -- SHARES@YYYY-MM-DD[@PRICE]...",
	Short: "Net a sequence of share updates into a single position",
	Long: `Lift each update into a position and roll them together in order. Negative
shares are sales; separate the updates from the flags with -- so they are not
read as flags.`,
	Example: "  pvpos fold --ticker SPY -- 1@2020-02-05 -3@2020-02-06 2@2020-02-10",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		frequency, err := dataframe.ParseFrequency(foldFrequency)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid frequency")
		}

		updates := make([]portfolio.Update, len(args))
		for idx, arg := range args {
			update, err := parseLeg(arg)
			if err != nil {
				log.Fatal().Err(err).Msg("could not parse update")
			}
			updates[idx] = update
		}

		opts, done := positionOptions()
		defer done()

		signals := &portfolio.SignalSeries{}
		monoid := portfolio.NewPositionMonoid(foldTicker, signals, opts...)
		pos, err := monoid.Fold(updates...)
		if err != nil {
			log.Fatal().Err(err).Msg("could not fold updates")
		}

		fmt.Println(pos.String())
		fmt.Println()
		printLedger(pos.Ledger())
		fmt.Println()
		fmt.Println(signals.DataFrame().Table())

		if !foldValue {
			return
		}

		provider, err := newProvider()
		if err != nil {
			log.Fatal().Err(err).Msg("could not create price history provider")
		}

		valuation := portfolio.NewValuation(provider, nil)
		df, err := valuation.AttachSignals(context.Background(), pos.Ticker(), signals)
		if err != nil {
			log.Fatal().Err(err).Str("Ticker", pos.Ticker()).Msg("could not value signals")
		}

		fmt.Println(df.Frequency(frequency).Table())
	},
}

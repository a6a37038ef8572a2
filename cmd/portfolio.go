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
	"github.com/spf13/viper"

	"github.com/penny-vault/positions/dataframe"
	"github.com/penny-vault/positions/portfolio"
)

var (
	portfolioWeights   string
	portfolioFrequency string
)

func init() {
	portfolioCmd.Flags().StringVar(&portfolioWeights, "weights", "", "Comma separated weight of each ticker; equal weights if blank")
	portfolioCmd.Flags().StringVar(&portfolioFrequency, "frequency", "daily", "Rows of the value table: daily, weekbegin, weekend, monthbegin, monthend, yearbegin or yearend")
	rootCmd.AddCommand(portfolioCmd)
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio TICKER[,TICKER...] YYYY-MM-DD[,YYYY-MM-DD...]",
	Short: "Build a portfolio from tickers, dates and weights and value it",
	Long: `Open one position per ticker sized as weight * cash / opening price. A single
date applies to every ticker.`,
	Example: "  pvpos portfolio SPY,IWM 2020-02-05 --weights 0.6,0.4 --frequency monthend",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		symbols := splitList(args[0])

		dates, err := parseDates(args[1])
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", args[1]).Msg("could not parse dates")
		}

		weights, err := parseFloats(portfolioWeights)
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", portfolioWeights).Msg("could not parse weights")
		}

		frequency, err := dataframe.ParseFrequency(portfolioFrequency)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid frequency")
		}

		normalization, err := portfolio.ParseNormalization(viper.GetString("portfolio.weight_normalization"))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid weight normalization")
		}

		provider, err := newProvider()
		if err != nil {
			log.Fatal().Err(err).Msg("could not create price history provider")
		}

		ctx := context.Background()
		port := portfolio.NewPortfolio(
			portfolio.WithCash(viper.GetFloat64("portfolio.cash")),
			portfolio.WithNormalization(normalization),
			portfolio.WithProvider(provider),
		)

		if err := port.FromSpecification(ctx, symbols, dates, weights); err != nil {
			log.Fatal().Err(err).Strs("Symbols", symbols).Msg("could not build portfolio")
		}

		printPortfolio(port)
		fmt.Println()

		valuation := portfolio.NewValuation(provider, nil)
		if err := valuation.AttachPortfolio(ctx, port); err != nil {
			log.Fatal().Err(err).Msg("could not value portfolio")
		}

		table, err := port.Table()
		if err != nil {
			log.Fatal().Err(err).Msg("could not build value table")
		}
		fmt.Println(table.Frequency(frequency).Table())
	},
}

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
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/portfolio"
)

var (
	positionPrice  float64
	positionShares float64
	positionBuys   []string
	positionSells  []string
	positionExit   string
	positionValue  bool
)

func init() {
	positionCmd.Flags().Float64Var(&positionPrice, "price", 0, "Price of the opening trade")
	positionCmd.Flags().Float64Var(&positionShares, "shares", 1, "Shares bought by the opening trade; negative to open a short")
	positionCmd.Flags().StringArrayVar(&positionBuys, "buy", []string{}, "Buy SHARES@YYYY-MM-DD@PRICE, may be repeated")
	positionCmd.Flags().StringArrayVar(&positionSells, "sell", []string{}, "Sell SHARES@YYYY-MM-DD@PRICE, may be repeated")
	positionCmd.Flags().StringVar(&positionExit, "exit", "", "Close the position at YYYY-MM-DD@PRICE")
	positionCmd.Flags().BoolVar(&positionValue, "value", false, "Value the position against end-of-day prices")
	rootCmd.AddCommand(positionCmd)
}

type leg struct {
	kind   string
	update portfolio.Update
}

var positionCmd = &cobra.Command{
	Use:     "position TICKER YYYY-MM-DD",
	Short:   "Open a position, trade it and summarize the result",
	Example: "  pvpos position SPY 2020-02-05 --price 300 --shares 1 --buy 2@2020-02-10@310 --sell 3@2020-02-24@320",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		initDate, err := common.ParseDate(args[1])
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", args[1]).Msg("could not parse date - expected format 2006-01-02")
		}

		opts, done := positionOptions()
		defer done()

		pos, err := portfolio.NewPosition(args[0], initDate, positionPrice, positionShares, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open position")
		}

		legs := make([]leg, 0, len(positionBuys)+len(positionSells)+1)
		for _, s := range positionBuys {
			update, err := parseLeg(s)
			if err != nil {
				log.Fatal().Err(err).Msg("could not parse buy")
			}
			legs = append(legs, leg{kind: "buy", update: update})
		}
		for _, s := range positionSells {
			update, err := parseLeg(s)
			if err != nil {
				log.Fatal().Err(err).Msg("could not parse sell")
			}
			legs = append(legs, leg{kind: "sell", update: update})
		}
		if positionExit != "" {
			update, err := parseLeg("0@" + positionExit)
			if err != nil {
				log.Fatal().Err(err).Msg("could not parse exit")
			}
			legs = append(legs, leg{kind: "exit", update: update})
		}

		sort.SliceStable(legs, func(i, j int) bool {
			return legs[i].update.Date.Before(legs[j].update.Date)
		})

		for _, l := range legs {
			switch l.kind {
			case "buy":
				_, err = pos.Buy(l.update.Date, l.update.Price, l.update.Shares)
			case "sell":
				_, err = pos.Sell(l.update.Date, l.update.Price, l.update.Shares)
			case "exit":
				_, err = pos.Exit(l.update.Date, l.update.Price)
			}
			if err != nil {
				log.Fatal().Err(err).Str("Action", l.kind).Time("Date", l.update.Date).Msg("trade failed")
			}
		}

		fmt.Println(pos.String())
		fmt.Println()

		if !positionValue {
			printLedger(pos.Ledger())
			fmt.Printf("\nDays open: %d\nTotal cash invested: %.2f\n", pos.DaysOpen(time.Now()), pos.CashInvested())
			return
		}

		provider, err := newProvider()
		if err != nil {
			log.Fatal().Err(err).Msg("could not create price history provider")
		}

		valuation := portfolio.NewValuation(provider, nil)
		summary, err := valuation.Summary(context.Background(), pos)
		if err != nil {
			log.Fatal().Err(err).Object("Position", pos).Msg("could not value position")
		}

		printLedger(pos.Ledger())
		fmt.Println()
		fmt.Println(summary.String())
		printMetrics(pos)
	},
}

func printMetrics(pos *portfolio.Position) {
	if dd, err := pos.MaxDrawDown(); err != nil {
		log.Warn().Err(err).Msg("could not compute max draw down")
	} else if dd != nil {
		fmt.Printf("Max draw down: %.3f%% from %s to %s\n", dd.LossPercent*100,
			dd.Begin.Format(common.DateFormat), dd.End.Format(common.DateFormat))
	}

	if vol, err := pos.Volatility(); err != nil {
		log.Warn().Err(err).Msg("could not compute volatility")
	} else {
		fmt.Printf("Annualized volatility: %.3f%%\n", vol*100)
	}

	if mwrr, err := pos.MoneyWeightedReturn(); err != nil {
		log.Warn().Err(err).Msg("could not compute money weighted return")
	} else {
		fmt.Printf("Money weighted return: %.3f%%\n", mwrr*100)
	}
}

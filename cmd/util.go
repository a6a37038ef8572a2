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
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/positions/common"
	"github.com/penny-vault/positions/data"
	"github.com/penny-vault/positions/messenger"
	"github.com/penny-vault/positions/portfolio"
	"github.com/penny-vault/positions/tradecron"
)

var (
	ErrMissingToken  = errors.New("tiingo token is required; set TIINGO_TOKEN or --tiingo-token")
	ErrMalformedLeg  = errors.New("trade must be formatted as SHARES@YYYY-MM-DD[@PRICE]")
	ErrMalformedList = errors.New("list must be comma separated")
)

// newProvider builds the tiingo history provider wrapped in the configured caches
func newProvider() (data.HistoryProvider, error) {
	token := viper.GetString("tiingo.token")
	if token == "" {
		return nil, ErrMissingToken
	}

	tiingo := data.NewTiingo(token,
		data.WithTimeout(viper.GetDuration("tiingo.timeout")),
		data.WithMaxRetries(viper.GetUint64("tiingo.max_retries")),
	)

	opts := []data.CacheOption{}
	if viper.GetBool("cache.redis") {
		rdb, err := data.NewRedisClient(viper.GetString("cache.redis_url"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, data.WithRedis(rdb, viper.GetDuration("cache.ttl")))
		log.Info().Str("RedisURL", redactURL(viper.GetString("cache.redis_url"))).Msg("caching price history in redis")
	}

	cached, err := data.NewCachedProvider(tiingo, viper.GetInt("cache.local_size"), opts...)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// loadMarketHolidays registers the dates listed in market.holidays with the trading calendar
func loadMarketHolidays() error {
	raw := viper.GetStringSlice("market.holidays")
	holidays := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dt, err := common.ParseDate(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedList, err)
		}
		holidays = append(holidays, dt)
	}
	tradecron.SetMarketHolidays(holidays...)
	return nil
}

// redactURL masks the password of a connection string so it can be logged
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}

// positionOptions sends audit events to NATS when nats.server is configured. The returned function
// flushes outstanding events and drains the connection
func positionOptions() ([]portfolio.PositionOption, func()) {
	server := viper.GetString("nats.server")
	if server == "" {
		return []portfolio.PositionOption{}, func() {}
	}

	conn, js, err := messenger.Connect(server, viper.GetString("nats.credentials"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect audit trail to NATS")
	}

	sink := messenger.NewAuditSink(js, viper.GetString("nats.audit_subject"))
	return []portfolio.PositionOption{portfolio.WithAuditSink(sink)}, func() {
		if err := sink.Flush(5 * time.Second); err != nil {
			log.Warn().Err(err).Msg("audit events may not have been delivered")
		}
		if err := conn.Drain(); err != nil {
			log.Warn().Err(err).Msg("could not drain NATS connection")
		}
	}
}

// parseLeg reads a trade leg of the form SHARES@YYYY-MM-DD[@PRICE]
func parseLeg(s string) (portfolio.Update, error) {
	parts := strings.Split(s, "@")
	if len(parts) < 2 || len(parts) > 3 {
		return portfolio.Update{}, fmt.Errorf("%w: %q", ErrMalformedLeg, s)
	}

	shares, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return portfolio.Update{}, fmt.Errorf("%w: %q: %v", ErrMalformedLeg, s, err)
	}

	date, err := common.ParseDate(parts[1])
	if err != nil {
		return portfolio.Update{}, fmt.Errorf("%w: %q: %v", ErrMalformedLeg, s, err)
	}

	update := portfolio.Update{Shares: shares, Date: date}
	if len(parts) == 3 {
		if update.Price, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return portfolio.Update{}, fmt.Errorf("%w: %q: %v", ErrMalformedLeg, s, err)
		}
	}

	return update, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for idx := range parts {
		parts[idx] = strings.TrimSpace(parts[idx])
	}
	return parts
}

func parseDates(s string) ([]time.Time, error) {
	parts := splitList(s)
	dates := make([]time.Time, len(parts))
	for idx, part := range parts {
		dt, err := common.ParseDate(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedList, err)
		}
		dates[idx] = dt
	}
	return dates, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := splitList(s)
	vals := make([]float64, len(parts))
	for idx, part := range parts {
		val, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedList, err)
		}
		vals[idx] = val
	}
	return vals, nil
}

func printLedger(ledger *portfolio.Ledger) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Action", "Shares", "Price", "Trade ID"})
	table.SetBorder(false)

	for _, trade := range ledger.Trades() {
		action := "BUY"
		if trade.Sign < 0 {
			action = "SELL"
		}
		table.Append([]string{
			trade.Date.Format(common.DateFormat),
			action,
			strconv.FormatFloat(trade.Shares, 'f', -1, 64),
			fmt.Sprintf("%.2f", trade.Price),
			trade.ID.String(),
		})
	}

	table.Render()
}

func printPortfolio(port *portfolio.Portfolio) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Ticker", "Shares", "Weight", "Opening Price", "Invested"})
	table.SetFooter([]string{"", "", "", "Total", fmt.Sprintf("%.2f", port.Invested())})
	table.SetBorder(false)

	for idx, pos := range port.Positions() {
		price := 0.0
		if first := pos.Ledger().First(); first != nil {
			price = first.Price
		}
		table.Append([]string{
			pos.Ticker(),
			fmt.Sprintf("%.4f", pos.Quantity()),
			fmt.Sprintf("%.4f", port.Weights()[idx]),
			fmt.Sprintf("%.2f", price),
			fmt.Sprintf("%.2f", pos.CashInvested()),
		})
	}

	table.Render()
}
